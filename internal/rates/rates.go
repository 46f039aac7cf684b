// Package rates caches currency exchange rates from the National Bank of
// Ukraine statistics API.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"realty-feed-sync/internal/logging"
	"realty-feed-sync/internal/state"
)

// DefaultTTL is how long a fetched rate is trusted.
const DefaultTTL = 12 * time.Hour

// ProviderError describes a failed refresh. It never reaches callers of
// Rate; it is only logged.
type ProviderError struct {
	Currency string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("rate provider %s: %v", e.Currency, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// nbuRate mirrors one element of the provider's JSON array.
type nbuRate struct {
	R030         int     `json:"r030"`
	Txt          string  `json:"txt"`
	Rate         float64 `json:"rate"`
	CC           string  `json:"cc"`
	ExchangeDate string  `json:"exchangedate"`
}

// Cache resolves rates through the state store, refreshing stale entries.
type Cache struct {
	store       state.Store
	providerURL string
	ttl         time.Duration
	fallback    map[string]float64
	client      *http.Client
	log         *logging.Logger
	now         func() time.Time
}

// Options configures a Cache.
type Options struct {
	ProviderURL string
	TTL         time.Duration
	Timeout     time.Duration
	Fallback    map[string]float64
}

// NewCache creates a rate cache.
func NewCache(store state.Store, opts Options, logger *logging.Logger) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}
	fallback := make(map[string]float64, len(opts.Fallback))
	for k, v := range opts.Fallback {
		fallback[strings.ToUpper(k)] = v
	}
	return &Cache{
		store:       store,
		providerURL: opts.ProviderURL,
		ttl:         opts.TTL,
		fallback:    fallback,
		client:      &http.Client{Timeout: opts.Timeout},
		log:         logger,
		now:         time.Now,
	}
}

// Rate returns the rate of currency in the local currency. It never fails:
// a failed refresh falls back to the stored rate, then to the constant.
func (c *Cache) Rate(ctx context.Context, currency string) float64 {
	currency = strings.ToUpper(strings.TrimSpace(currency))

	stored, storedAt, hasStored := c.stored(ctx, currency)
	if hasStored && c.now().Sub(storedAt) < c.ttl {
		return stored
	}

	rate, err := c.fetch(ctx, currency)
	if err != nil {
		c.log.Printf("%v", &ProviderError{Currency: currency, Err: err})
		if hasStored {
			return stored
		}
		return c.fallback[currency]
	}

	rate = math.Round(rate*100) / 100
	if err := c.store.Set(ctx, state.RateKey(currency), strconv.FormatFloat(rate, 'f', 2, 64)); err != nil {
		c.log.Printf("Failed to store %s rate: %v", currency, err)
		return rate
	}
	if err := c.store.Set(ctx, state.RateTimeKey(currency), strconv.FormatInt(c.now().Unix(), 10)); err != nil {
		c.log.Printf("Failed to store %s rate time: %v", currency, err)
	}
	return rate
}

// Rates resolves several currencies at once.
func (c *Cache) Rates(ctx context.Context, currencies ...string) map[string]float64 {
	out := make(map[string]float64, len(currencies))
	for _, cur := range currencies {
		out[strings.ToUpper(cur)] = c.Rate(ctx, cur)
	}
	return out
}

// stored reads the cached rate. A rate without a readable timestamp counts
// as present but stale.
func (c *Cache) stored(ctx context.Context, currency string) (float64, time.Time, bool) {
	raw, ok, err := c.store.Get(ctx, state.RateKey(currency))
	if err != nil || !ok {
		return 0, time.Time{}, false
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate <= 0 {
		return 0, time.Time{}, false
	}

	var at time.Time
	if rawTime, ok, err := c.store.Get(ctx, state.RateTimeKey(currency)); err == nil && ok {
		if sec, err := strconv.ParseInt(rawTime, 10, 64); err == nil {
			at = time.Unix(sec, 0)
		}
	}
	return rate, at, true
}

func (c *Cache) fetch(ctx context.Context, currency string) (float64, error) {
	if c.providerURL == "" {
		return 0, fmt.Errorf("provider url not configured")
	}
	u, err := url.Parse(c.providerURL)
	if err != nil {
		return 0, fmt.Errorf("parse provider url: %w", err)
	}
	q := u.Query()
	q.Set("valcode", currency)
	u.RawQuery = q.Encode() + "&json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}

	var payload []nbuRate
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode body: %w", err)
	}
	if len(payload) == 0 || payload[0].Rate <= 0 {
		return 0, fmt.Errorf("rate field missing")
	}
	return payload[0].Rate, nil
}
