package rates

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"realty-feed-sync/internal/state"
)

type provider struct {
	srv   *httptest.Server
	calls atomic.Int32
}

func newProvider(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *provider {
	t.Helper()
	p := &provider{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func nbuHandler(rate float64) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		cc := r.URL.Query().Get("valcode")
		fmt.Fprintf(w, `[{"r030":978,"txt":"Євро","rate":%v,"cc":%q,"exchangedate":"01.05.2024"}]`, rate, cc)
	}
}

var fallback = map[string]float64{"EUR": 54, "USD": 45.67}

func newCache(store state.Store, providerURL string, now time.Time) *Cache {
	c := NewCache(store, Options{ProviderURL: providerURL, Fallback: fallback}, nil)
	c.now = func() time.Time { return now }
	return c
}

func seed(t *testing.T, store state.Store, currency string, rate float64, at time.Time) {
	t.Helper()
	ctx := context.Background()
	_ = store.Set(ctx, state.RateKey(currency), strconv.FormatFloat(rate, 'f', 2, 64))
	_ = store.Set(ctx, state.RateTimeKey(currency), strconv.FormatInt(at.Unix(), 10))
}

func TestFreshRateSkipsProvider(t *testing.T) {
	p := newProvider(t, nbuHandler(47.11))
	now := time.Now()
	store := state.NewMemoryStore()
	seed(t, store, "EUR", 45.0, now.Add(-time.Hour))

	got := newCache(store, p.srv.URL, now).Rate(context.Background(), "EUR")
	if got != 45.0 {
		t.Errorf("got %v; want 45", got)
	}
	if n := p.calls.Load(); n != 0 {
		t.Errorf("provider called %d times; want 0", n)
	}
}

func TestStaleRateRefreshesAndRounds(t *testing.T) {
	p := newProvider(t, nbuHandler(44.4567))
	now := time.Now()
	store := state.NewMemoryStore()
	seed(t, store, "EUR", 45.0, now.Add(-13*time.Hour))

	c := newCache(store, p.srv.URL, now)
	if got := c.Rate(context.Background(), "eur"); got != 44.46 {
		t.Errorf("got %v; want 44.46", got)
	}

	raw, _, _ := store.Get(context.Background(), state.RateKey("EUR"))
	if raw != "44.46" {
		t.Errorf("stored %q; want 44.46", raw)
	}
	rawTime, _, _ := store.Get(context.Background(), state.RateTimeKey("EUR"))
	if rawTime != strconv.FormatInt(now.Unix(), 10) {
		t.Errorf("stored time %q; want %d", rawTime, now.Unix())
	}
}

func TestProviderFailureFallsBack(t *testing.T) {
	handlers := map[string]func(w http.ResponseWriter, r *http.Request){
		"status": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
		"body":   func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>down</html>")) },
		"empty":  func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("[]")) },
		"field":  func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`[{"cc":"USD"}]`)) },
	}

	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			p := newProvider(t, h)
			now := time.Now()

			// no stored value: constant fallback
			empty := state.NewMemoryStore()
			if got := newCache(empty, p.srv.URL, now).Rate(context.Background(), "USD"); got != 45.67 {
				t.Errorf("no stored rate: got %v; want 45.67", got)
			}
			if _, ok, _ := empty.Get(context.Background(), state.RateKey("USD")); ok {
				t.Error("failed refresh persisted a rate")
			}

			// stale stored value wins over the constant
			stale := state.NewMemoryStore()
			seed(t, stale, "USD", 41.2, now.Add(-48*time.Hour))
			if got := newCache(stale, p.srv.URL, now).Rate(context.Background(), "USD"); got != 41.2 {
				t.Errorf("stale stored rate: got %v; want 41.2", got)
			}
		})
	}
}

func TestUnknownCurrencyWithoutFallback(t *testing.T) {
	c := newCache(state.NewMemoryStore(), "", time.Now())
	if got := c.Rate(context.Background(), "PLN"); got != 0 {
		t.Errorf("got %v; want 0", got)
	}
}

func TestRates(t *testing.T) {
	p := newProvider(t, nbuHandler(40))
	got := newCache(state.NewMemoryStore(), p.srv.URL, time.Now()).Rates(context.Background(), "usd", "EUR")
	if got["USD"] != 40 || got["EUR"] != 40 {
		t.Errorf("got %v; want both 40", got)
	}
	if n := p.calls.Load(); n != 2 {
		t.Errorf("provider called %d times; want 2", n)
	}
}
