// Package mapper normalizes raw feed records into canonical listing fields.
package mapper

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"realty-feed-sync/internal/feed"
	"realty-feed-sync/internal/models"
	"realty-feed-sync/internal/textutil"
)

// Rejection reasons. A rejected record is skipped for this run.
var (
	ErrMissingPhone    = errors.New("missing phone")
	ErrMissingPhotos   = errors.New("missing photos")
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownLocation = errors.New("unknown location")
)

// RejectError carries the reason a record was rejected and what was looked at.
type RejectError struct {
	Reason error
	Detail string
}

func (e *RejectError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s (%s)", e.Reason, e.Detail)
}

func (e *RejectError) Unwrap() error { return e.Reason }

func reject(reason error, format string, args ...any) *RejectError {
	return &RejectError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// TermIndex holds the taxonomy terms that exist, by taxonomy and slug.
type TermIndex map[string]map[string]models.Term

// NewTermIndex indexes terms.
func NewTermIndex(terms []models.Term) TermIndex {
	ix := make(TermIndex)
	for _, t := range terms {
		if ix[t.Taxonomy] == nil {
			ix[t.Taxonomy] = make(map[string]models.Term)
		}
		ix[t.Taxonomy][t.Slug] = t
	}
	return ix
}

// Lookup returns the term with slug in taxonomy.
func (ix TermIndex) Lookup(taxonomy, slug string) (models.Term, bool) {
	t, ok := ix[taxonomy][slug]
	return t, ok
}

// Options are the per-source mapping settings.
type Options struct {
	Schema        feed.Schema
	FixedCategory string
	RoomSuffix    string
	Country       string
	Excerpt       string
}

// Input is the per-record context decided before mapping.
type Input struct {
	IsNew         bool
	ImagesChanged bool
	Rates         map[string]float64
}

// Fields is a fully normalized record, ready to be written to a listing.
type Fields struct {
	Title       string
	Description string
	Excerpt     string

	PriceLocal      float64
	PriceNormalized int64
	Currency        string

	Category models.Term
	City     models.Term

	Latitude  *float64
	Longitude *float64
	Location  string

	Phone     string
	Email     string
	OwnerName string
	OwnerType models.OwnerType

	Rooms          int
	Floor          int
	BuildingLevels int
	LivingArea     float64
	TotalArea      float64

	Photos []string
}

// Mapper is built once per run with the source's tables and existing terms.
type Mapper struct {
	tables Tables
	terms  TermIndex
	opts   Options
}

// New creates a Mapper.
func New(tables Tables, terms TermIndex, opts Options) *Mapper {
	if opts.RoomSuffix == "" {
		opts.RoomSuffix = "-room"
	}
	return &Mapper{tables: tables, terms: terms, opts: opts}
}

// Map validates rec and normalizes it. The returned error is a *RejectError.
func (m *Mapper) Map(rec feed.Record, in Input) (Fields, error) {
	var f Fields

	// 1. phone
	f.Phone = strings.TrimSpace(rec.FixedPhone)
	if f.Phone == "" {
		f.Phone = strings.TrimSpace(rec.Phone)
	}
	if f.Phone == "" {
		return Fields{}, reject(ErrMissingPhone, "no phone provided")
	}

	// 2. photos
	if len(rec.Photos) == 0 && (in.IsNew || in.ImagesChanged) {
		return Fields{}, reject(ErrMissingPhotos, "no photos found")
	}
	f.Photos = rec.Photos

	// 3. category
	key := normalizeKey(rec.OfferType) + "_" + normalizeKey(rec.PropertyType)
	slug := m.opts.FixedCategory
	if slug == "" {
		slug, _ = m.tables.Category(key)
	}
	category, ok := m.terms.Lookup(models.TaxonomyCategory, slug)
	if slug == "" || !ok {
		return Fields{}, reject(ErrUnknownCategory, "%s", key)
	}
	f.Category = category

	// 4. city, then region
	city, ok := m.location(rec)
	if !ok {
		return Fields{}, reject(ErrUnknownLocation, "%s , %s", normalizeKey(rec.City), normalizeKey(rec.Region))
	}
	f.City = city

	// 5. price
	f.PriceLocal = parseFloat(rec.Price)
	f.Currency = rec.Currency
	f.PriceNormalized = NormalizePrice(f.PriceLocal, rec.CostType, rec.Currency, in.Rates)

	// 6. title
	f.Title = m.title(rec)

	f.Description = rec.Description
	f.Excerpt = m.opts.Excerpt
	if f.Excerpt == "" {
		f.Excerpt = textutil.Excerpt(textutil.PlainText(rec.Description), 160)
	}
	f.Email = strings.TrimSpace(rec.Email)
	f.OwnerName = strings.TrimSpace(rec.OwnerName)
	f.OwnerType = models.ParseOwnerType(strings.ToLower(strings.TrimSpace(rec.OwnerType)))
	f.Rooms = parseInt(rec.Rooms)
	f.Floor = parseInt(rec.Floor)
	f.BuildingLevels = parseInt(rec.Floors)
	f.LivingArea = parseFloat(rec.LivingArea)
	f.TotalArea = parseFloat(rec.TotalArea)
	f.Latitude, f.Longitude = parseCoords(rec.Latitude, rec.Longitude)
	f.Location = joinNonEmpty(", ", rec.Street, rec.House, city.Name, m.opts.Country)

	return f, nil
}

func (m *Mapper) location(rec feed.Record) (models.Term, bool) {
	if slug, ok := m.tables.City(rec.City); ok {
		if t, ok := m.terms.Lookup(models.TaxonomyCity, slug); ok {
			return t, true
		}
	}
	if slug, ok := m.tables.Region(rec.Region); ok {
		if t, ok := m.terms.Lookup(models.TaxonomyCity, slug); ok {
			return t, true
		}
	}
	return models.Term{}, false
}

// title uses the feed title for flat records and composes one for offers.
func (m *Mapper) title(rec feed.Record) string {
	if m.opts.Schema != feed.SchemaOffer && rec.Title != "" {
		return rec.Title
	}
	var rooms string
	if r := strings.TrimSpace(rec.Rooms); r != "" {
		rooms = r + m.opts.RoomSuffix
	}
	return ComposeTitle(rec.PropertyLabel, rooms, rec.CityLabel)
}

// ComposeTitle joins the non-empty parts with ", " and uppercases the first rune.
func ComposeTitle(parts ...string) string {
	return textutil.UpperFirst(joinNonEmpty(", ", parts...))
}

// DaysPerMonth converts a daily price to a monthly one.
const DaysPerMonth = 30

// NormalizePrice converts a raw price into the canonical currency.
// Currencies without a rate are taken as already canonical.
func NormalizePrice(price float64, costType, currency string, rates map[string]float64) int64 {
	if strings.EqualFold(strings.TrimSpace(costType), "day") {
		price *= DaysPerMonth
	}
	switch cur := strings.ToUpper(strings.TrimSpace(currency)); cur {
	case "USD", "EUR":
		if rate, ok := rates[cur]; ok {
			price *= rate
		}
	}
	return int64(math.Round(price))
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func parseFloat(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return int(parseFloat(s))
}

func parseCoords(lat, lng string) (*float64, *float64) {
	lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	if lat == "" || lng == "" {
		return nil, nil
	}
	la, err1 := strconv.ParseFloat(lat, 64)
	lo, err2 := strconv.ParseFloat(lng, 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &la, &lo
}

// Apply copies the normalized fields onto l. Hashes and media are left alone.
func (f Fields) Apply(l *models.Listing) {
	l.Title = f.Title
	l.Description = f.Description
	l.Excerpt = f.Excerpt
	l.PriceLocal = f.PriceLocal
	l.PriceNormalized = f.PriceNormalized
	l.Currency = f.Currency
	l.CategoryTermID = f.Category.ID
	l.CityTermID = f.City.ID
	l.Latitude = f.Latitude
	l.Longitude = f.Longitude
	l.Location = f.Location
	l.Phone = f.Phone
	l.Email = f.Email
	l.OwnerName = f.OwnerName
	l.OwnerType = f.OwnerType
	l.Rooms = f.Rooms
	l.Floor = f.Floor
	l.BuildingLevels = f.BuildingLevels
	l.LivingArea = f.LivingArea
	l.TotalArea = f.TotalArea
}
