// Package importer runs one bounded sync of a feed source into the listing
// store: lock, fetch, walk a window of records, persist the cursor, unlock.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realty-feed-sync/internal/changes"
	"realty-feed-sync/internal/cursor"
	"realty-feed-sync/internal/feed"
	"realty-feed-sync/internal/logging"
	"realty-feed-sync/internal/mapper"
	"realty-feed-sync/internal/media"
	"realty-feed-sync/internal/models"
	"realty-feed-sync/internal/state"
)

// ListingStore is the persistence the engine writes through
type ListingStore interface {
	// FindListing returns nil without error when no listing exists.
	FindListing(ctx context.Context, source, externalID string) (*models.Listing, error)
	SaveListing(ctx context.Context, l *models.Listing) error
	SetListingHashes(ctx context.Context, id uint, textHash, imageHash string) error
	ListTerms(ctx context.Context) ([]models.Term, error)
	SetListingTerms(ctx context.Context, listingID uint, terms []models.Term) error
}

// MediaSyncer replaces the images of a listing
type MediaSyncer interface {
	Replace(ctx context.Context, listing *models.Listing, urls []string) (*media.Result, error)
}

// Indexer refreshes the search document of a listing
type Indexer interface {
	IndexListing(ctx context.Context, l *models.Listing) error
}

// RateSource resolves exchange rates, falling back internally
type RateSource interface {
	Rates(ctx context.Context, currencies ...string) map[string]float64
}

// Fetcher downloads and decodes a feed
type Fetcher interface {
	Fetch(ctx context.Context, url string, schema feed.Schema) (*feed.Document, error)
}

// Source is the per-feed configuration of an engine
type Source struct {
	Name         string
	URL          string
	Schema       feed.Schema
	InsertOnly   bool
	AuthorID     uint
	ParentID     uint
	SuccessLimit int
	MaxInspected int
	LockTTL      time.Duration
	Tables       mapper.Tables
	Mapping      mapper.Options
}

// Deps are the collaborators of an engine
type Deps struct {
	State    state.Store
	Listings ListingStore
	Media    MediaSyncer
	Index    Indexer
	Rates    RateSource
	Feed     Fetcher
}

// Engine syncs one source
type Engine struct {
	src    Source
	deps   Deps
	logger *logging.Logger
}

// NewEngine creates an engine for src
func NewEngine(src Source, deps Deps, logger *logging.Logger) *Engine {
	if src.MaxInspected <= 0 {
		src.MaxInspected = 100
	}
	if src.SuccessLimit <= 0 {
		src.SuccessLimit = 20
	}
	if src.LockTTL <= 0 {
		src.LockTTL = 25 * time.Minute
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{src: src, deps: deps, logger: logger}
}

// Source returns the engine's source configuration
func (e *Engine) Source() Source {
	return e.src
}

// Run performs one sync session. A fetch failure aborts before anything is
// written; record failures are logged and counted.
func (e *Engine) Run(ctx context.Context, trigger Trigger) (*Summary, error) {
	label := trigger.Label()
	summary := &Summary{Source: e.src.Name, Trigger: trigger, StartedAt: time.Now()}

	lock, err := state.AcquireLock(ctx, e.deps.State, state.LockKey(e.src.Name), e.src.LockTTL)
	if errors.Is(err, state.ErrLocked) {
		e.logger.Printf("[%s] Import is already running. Skipping.", label)
		return nil, ErrAlreadyRunning
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			e.logger.Printf("[%s] Failed to release lock: %v", label, err)
		}
	}()

	e.logger.Printf("[%s] Import session started.", label)

	doc, err := e.deps.Feed.Fetch(ctx, e.src.URL, e.src.Schema)
	if err != nil {
		e.logger.Printf("[%s] Feed error: %v", label, err)
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	summary.Total = len(doc.Records)
	summary.Partial = doc.Partial
	if doc.Partial {
		e.logger.Printf("[%s] Feed is truncated, %d records recovered: %v", label, len(doc.Records), doc.ParseErr)
	}

	terms, err := e.deps.Listings.ListTerms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load terms: %w", err)
	}
	m := mapper.New(e.src.Tables, mapper.NewTermIndex(terms), e.src.Mapping)
	rates := e.deps.Rates.Rates(ctx, "USD", "EUR")

	cur, err := cursor.Load(ctx, e.deps.State, state.OffsetKey(e.src.Name))
	if err != nil {
		return nil, err
	}
	w := cur.NextBatch(len(doc.Records), e.src.MaxInspected)
	summary.Start = w.Start

	for !w.Done(e.src.SuccessLimit) {
		if ctx.Err() != nil {
			break
		}
		rec := doc.Records[w.Start+w.Inspected]
		w.Inspected++

		o := e.process(ctx, label, m, rec, rates)
		summary.add(o)
		if o.Succeeded() {
			w.Succeeded++
		}
		switch o.Kind {
		case Rejected:
			e.logger.Printf("[%s] Skip ID %s: %s", label, rec.ExternalID, rejectMessage(o.Reason))
		case Failed:
			e.logger.Printf("[%s] Error on ID %s: %v", label, rec.ExternalID, o.Reason)
		}
	}

	next, err := cur.Commit(ctx, w)
	if err != nil {
		return nil, err
	}
	summary.NextOffset = next
	if next == 0 {
		e.logger.Printf("[%s] End of feed reached. Resetting offset to 0.", label)
	} else {
		e.logger.Printf("[%s] Session finished. Offset moved to %d.", label, next)
	}
	e.logger.Printf("[%s] Import session finished. Added/Updated: %d. Checked in feed: %d", label, summary.Succeeded(), w.Inspected)

	summary.FinishedAt = time.Now()
	return summary, nil
}

// process runs the per-record pipeline
func (e *Engine) process(ctx context.Context, label string, m *mapper.Mapper, rec feed.Record, rates map[string]float64) Outcome {
	if rec.ExternalID == "" {
		return Outcome{Kind: Rejected, Reason: ErrMissingExternalID}
	}

	existing, err := e.deps.Listings.FindListing(ctx, e.src.Name, rec.ExternalID)
	if err != nil {
		return failed(0, "find listing", err)
	}

	hashes := changes.Compute(rec)
	decision := changes.New
	if existing != nil {
		if e.src.InsertOnly {
			return Outcome{Kind: SkippedUnchanged, ListingID: existing.ID}
		}
		decision = changes.Classify(&changes.Hashes{Text: existing.TextHash, Image: existing.ImageHash}, hashes.Text, hashes.Image)
	}

	switch decision {
	case changes.SkipUnchanged:
		return Outcome{Kind: SkippedUnchanged, ListingID: existing.ID}
	case changes.BackfillHashOnly:
		if err := e.deps.Listings.SetListingHashes(ctx, existing.ID, hashes.Text, hashes.Image); err != nil {
			return failed(existing.ID, "store hashes", err)
		}
		return Outcome{Kind: Backfilled, ListingID: existing.ID}
	}

	fields, err := m.Map(rec, mapper.Input{
		IsNew:         existing == nil,
		ImagesChanged: decision.ImagesChanged(),
		Rates:         rates,
	})
	if err != nil {
		var id uint
		if existing != nil {
			id = existing.ID
		}
		return Outcome{Kind: Rejected, Reason: err, ListingID: id}
	}

	listing := existing
	if listing == nil {
		listing = &models.Listing{
			Source:     e.src.Name,
			ExternalID: rec.ExternalID,
			AuthorID:   e.src.AuthorID,
			ParentID:   e.src.ParentID,
			Status:     models.ListingStatusPublish,
		}
	}
	fields.Apply(listing)

	if err := e.deps.Listings.SaveListing(ctx, listing); err != nil {
		return failed(listing.ID, "save listing", err)
	}
	if err := e.deps.Listings.SetListingTerms(ctx, listing.ID, []models.Term{fields.Category, fields.City}); err != nil {
		return failed(listing.ID, "set terms", err)
	}

	if decision.ImagesChanged() {
		res, err := e.deps.Media.Replace(ctx, listing, fields.Photos)
		if err != nil {
			return failed(listing.ID, "sync media", err)
		}
		listing.ThumbnailID = res.ThumbnailID
	}

	// Hashes go in with the final save so a failed run is retried next time.
	listing.TextHash = hashes.Text
	listing.ImageHash = hashes.Image
	if err := e.deps.Listings.SaveListing(ctx, listing); err != nil {
		return failed(listing.ID, "save listing", err)
	}

	if e.deps.Index != nil {
		if err := e.deps.Index.IndexListing(ctx, listing); err != nil {
			e.logger.Printf("[%s] Failed to index ID %s: %v", label, rec.ExternalID, err)
		}
	}

	if existing == nil {
		return Outcome{Kind: Imported, ListingID: listing.ID}
	}
	return Outcome{Kind: Updated, ListingID: listing.ID}
}

func failed(id uint, op string, err error) Outcome {
	return Outcome{Kind: Failed, Reason: &PersistenceError{Op: op, Err: err}, ListingID: id}
}
