// Package sweeper permanently deletes listings a feed no longer carries.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/samber/lo"
	"github.com/tomakado/containers/set"

	"realty-feed-sync/internal/feed"
	"realty-feed-sync/internal/models"
	"realty-feed-sync/internal/state"
)

// ErrUnsafeFeed is returned when the feed cannot be trusted as the full set
var ErrUnsafeFeed = errors.New("feed is empty or truncated")

// Store lists and deletes the listings of a source
type Store interface {
	// ListSourceListings returns the listings of source owned by authorID.
	ListSourceListings(ctx context.Context, source string, authorID uint) ([]models.Listing, error)
	// DeleteListing removes the listing with its terms and views and writes entry.
	DeleteListing(ctx context.Context, l *models.Listing, entry *models.DeleteLog) error
}

// MediaRemover deletes every media file and row of a listing
type MediaRemover interface {
	DeleteAll(ctx context.Context, l *models.Listing) (int, error)
}

// Indexer drops search documents
type Indexer interface {
	DeleteListing(ctx context.Context, id uint) error
}

// Fetcher downloads and decodes a feed
type Fetcher interface {
	Fetch(ctx context.Context, url string, schema feed.Schema) (*feed.Document, error)
}

// Service handles the reconciliation of stored listings against a feed
type Service struct {
	store   Store
	media   MediaRemover
	index   Indexer
	fetcher Fetcher
	locks   state.Store
}

// NewService creates a new sweeper service. index and locks may be nil.
func NewService(store Store, media MediaRemover, index Indexer, fetcher Fetcher, locks state.Store) *Service {
	return &Service{store: store, media: media, index: index, fetcher: fetcher, locks: locks}
}

// SweepConfig holds configuration for a sweep
type SweepConfig struct {
	Source           string
	URL              string
	Schema           feed.Schema
	AuthorID         uint
	MaxDeletionCount int           // Maximum number of listings to delete in one run, <= 0 for no limit
	DryRun           bool          // If true, only log what would be deleted
	LockTTL          time.Duration // Run lock shared with the importer
}

// SweepResult holds the result of a sweep
type SweepResult struct {
	FeedCount    int       `json:"feed_count"`    // Distinct ids in the feed
	StoredCount  int       `json:"stored_count"`  // Listings of the source in the store
	TargetCount  int       `json:"target_count"`  // Listings absent from the feed
	DeletedCount int       `json:"deleted_count"` // Listings actually deleted
	MediaDeleted int       `json:"media_deleted"` // Media removed with them
	ErrorCount   int       `json:"error_count"`
	DryRun       bool      `json:"dry_run"`
	ExecutedAt   time.Time `json:"executed_at"`
	DeletedIDs   []string  `json:"deleted_ids"`
	Errors       []string  `json:"errors,omitempty"`
}

// Sweep deletes every stored listing of the source whose external id is
// missing from the current feed. It refuses to run on an empty or partial
// feed and when more than MaxDeletionCount listings would go.
func (s *Service) Sweep(ctx context.Context, cfg SweepConfig) (*SweepResult, error) {
	if s.locks != nil {
		ttl := cfg.LockTTL
		if ttl <= 0 {
			ttl = 25 * time.Minute
		}
		lock, err := state.AcquireLock(ctx, s.locks, state.LockKey(cfg.Source), ttl)
		if err != nil {
			return nil, err
		}
		defer lock.Release(context.Background())
	}

	result := &SweepResult{
		DryRun:     cfg.DryRun,
		ExecutedAt: time.Now(),
	}

	doc, err := s.fetcher.Fetch(ctx, cfg.URL, cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	if doc.Partial || len(doc.Records) == 0 {
		return nil, ErrUnsafeFeed
	}

	ids := lo.Uniq(doc.IDs())
	feedIDs := set.New(ids...)
	result.FeedCount = len(ids)

	stored, err := s.store.ListSourceListings(ctx, cfg.Source, cfg.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored listings: %w", err)
	}
	result.StoredCount = len(stored)

	var orphans []models.Listing
	for _, l := range stored {
		if !feedIDs.Contains(l.ExternalID) {
			orphans = append(orphans, l)
		}
	}
	result.TargetCount = len(orphans)

	if result.TargetCount == 0 {
		log.Printf("Sweeper: no orphaned %s listings found", cfg.Source)
		return result, nil
	}

	// Safety check: abort if too many listings would be deleted
	if cfg.MaxDeletionCount > 0 && result.TargetCount > cfg.MaxDeletionCount {
		return nil, fmt.Errorf("safety check failed: %d listings exceed max deletion limit of %d",
			result.TargetCount, cfg.MaxDeletionCount)
	}

	log.Printf("Sweeper: %d of %d %s listings are absent from the feed (dry-run: %v)",
		result.TargetCount, result.StoredCount, cfg.Source, cfg.DryRun)

	for i := range orphans {
		l := &orphans[i]
		if cfg.DryRun {
			log.Printf("[DRY-RUN] Would delete listing %d (ID %s, Title: %s)", l.ID, l.ExternalID, l.Title)
			result.DeletedIDs = append(result.DeletedIDs, l.ExternalID)
			result.DeletedCount++
			continue
		}

		mediaDeleted, err := s.media.DeleteAll(ctx, l)
		if err != nil {
			result.fail(fmt.Sprintf("Failed to delete media of listing %d: %v", l.ID, err))
			continue
		}
		result.MediaDeleted += mediaDeleted

		entry := &models.DeleteLog{
			ListingID:    l.ID,
			Source:       l.Source,
			ExternalID:   l.ExternalID,
			Title:        l.Title,
			MediaDeleted: mediaDeleted,
			Reason:       models.DeleteReasonAbsentFromFeed,
		}
		if err := s.store.DeleteListing(ctx, l, entry); err != nil {
			result.fail(fmt.Sprintf("Failed to delete listing %d: %v", l.ID, err))
			continue
		}

		if s.index != nil {
			if err := s.index.DeleteListing(ctx, l.ID); err != nil {
				log.Printf("Sweeper: failed to delete listing %d from search: %v", l.ID, err)
			}
		}

		log.Printf("Sweeper: deleted listing %d (ID %s, Title: %s, media: %d)", l.ID, l.ExternalID, l.Title, mediaDeleted)
		result.DeletedIDs = append(result.DeletedIDs, l.ExternalID)
		result.DeletedCount++
	}

	log.Printf("Sweeper: completed %d/%d deleted, %d media, %d errors (dry-run: %v)",
		result.DeletedCount, result.TargetCount, result.MediaDeleted, result.ErrorCount, cfg.DryRun)

	return result, nil
}

func (r *SweepResult) fail(msg string) {
	log.Printf("ERROR: %s", msg)
	r.Errors = append(r.Errors, msg)
	r.ErrorCount++
}
