package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"realty-feed-sync/internal/models"
)

// FindListing returns the listing of (source, externalID), or nil when none exists
func (gdb *GormDB) FindListing(ctx context.Context, source, externalID string) (*models.Listing, error) {
	var l models.Listing
	err := gdb.db.WithContext(ctx).
		Where("source = ? AND external_id = ?", source, externalID).
		First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// SaveListing creates the listing or updates every column of an existing one
func (gdb *GormDB) SaveListing(ctx context.Context, l *models.Listing) error {
	if l.Status == "" {
		l.Status = models.ListingStatusPublish
	}
	if l.ID == 0 {
		return gdb.db.WithContext(ctx).Create(l).Error
	}
	return gdb.db.WithContext(ctx).Save(l).Error
}

// SetListingHashes stores the change-detection hashes without touching the rest
func (gdb *GormDB) SetListingHashes(ctx context.Context, id uint, textHash, imageHash string) error {
	return gdb.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"text_hash": textHash, "image_hash": imageHash}).Error
}

// ListTerms returns every taxonomy term
func (gdb *GormDB) ListTerms(ctx context.Context) ([]models.Term, error) {
	var terms []models.Term
	err := gdb.db.WithContext(ctx).Order("taxonomy, slug").Find(&terms).Error
	return terms, err
}

// EnsureTerms creates the terms that do not exist yet, matched by (taxonomy, slug)
func (gdb *GormDB) EnsureTerms(ctx context.Context, terms []models.Term) error {
	terms = lo.UniqBy(terms, func(t models.Term) string { return t.Taxonomy + "/" + t.Slug })
	if len(terms) == 0 {
		return nil
	}
	return gdb.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&terms).Error
}

// SetListingTerms replaces the listing's terms in each taxonomy of terms
func (gdb *GormDB) SetListingTerms(ctx context.Context, listingID uint, terms []models.Term) error {
	taxonomies := make([]string, 0, len(terms))
	rows := make([]models.ListingTerm, 0, len(terms))
	for _, t := range terms {
		if t.ID == 0 {
			continue
		}
		taxonomies = append(taxonomies, t.Taxonomy)
		rows = append(rows, models.ListingTerm{ListingID: listingID, TermID: t.ID, Taxonomy: t.Taxonomy})
	}
	if len(rows) == 0 {
		return nil
	}

	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ? AND taxonomy IN ?", listingID, taxonomies).
			Delete(&models.ListingTerm{}).Error; err != nil {
			return fmt.Errorf("failed to detach terms: %w", err)
		}
		if err := tx.Omit("Listing").Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to attach terms: %w", err)
		}
		return nil
	})
}

// ListSourceListings returns the listings of a source owned by authorID
func (gdb *GormDB) ListSourceListings(ctx context.Context, source string, authorID uint) ([]models.Listing, error) {
	var listings []models.Listing
	err := gdb.db.WithContext(ctx).
		Select("id", "source", "external_id", "title", "thumbnail_id", "author_id").
		Where("source = ? AND author_id = ?", source, authorID).
		Order("id").
		Find(&listings).Error
	return listings, err
}

// DeleteListing permanently removes a listing with its terms, views and
// media rows, and writes the delete log in the same transaction
func (gdb *GormDB) DeleteListing(ctx context.Context, l *models.Listing, entry *models.DeleteLog) error {
	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to create delete log: %w", err)
		}
		if err := tx.Where("listing_id = ?", l.ID).Delete(&models.ListingTerm{}).Error; err != nil {
			return fmt.Errorf("failed to delete terms: %w", err)
		}
		if err := tx.Where("listing_id = ?", l.ID).Delete(&models.ListingView{}).Error; err != nil {
			return fmt.Errorf("failed to delete views: %w", err)
		}
		if err := tx.Where("listing_id = ?", l.ID).Delete(&models.ListingMedia{}).Error; err != nil {
			return fmt.Errorf("failed to delete media: %w", err)
		}
		if err := tx.Delete(&models.Listing{}, l.ID).Error; err != nil {
			return fmt.Errorf("failed to delete listing: %w", err)
		}
		return nil
	})
}

// ListMedia returns the media of a listing in display order
func (gdb *GormDB) ListMedia(ctx context.Context, listingID uint) ([]models.ListingMedia, error) {
	var media []models.ListingMedia
	err := gdb.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("sort_order, id").
		Find(&media).Error
	return media, err
}

// CreateMedia stores a media row
func (gdb *GormDB) CreateMedia(ctx context.Context, m *models.ListingMedia) error {
	return gdb.db.WithContext(ctx).Create(m).Error
}

// DeleteMedia removes media rows by id
func (gdb *GormDB) DeleteMedia(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return gdb.db.WithContext(ctx).Delete(&models.ListingMedia{}, ids).Error
}

// CountListings returns the number of listings per source
func (gdb *GormDB) CountListings(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Source string
		Count  int64
	}
	if err := gdb.db.WithContext(ctx).Model(&models.Listing{}).
		Select("source, count(*) as count").
		Group("source").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Source] = r.Count
	}
	return counts, nil
}
