package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realty-feed-sync/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBStore keeps state as rows of the options table.
type DBStore struct {
	db     *gorm.DB
	prefix string
	now    func() time.Time
}

// NewDBStore creates a DBStore; the options table must already be migrated.
func NewDBStore(db *gorm.DB, prefix string) *DBStore {
	return &DBStore{db: db, prefix: prefix, now: time.Now}
}

func (s *DBStore) Get(ctx context.Context, key string) (string, bool, error) {
	var opt models.Option
	err := s.db.WithContext(ctx).Where("name = ?", s.prefix+key).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read option %s: %w", key, err)
	}
	if opt.Expired(s.now()) {
		return "", false, nil
	}
	return opt.Value, true, nil
}

func (s *DBStore) Set(ctx context.Context, key, value string) error {
	opt := models.Option{Name: s.prefix + key, Value: value}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&opt).Error
	if err != nil {
		return fmt.Errorf("failed to write option %s: %w", key, err)
	}
	return nil
}

// SetNX clears an expired row first, then inserts only if no row remains.
func (s *DBStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	name := s.prefix + key
	now := s.now()
	acquired := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ? AND expires_at IS NOT NULL AND expires_at <= ?", name, now).
			Delete(&models.Option{}).Error; err != nil {
			return err
		}

		opt := models.Option{Name: name, Value: value}
		if ttl > 0 {
			expires := now.Add(ttl)
			opt.ExpiresAt = &expires
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&opt)
		if res.Error != nil {
			return res.Error
		}
		acquired = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to set option %s: %w", key, err)
	}
	return acquired, nil
}

func (s *DBStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("name = ?", s.prefix+key).Delete(&models.Option{}).Error; err != nil {
		return fmt.Errorf("failed to delete option %s: %w", key, err)
	}
	return nil
}
