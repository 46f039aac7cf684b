package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"realty-feed-sync/internal/models"
)

// CreateRun stores a new run row
func (gdb *GormDB) CreateRun(ctx context.Context, run *models.SyncRun) error {
	return gdb.db.WithContext(ctx).Create(run).Error
}

// UpdateRun saves the counters and status of a run
func (gdb *GormDB) UpdateRun(ctx context.Context, run *models.SyncRun) error {
	return gdb.db.WithContext(ctx).Save(run).Error
}

// ListRuns returns the most recent runs, optionally of one source
func (gdb *GormDB) ListRuns(ctx context.Context, source string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}
	q := gdb.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	var runs []models.SyncRun
	err := q.Find(&runs).Error
	return runs, err
}

// LastRun returns the latest run of a source and kind, or nil
func (gdb *GormDB) LastRun(ctx context.Context, source string, kind models.RunKind) (*models.SyncRun, error) {
	var run models.SyncRun
	err := gdb.db.WithContext(ctx).
		Where("source = ? AND kind = ?", source, kind).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRecentDeleteLogs returns recent delete log entries
func (gdb *GormDB) GetRecentDeleteLogs(ctx context.Context, source string, limit int) ([]models.DeleteLog, error) {
	if limit <= 0 {
		limit = 50
	}
	q := gdb.db.WithContext(ctx).Order("deleted_at DESC").Limit(limit)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	var logs []models.DeleteLog
	err := q.Find(&logs).Error
	return logs, err
}

// GetDeleteStats returns statistics about deleted listings
func (gdb *GormDB) GetDeleteStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	db := gdb.db.WithContext(ctx)

	// Total delete logs
	var totalDeleted int64
	if err := db.Model(&models.DeleteLog{}).Count(&totalDeleted).Error; err != nil {
		return nil, err
	}
	stats["total_deleted"] = totalDeleted

	// Delete logs by source
	var sourceCounts []struct {
		Source string
		Count  int64
	}
	if err := db.Model(&models.DeleteLog{}).
		Select("source, count(*) as count").
		Group("source").
		Scan(&sourceCounts).Error; err != nil {
		return nil, err
	}

	sourceMap := make(map[string]int64)
	for _, sc := range sourceCounts {
		sourceMap[sc.Source] = sc.Count
	}
	stats["by_source"] = sourceMap

	// Recent deletions (last 30 days)
	var recentDeleted int64
	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	if err := db.Model(&models.DeleteLog{}).
		Where("deleted_at >= ?", thirtyDaysAgo).
		Count(&recentDeleted).Error; err != nil {
		return nil, err
	}
	stats["deleted_last_30_days"] = recentDeleted

	return stats, nil
}
