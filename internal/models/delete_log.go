package models

import "time"

// DeleteLog represents a record of a permanently deleted listing
type DeleteLog struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID    uint      `gorm:"not null;index" json:"listing_id"`
	Source       string    `gorm:"type:varchar(50);not null;index" json:"source"`
	ExternalID   string    `gorm:"type:varchar(100)" json:"external_id"`
	Title        string    `gorm:"type:text" json:"title"`
	MediaDeleted int       `gorm:"not null;default:0" json:"media_deleted"`
	DeletedAt    time.Time `gorm:"not null;autoCreateTime;index" json:"deleted_at"`
	Reason       string    `gorm:"type:varchar(50);not null" json:"reason"`
}

// TableName specifies the table name
func (DeleteLog) TableName() string {
	return "delete_logs"
}

// DeleteReason constants
const (
	DeleteReasonAbsentFromFeed = "absent_from_feed"
	DeleteReasonManual         = "manual_deletion"
)
