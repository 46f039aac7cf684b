package models

import "time"

// ListingMedia is an image attachment stored for a listing
type ListingMedia struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID uint      `gorm:"not null;index" json:"listing_id"`
	SourceURL string    `gorm:"type:text" json:"source_url"`
	Path      string    `gorm:"type:varchar(500);not null" json:"path"`
	MimeType  string    `gorm:"type:varchar(50)" json:"mime_type"`
	SortOrder int       `gorm:"not null;default:0;index" json:"sort_order"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for ListingMedia
func (ListingMedia) TableName() string {
	return "listing_media"
}
