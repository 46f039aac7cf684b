package models

import "time"

// ListingView holds the total view counter of a listing
type ListingView struct {
	ListingID uint      `gorm:"primaryKey" json:"listing_id"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (ListingView) TableName() string {
	return "listing_views"
}
