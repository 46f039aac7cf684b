package models

import "time"

// Listing is the canonical, normalized representation of a feed record.
// (source, external_id) is unique.
type Listing struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Source     string `gorm:"type:varchar(50);not null;uniqueIndex:idx_source_external,priority:1" json:"source"`
	ExternalID string `gorm:"type:varchar(100);not null;uniqueIndex:idx_source_external,priority:2" json:"external_id"`

	// Content
	Title       string `gorm:"type:text;not null" json:"title"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Excerpt     string `gorm:"type:text" json:"excerpt,omitempty"`

	// Price
	PriceLocal      float64 `gorm:"type:decimal(14,2)" json:"price_local"`
	PriceNormalized int64   `gorm:"type:bigint;index" json:"price"`
	Currency        string  `gorm:"type:varchar(10)" json:"currency,omitempty"`

	// Taxonomy (denormalized from listing_terms)
	CategoryTermID uint `gorm:"index" json:"category_term_id"`
	CityTermID     uint `gorm:"index" json:"city_term_id"`

	// Location
	Latitude  *float64 `gorm:"type:decimal(10,7)" json:"latitude,omitempty"`
	Longitude *float64 `gorm:"type:decimal(10,7)" json:"longitude,omitempty"`
	Location  string   `gorm:"type:text" json:"location,omitempty"`

	// Contact
	Phone     string    `gorm:"type:varchar(50)" json:"phone"`
	Email     string    `gorm:"type:varchar(255)" json:"email,omitempty"`
	OwnerName string    `gorm:"type:varchar(255)" json:"owner_name,omitempty"`
	OwnerType OwnerType `gorm:"type:varchar(20)" json:"owner_type,omitempty"`

	// Attributes
	Rooms          int     `gorm:"type:int" json:"rooms,omitempty"`
	Floor          int     `gorm:"type:int" json:"floor,omitempty"`
	BuildingLevels int     `gorm:"type:int" json:"building_levels,omitempty"`
	LivingArea     float64 `gorm:"type:decimal(10,2)" json:"living_area,omitempty"`
	TotalArea      float64 `gorm:"type:decimal(10,2)" json:"total_area,omitempty"`

	// Change detection
	TextHash  string `gorm:"type:varchar(64)" json:"-"`
	ImageHash string `gorm:"type:varchar(64)" json:"-"`

	ThumbnailID uint          `json:"thumbnail_id,omitempty"`
	AuthorID    uint          `gorm:"not null;index" json:"author_id"`
	ParentID    uint          `json:"parent_id,omitempty"`
	Status      ListingStatus `gorm:"type:varchar(20);not null;default:'publish';index" json:"status"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// ListingStatus is the publication state of a listing
type ListingStatus string

const (
	ListingStatusPublish ListingStatus = "publish"
	ListingStatusDraft   ListingStatus = "draft"
)

// OwnerType is who placed the listing
type OwnerType string

const (
	OwnerTypeOwner         OwnerType = "owner"
	OwnerTypeAgent         OwnerType = "agent"
	OwnerTypeDelegateOwner OwnerType = "delegate-owner"
)

// ParseOwnerType returns the owner type for a raw feed token, or "" when unknown
func ParseOwnerType(raw string) OwnerType {
	switch t := OwnerType(raw); t {
	case OwnerTypeOwner, OwnerTypeAgent, OwnerTypeDelegateOwner:
		return t
	}
	return ""
}

// TableName specifies the table name
func (Listing) TableName() string {
	return "listings"
}

// HasHashes reports whether change-detection hashes were ever stored
func (l *Listing) HasHashes() bool {
	return l.TextHash != "" || l.ImageHash != ""
}
