package models

// Term is a taxonomy term a listing can be attached to
type Term struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Taxonomy string `gorm:"type:varchar(50);not null;uniqueIndex:idx_taxonomy_slug,priority:1" json:"taxonomy"`
	Slug     string `gorm:"type:varchar(191);not null;uniqueIndex:idx_taxonomy_slug,priority:2" json:"slug"`
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
}

// Taxonomies used by listings
const (
	TaxonomyCategory = "category"
	TaxonomyCity     = "city"
)

// TableName specifies the table name
func (Term) TableName() string {
	return "terms"
}

// ListingTerm attaches a term to a listing
type ListingTerm struct {
	ListingID uint   `gorm:"primaryKey" json:"listing_id"`
	TermID    uint   `gorm:"primaryKey" json:"term_id"`
	Taxonomy  string `gorm:"type:varchar(50);not null;index" json:"taxonomy"`

	Listing Listing `gorm:"foreignKey:ListingID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name
func (ListingTerm) TableName() string {
	return "listing_terms"
}
