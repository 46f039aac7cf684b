package feed

// Schema names a feed's record layout.
type Schema string

const (
	// SchemaRealty is a flat <realty> record keyed by tag names.
	SchemaRealty Schema = "realty"
	// SchemaOffer is an <offer internal-id="..."> record with nested groups.
	SchemaOffer Schema = "offer"
)

// Record is one parsed feed entry. Every field is optional: an empty string
// means the feed did not carry it.
type Record struct {
	ExternalID string

	Title       string
	Description string

	Price    string
	Currency string
	CostType string

	// OfferType and PropertyType build the category key.
	OfferType    string
	PropertyType string
	// PropertyLabel is the human-readable property kind, used in composed titles.
	PropertyLabel string

	City      string
	Region    string
	CityLabel string
	Street    string
	House     string
	Latitude  string
	Longitude string

	Rooms      string
	Floor      string
	Floors     string
	LivingArea string
	TotalArea  string

	FixedPhone string
	Phone      string
	Email      string
	OwnerName  string
	OwnerType  string

	Photos []string

	TextHash  string
	ImageHash string
}

// HasHashes reports whether the feed itself supplied change hashes.
func (r *Record) HasHashes() bool {
	return r.TextHash != "" || r.ImageHash != ""
}
