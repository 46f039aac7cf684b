package search

import (
	"testing"
	"time"

	"realty-feed-sync/internal/models"
)

func TestBuildFilter(t *testing.T) {
	lo, hi := int64(100000), int64(2000000)
	tests := []struct {
		name   string
		params FilterParams
		want   string
	}{
		{"empty", FilterParams{}, ""},
		{"source", FilterParams{Source: "aspo"}, "source = 'aspo'"},
		{"quoted source", FilterParams{Source: "as'po"}, "source = 'aspo'"},
		{
			"all",
			FilterParams{Source: "flatprime", CategoryTermID: 3, CityTermID: 9, MinPrice: &lo, MaxPrice: &hi},
			"source = 'flatprime' AND category_term_id = 3 AND city_term_id = 9 AND price >= 100000 AND price <= 2000000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildFilter(tt.params); got != tt.want {
				t.Errorf("got %q; want %q", got, tt.want)
			}
		})
	}
}

func TestNewDocument(t *testing.T) {
	updated := time.Unix(1700000000, 0)
	doc := NewDocument(&models.Listing{
		ID:              5,
		Source:          "aspo",
		ExternalID:      "A5",
		PriceNormalized: 41250,
		Status:          models.ListingStatusPublish,
		UpdatedAt:       updated,
	})
	if doc.ID != 5 || doc.Price != 41250 || doc.Status != "publish" || doc.UpdatedAt != 1700000000 {
		t.Errorf("got %+v", doc)
	}
}
