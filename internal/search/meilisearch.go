package search

import (
	"context"
	"strconv"
	"strings"

	"github.com/meilisearch/meilisearch-go"

	"realty-feed-sync/internal/models"
)

// Document is the search representation of a listing
type Document struct {
	ID             uint    `json:"id"`
	Source         string  `json:"source"`
	ExternalID     string  `json:"external_id"`
	Title          string  `json:"title"`
	Excerpt        string  `json:"excerpt"`
	Price          int64   `json:"price"`
	Currency       string  `json:"currency"`
	CategoryTermID uint    `json:"category_term_id"`
	CityTermID     uint    `json:"city_term_id"`
	Location       string  `json:"location"`
	Rooms          int     `json:"rooms"`
	Floor          int     `json:"floor"`
	TotalArea      float64 `json:"total_area"`
	ThumbnailID    uint    `json:"thumbnail_id"`
	AuthorID       uint    `json:"author_id"`
	Status         string  `json:"status"`
	UpdatedAt      int64   `json:"updated_at"`
}

// NewDocument derives the search document of l
func NewDocument(l *models.Listing) Document {
	return Document{
		ID:             l.ID,
		Source:         l.Source,
		ExternalID:     l.ExternalID,
		Title:          l.Title,
		Excerpt:        l.Excerpt,
		Price:          l.PriceNormalized,
		Currency:       l.Currency,
		CategoryTermID: l.CategoryTermID,
		CityTermID:     l.CityTermID,
		Location:       l.Location,
		Rooms:          l.Rooms,
		Floor:          l.Floor,
		TotalArea:      l.TotalArea,
		ThumbnailID:    l.ThumbnailID,
		AuthorID:       l.AuthorID,
		Status:         string(l.Status),
		UpdatedAt:      l.UpdatedAt.Unix(),
	}
}

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey, index string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	if index == "" {
		index = "listings"
	}
	return &SearchClient{
		client: client,
		index:  index,
	}
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	// Create index if it doesn't exist
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	// Ignore error if index already exists
	if err != nil && !strings.Contains(err.Error(), "index_already_exists") {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"title",
		"excerpt",
		"location",
		"external_id",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"source",
		"category_term_id",
		"city_term_id",
		"price",
		"rooms",
		"author_id",
		"status",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"price",
		"total_area",
		"updated_at",
	})
	return err
}

// IndexListing adds or replaces the document of a listing
func (s *SearchClient) IndexListing(_ context.Context, l *models.Listing) error {
	_, err := s.client.Index(s.index).AddDocuments([]Document{NewDocument(l)})
	return err
}

// DeleteListing removes the document of a listing
func (s *SearchClient) DeleteListing(_ context.Context, id uint) error {
	_, err := s.client.Index(s.index).DeleteDocument(strconv.FormatUint(uint64(id), 10))
	return err
}

// Noop is used when no search engine is configured
type Noop struct{}

func (Noop) IndexListing(context.Context, *models.Listing) error { return nil }

func (Noop) DeleteListing(context.Context, uint) error { return nil }
