package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meilisearch/meilisearch-go"
)

type FilterParams struct {
	Query          string
	Source         string
	CategoryTermID uint
	CityTermID     uint
	MinPrice       *int64
	MaxPrice       *int64
	SortBy         string
	Limit          int64
}

// BuildFilter renders params as a Meilisearch filter expression
func BuildFilter(params FilterParams) string {
	var filters []string

	if params.Source != "" {
		filters = append(filters, fmt.Sprintf("source = '%s'", strings.ReplaceAll(params.Source, "'", "")))
	}
	if params.CategoryTermID != 0 {
		filters = append(filters, fmt.Sprintf("category_term_id = %d", params.CategoryTermID))
	}
	if params.CityTermID != 0 {
		filters = append(filters, fmt.Sprintf("city_term_id = %d", params.CityTermID))
	}

	// Price range filter
	if params.MinPrice != nil {
		filters = append(filters, fmt.Sprintf("price >= %d", *params.MinPrice))
	}
	if params.MaxPrice != nil {
		filters = append(filters, fmt.Sprintf("price <= %d", *params.MaxPrice))
	}

	return strings.Join(filters, " AND ")
}

// FilterSearch performs a filtered search over listing documents
func (s *SearchClient) FilterSearch(params FilterParams) ([]Document, int64, error) {
	// Default limit
	if params.Limit == 0 {
		params.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit: params.Limit,
	}

	if filterStr := BuildFilter(params); filterStr != "" {
		searchReq.Filter = filterStr
	}

	if params.SortBy != "" {
		searchReq.Sort = []string{params.SortBy}
	}

	searchRes, err := s.client.Index(s.index).Search(params.Query, searchReq)
	if err != nil {
		return nil, 0, err
	}

	// Convert hits to documents
	docs := make([]Document, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		hitJSON, err := json.Marshal(hit)
		if err != nil {
			continue
		}

		var doc Document
		if err := json.Unmarshal(hitJSON, &doc); err != nil {
			continue
		}

		docs = append(docs, doc)
	}

	return docs, searchRes.EstimatedTotalHits, nil
}
