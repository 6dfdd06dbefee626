package models

import (
	"fmt"
	"strings"
)

// DefaultSearchLimit is the number of results returned when a query sets no limit.
const DefaultSearchLimit = 10

// MaxSemanticResults caps semantic search. A larger limit is clamped; a smaller one is honored.
const MaxSemanticResults = 10

// SearchQuery represents a search request.
type SearchQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`

	// Type and Fuzzy apply to keyword search only.
	Type  NodeType `json:"type,omitempty"`
	Fuzzy bool     `json:"fuzzy,omitempty"`
}

// Validate trims the query, rejects empty queries and normalizes Limit into [1, maxLimit].
// defaultLimit is used when Limit is unset; non-positive defaultLimit or maxLimit fall back to
// DefaultSearchLimit and 100.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrValidation)
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultSearchLimit
	}
	if maxLimit <= 0 {
		maxLimit = 100
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// SearchResult is a single semantic or keyword hit.
type SearchResult struct {
	Node       *KnowledgeNode `json:"node"`
	Similarity float64        `json:"similarity"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`

	// Suggestion is a spelling-corrected query offered when a keyword search finds nothing.
	Suggestion string `json:"suggestion,omitempty"`
}

// Stats summarizes the store for the status endpoint.
type Stats struct {
	Nodes               int64   `json:"nodes"`
	Connections         int64   `json:"connections"`
	EmbeddingDimensions int     `json:"embedding_dimensions"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	StorageDriver       string  `json:"storage_driver,omitempty"`
	DatabasePath        string  `json:"database_path,omitempty"`
	DiskUsageBytes      *int64  `json:"disk_usage_bytes,omitempty"`
}
