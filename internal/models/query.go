package models

import "fmt"

// SimilarityQuery represents a similarity search request against one collection.
// Exactly one of Vector or Text must be set; Text is embedded server-side.
type SimilarityQuery struct {
	Collection string    `json:"collection"`
	Vector     []float32 `json:"vector,omitempty"`
	Text       string    `json:"text,omitempty"`
	K          int       `json:"k,omitempty"`
}

// Validate ensures the query has valid fields and sets defaults.
// Returns an error if no query vector or text is given; otherwise normalizes K.
func (q *SimilarityQuery) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	if len(q.Vector) == 0 && q.Text == "" {
		return fmt.Errorf("query requires a vector or text")
	}
	if len(q.Vector) > 0 && q.Text != "" {
		return fmt.Errorf("query accepts a vector or text, not both")
	}
	if q.K <= 0 {
		q.K = 10
	}
	if q.K > 100 {
		q.K = 100
	}
	return nil
}

// SimilarityResponse is the response for a similarity search request.
type SimilarityResponse struct {
	Results   []*SearchResult `json:"results"`
	Query     []float32       `json:"query,omitempty"`
	QueryTime int64           `json:"query_time_ms"`
}
