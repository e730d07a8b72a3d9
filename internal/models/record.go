// Package models defines core data structures for collections, vector records,
// and similarity search results.
package models

import "time"

// Collection describes a named set of vectors sharing one dimensionality
// and distance function.
type Collection struct {
	Name       string    `json:"name" db:"name"`
	Dimensions int       `json:"dimensions" db:"dimensions"`
	Distance   string    `json:"distance" db:"distance"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// VectorRecord is a stored vector with optional metadata. The record is
// owned by storage; consumers treat it as read-only.
type VectorRecord struct {
	ID        int64                  `json:"id" db:"id"`
	Vector    []float32              `json:"vector" db:"vector"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// SearchResult is a single similarity hit. ID refers to a VectorRecord in
// the same collection.
type SearchResult struct {
	ID       int64                  `json:"id"`
	Score    float64                `json:"score"`
	Vector   []float32              `json:"vector,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RecordInput is the input for inserting a vector record.
type RecordInput struct {
	Vector   []float32              `json:"vector"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
