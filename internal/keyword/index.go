// Package keyword provides keyword search over record metadata.
package keyword

import "context"

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	// When true, searches will match terms within the specified edit distance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true. Higher values are more lenient.
	Fuzziness int
}

// KeywordIndex defines keyword search operations over record metadata.
type KeywordIndex interface {
	Index(ctx context.Context, id int64, metadata map[string]interface{}) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error)
	Delete(ctx context.Context, id int64) error
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	ID    int64
	Score float64
}
