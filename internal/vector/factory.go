package vector

import "fmt"

// NewIndex creates an index by type name. An empty type selects the
// in-memory brute-force index.
func NewIndex(indexType string, dimensions int, distance Distance) (Index, error) {
	switch indexType {
	case "", "memory":
		return NewMemoryIndex(dimensions, distance)
	default:
		return nil, fmt.Errorf("unknown index type %q (supported: memory)", indexType)
	}
}
