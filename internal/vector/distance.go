package vector

import (
	"fmt"
	"math"

	"github.com/hyperjump/mieru/internal/linalg"
)

// Distance selects the similarity function for an index.
type Distance string

const (
	// DistanceCosine scores by cosine similarity.
	DistanceCosine Distance = "cosine"
	// DistanceDot scores by raw inner product.
	DistanceDot Distance = "dot"
	// DistanceEuclidean scores by negated L2 distance, so that higher is
	// still better and top-k ordering matches the other metrics.
	DistanceEuclidean Distance = "euclidean"
)

// ParseDistance maps a config/API string to a Distance. Empty defaults to
// cosine, matching the collection-creation default.
func ParseDistance(s string) (Distance, error) {
	switch Distance(s) {
	case DistanceCosine, "":
		return DistanceCosine, nil
	case DistanceDot:
		return DistanceDot, nil
	case DistanceEuclidean, "l2":
		return DistanceEuclidean, nil
	default:
		return "", fmt.Errorf("unknown distance %q (supported: cosine, dot, euclidean)", s)
	}
}

// score computes the similarity of query and candidate under d.
func (d Distance) score(query, candidate []float32) float64 {
	switch d {
	case DistanceDot:
		return linalg.Dot(query, candidate)
	case DistanceEuclidean:
		var sum float64
		for i := range query {
			diff := float64(query[i]) - float64(candidate[i])
			sum += diff * diff
		}
		return -math.Sqrt(sum)
	default:
		return linalg.CosineSimilarity(query, candidate)
	}
}
