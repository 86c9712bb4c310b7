package store

import (
	"fmt"
	"math"
)

// Metric names a distance function. Every metric returns a distance:
// lower means more similar, and identical vectors score 0 under cosine and l2.
type Metric string

const (
	// Cosine is 1 - cosine similarity, in [0, 2].
	Cosine Metric = "cosine"

	// L2 is the squared Euclidean distance.
	L2 Metric = "l2"

	// InnerProduct is 1 - dot product.
	InnerProduct Metric = "ip"
)

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case Cosine, L2, InnerProduct:
		return Metric(s), nil
	case "":
		return Cosine, nil
	default:
		return "", fmt.Errorf("unsupported distance metric: %q", s)
	}
}

// Distance computes the metric between two vectors of equal length.
func (m Metric) Distance(a, b []float32) float64 {
	switch m {
	case L2:
		return squaredL2(a, b)
	case InnerProduct:
		return 1 - dot(a, b)
	default:
		return 1 - cosineSimilarity(a, b)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// cosineSimilarity calculates the cosine similarity between two vectors.
// A zero vector has similarity 0 with everything.
func cosineSimilarity(a, b []float32) float64 {
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push identical vectors slightly past 1
	if sim > 1 {
		sim = 1
	}
	return sim
}
