package similarity

import "math"

// Cosine returns the cosine similarity of two dense vectors. Vectors of
// different length are compared over their common prefix. Zero or empty
// vectors score 0.
func Cosine(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}

	var dot, normA, normB float64

	for i := range n {
		dot += a[i] * b[i]
	}

	for _, v := range a {
		normA += v * v
	}

	for _, v := range b {
		normB += v * v
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
