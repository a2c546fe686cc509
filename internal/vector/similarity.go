package vector

import "math"

// CosineDistance returns 1 - cosine similarity between a and b.
// Returns 1 (orthogonal) when either vector is empty or zero.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i] * b[i])
		na += float64(a[i] * a[i])
		nb += float64(b[i] * b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Relevance maps cosine distance to a higher-is-better score: 1 - distance.
// This is the single distance-to-relevance mapping used across the system;
// threshold comparisons are only meaningful under this mapping.
func Relevance(distance float64) float64 {
	return 1 - distance
}
