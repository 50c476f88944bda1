package relevance

import "math"

// CosineSimilarity compares two sparse term vectors. Missing terms count as
// zero. It returns 0 when either vector has zero norm.
func CosineSimilarity(a, b map[string]float64) float64 {
	dot, normA, normB := 0.0, 0.0, 0.0
	for term, va := range a {
		normA += va * va
		if vb, ok := b[term]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push a self-comparison just past 1
	return math.Min(sim, 1)
}
