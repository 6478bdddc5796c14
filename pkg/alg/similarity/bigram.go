package similarity

import "math"

// BigramCosine returns the cosine similarity of the character-bigram count
// vectors of a and b. Strings shorter than two runes have no bigrams; in
// that case the score is 1 when the strings are equal and 0 otherwise.
func BigramCosine(a, b string) float64 {
	ba := bigramCounts(a)
	bb := bigramCounts(b)

	if len(ba) == 0 || len(bb) == 0 {
		if a == b {
			return 1
		}

		return 0
	}

	var dot, normA, normB float64

	for gram, ca := range ba {
		normA += float64(ca * ca)

		if cb, ok := bb[gram]; ok {
			dot += float64(ca * cb)
		}
	}

	for _, cb := range bb {
		normB += float64(cb * cb)
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// bigramCounts returns the multiset of adjacent rune pairs in s.
func bigramCounts(s string) map[[2]rune]int {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}

	counts := make(map[[2]rune]int, len(runes)-1)

	for i := 0; i < len(runes)-1; i++ {
		counts[[2]rune{runes[i], runes[i+1]}]++
	}

	return counts
}
