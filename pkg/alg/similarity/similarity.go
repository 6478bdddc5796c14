// Package similarity provides the string similarity measures used by the
// dedup constrainer: Levenshtein, Jaro–Winkler, character-bigram cosine, and
// the weighted blend of the three.
//
// All measures return a score in [0, 1] where 1 means identical. They operate
// on runes, so multi-byte characters count as single edit units.
package similarity

// Blend weights. The blend favors Jaro–Winkler because it tolerates the
// small prefix edits that dominate near-duplicate signal payloads.
const (
	WeightJaroWinkler = 0.5
	WeightLevenshtein = 0.3
	WeightBigram      = 0.2
)

// DefaultThreshold is the blended score at or above which two strings are
// considered duplicates.
const DefaultThreshold = 0.9

// Blend returns the weighted combination of Jaro–Winkler similarity,
// normalized Levenshtein similarity, and bigram cosine similarity.
func Blend(a, b string) float64 {
	return WeightJaroWinkler*JaroWinkler(a, b) +
		WeightLevenshtein*LevenshteinSimilarity(a, b) +
		WeightBigram*BigramCosine(a, b)
}
