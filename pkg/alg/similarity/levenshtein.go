package similarity

// Levenshtein returns the edit distance between a and b: the minimum number
// of single-rune insertions, deletions, and substitutions transforming one
// into the other. Space is O(min(m, n)).
func Levenshtein(a, b string) int {
	s1 := []rune(a)
	s2 := []rune(b)

	// Keep the shorter string in s1 so the row buffer stays small.
	if len(s1) > len(s2) {
		s1, s2 = s2, s1
	}

	if len(s1) == 0 {
		return len(s2)
	}

	prev := make([]int, len(s1)+1)
	curr := make([]int, len(s1)+1)

	for i := range prev {
		prev[i] = i
	}

	for j, rb := range s2 {
		curr[0] = j + 1

		for i, ra := range s1 {
			cost := 0
			if ra != rb {
				cost = 1
			}

			curr[i+1] = min(prev[i+1]+1, curr[i]+1, prev[i]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(s1)]
}

// LevenshteinSimilarity returns 1 − distance/maxLen, a similarity in [0, 1].
// Two empty strings are identical (similarity 1).
func LevenshteinSimilarity(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))

	longest := max(la, lb)
	if longest == 0 {
		return 1
	}

	return 1 - float64(Levenshtein(a, b))/float64(longest)
}
