package similarity

// Winkler prefix boost parameters (Winkler 1990).
const (
	winklerPrefixScale  = 0.1
	winklerPrefixMax    = 4
	winklerBoostMinJaro = 0.7
)

// JaroWinkler returns the Jaro–Winkler similarity of a and b. The Winkler
// prefix boost is applied only when the base Jaro similarity exceeds 0.7,
// with at most 4 prefix runes counted.
func JaroWinkler(a, b string) float64 {
	s1 := []rune(a)
	s2 := []rune(b)

	j := jaro(s1, s2)
	if j <= winklerBoostMinJaro {
		return j
	}

	prefix := 0
	for prefix < len(s1) && prefix < len(s2) && prefix < winklerPrefixMax {
		if s1[prefix] != s2[prefix] {
			break
		}

		prefix++
	}

	return j + float64(prefix)*winklerPrefixScale*(1-j)
}

// jaro returns the base Jaro similarity: the average of the match ratios of
// both strings and the transposition ratio of the matched runes.
func jaro(s1, s2 []rune) float64 {
	len1 := len(s1)
	len2 := len(s2)

	if len1 == 0 && len2 == 0 {
		return 1
	}

	if len1 == 0 || len2 == 0 {
		return 0
	}

	// Runes match when equal and within half the longer length of each other.
	window := max(len1, len2)/2 - 1
	if window < 0 {
		window = 0
	}

	matched1 := make([]bool, len1)
	matched2 := make([]bool, len2)

	matches := 0

	for i := range s1 {
		lo := max(0, i-window)
		hi := min(len2-1, i+window)

		for k := lo; k <= hi; k++ {
			if matched2[k] || s1[i] != s2[k] {
				continue
			}

			matched1[i] = true
			matched2[k] = true
			matches++

			break
		}
	}

	if matches == 0 {
		return 0
	}

	// Count transpositions among matched runes in order.
	transpositions := 0
	k := 0

	for i := range s1 {
		if !matched1[i] {
			continue
		}

		for !matched2[k] {
			k++
		}

		if s1[i] != s2[k] {
			transpositions++
		}

		k++
	}

	m := float64(matches)
	t := float64(transpositions / 2)

	return (m/float64(len1) + m/float64(len2) + (m-t)/m) / 3
}
