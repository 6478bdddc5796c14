// Package text provides the tokenizer shared by the lexical scorers (BM25,
// TF-IDF). Tokens are lowercased Unicode letter/digit runs.
package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinTokenRunes is the shortest token kept by Tokenize. Single-rune tokens
// carry no lexical signal and inflate document length.
const MinTokenRunes = 2

// Tokenize lowercases s and splits it into maximal letter/digit runs,
// dropping tokens shorter than MinTokenRunes. Token order follows the input.
// Returns nil when no token qualifies.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), isBoundary)

	tokens := fields[:0]

	for _, f := range fields {
		if utf8.RuneCountInString(f) >= MinTokenRunes {
			tokens = append(tokens, f)
		}
	}

	if len(tokens) == 0 {
		return nil
	}

	return tokens
}

// Frequencies returns the count of each distinct token.
func Frequencies(tokens []string) map[string]int {
	if len(tokens) == 0 {
		return nil
	}

	freq := make(map[string]int, len(tokens))

	for _, tok := range tokens {
		freq[tok]++
	}

	return freq
}

// isBoundary reports whether r separates tokens.
func isBoundary(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
