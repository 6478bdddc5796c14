package text

import "strings"

// stopwordList holds the function words the lexical scorers exclude from
// both term statistics and document length. The list is deliberately
// small; domain-specific filtering belongs in atom config.
var stopwordList = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for",
	"if", "in", "into", "is", "it", "no", "not", "of", "on", "or",
	"such", "that", "the", "their", "then", "there", "these", "they",
	"this", "to", "was", "will", "with",
}

var stopwords = func() map[string]bool {
	m := make(map[string]bool, len(stopwordList))
	for _, w := range stopwordList {
		m[w] = true
	}

	return m
}()

// IsStopword reports whether the lowercased form of tok is a stopword.
func IsStopword(tok string) bool {
	return stopwords[strings.ToLower(tok)]
}

// StripStopwords returns tokens with stopwords removed, preserving order.
// The input slice is not modified.
func StripStopwords(tokens []string) []string {
	out := make([]string, 0, len(tokens))

	for _, tok := range tokens {
		if !stopwords[tok] {
			out = append(out, tok)
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
