// Package bm25 implements the Okapi BM25 ranking analyzer.
//
// score(q, d) = Σ_t IDF(t) · tf·(k1+1) / (tf + k1·(1 − b + b·|d|/avgdl))
// IDF(t)     = ln((N − df + 0.5)/(df + 0.5) + 1)
//
// Documents are tokenized into lowercased Unicode letter/digit runs with
// single-rune tokens dropped; stopwords are excluded from both term
// statistics and document length unless the node disables that.
package bm25

import (
	"context"
	"errors"
	"math"
	"slices"

	"github.com/axonworks/axon/pkg/alg/text"
	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
)

// Name is the atom name workflows reference.
const Name = "bm25"

// Default tuning constants.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// ErrMissingQuery is returned when the node config carries no query.
var ErrMissingQuery = errors.New("bm25: missing query")

// Params are the BM25 tuning constants.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams returns k1=1.5, b=0.75.
func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}

// Saturation returns the term-frequency saturation factor
// tf·(k1+1) / (tf + k1·(1 − b + b·dl/avgdl)). It is monotone
// non-decreasing in tf and non-increasing in dl.
func (p Params) Saturation(tf, dl, avgdl float64) float64 {
	if tf <= 0 {
		return 0
	}

	norm := 1.0
	if avgdl > 0 {
		norm = 1 - p.B + p.B*dl/avgdl
	}

	return tf * (p.K1 + 1) / (tf + p.K1*norm)
}

// IDF returns the smoothed inverse document frequency
// ln((n − df + 0.5)/(df + 0.5) + 1) for a term appearing in df of n
// documents. It is always positive.
func IDF(n, df int) float64 {
	return math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1)
}

// Ranker scores queries against a fixed tokenized corpus.
type Ranker struct {
	params Params

	docs  [][]string
	freqs []map[string]int
	df    map[string]int
	avgdl float64
}

// NewRanker tokenizes docs and builds the term statistics. When strip is
// true, stopwords are excluded.
func NewRanker(docs []string, params Params, strip bool) *Ranker {
	r := &Ranker{
		params: params,
		docs:   make([][]string, len(docs)),
		freqs:  make([]map[string]int, len(docs)),
		df:     make(map[string]int),
	}

	var total int

	for i, doc := range docs {
		tokens := text.Tokenize(doc)
		if strip {
			tokens = text.StripStopwords(tokens)
		}

		r.docs[i] = tokens
		r.freqs[i] = text.Frequencies(tokens)
		total += len(tokens)

		for term := range r.freqs[i] {
			r.df[term]++
		}
	}

	if len(docs) > 0 {
		r.avgdl = float64(total) / float64(len(docs))
	}

	return r
}

// Score returns one BM25 score per corpus document for the query, in
// corpus order.
func (r *Ranker) Score(query string) []float64 {
	terms := text.Tokenize(query)

	scores := make([]float64, len(r.docs))

	for _, term := range terms {
		df := r.df[term]
		if df == 0 {
			continue
		}

		idf := IDF(len(r.docs), df)

		for i := range r.docs {
			tf := float64(r.freqs[i][term])
			scores[i] += idf * r.params.Saturation(tf, float64(len(r.docs[i])), r.avgdl)
		}
	}

	return scores
}

// Descriptor returns the contract and executor of the analyzer.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "ranks window or batch documents against a query with Okapi BM25",
			Kind:        atom.KindAnalyzer,
			Lane:        atom.LaneFast,
			Reads:       []string{common.WindowReady, common.EntriesBatch},
			Writes:      []string{common.BM25Results},
			BaseCost:    3,
			CostPerKB:   0.25,
		},
		Executor: run,
	}
}

func run(_ context.Context, rc *atom.RunContext) error {
	query := rc.Config.String("query", "")
	if query == "" {
		return ErrMissingQuery
	}

	entries := common.GatherEntries(rc)
	if entries == nil {
		entries = common.WindowEntries(rc)
	}

	docs := make([]string, len(entries))
	for i, e := range entries {
		docs[i] = e.Text
	}

	params := Params{
		K1: rc.Config.Float("k1", DefaultK1),
		B:  rc.Config.Float("b", DefaultB),
	}

	ranker := NewRanker(docs, params, rc.Config.Bool("stopwords", true))
	scores := ranker.Score(query)

	ranked := make([]common.Scored, len(entries))
	for i, e := range entries {
		ranked[i] = common.Scored{Entry: e, Score: scores[i]}
	}

	// Descending by score; equal scores keep insertion order.
	slices.SortStableFunc(ranked, func(a, b common.Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	rc.Emit(common.BM25Results, ranked)

	return nil
}
