// Package tfidf implements the term-weighting analyzer.
//
// Both factors are selectable per node:
//
//	tf:  raw | boolean | log | doubleNormalized | augmented
//	idf: standard | smooth | probabilistic
//
// The default pairing is log-normalized term frequency with smoothed
// inverse document frequency, tf = 1 + ln f and idf = ln(N/(1+df)) + 1,
// which keeps weights finite for terms present in every document.
// Tokenization matches the rest of the catalog: lowercased Unicode
// letter/digit runs, single-rune tokens dropped, stopwords stripped
// unless the node disables the filter.
package tfidf

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/axonworks/axon/pkg/alg/text"
	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
)

// Name is the atom name workflows reference.
const Name = "tfidf"

// Default variant selection.
const (
	DefaultTF  = "log"
	DefaultIDF = "smooth"
)

// ErrMissingQuery is returned when the node config carries neither a
// query nor a terms request.
var ErrMissingQuery = errors.New("tfidf: missing query")

// TermWeight pairs a term with its weight in one document.
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Model holds per-document term statistics for a fixed corpus.
type Model struct {
	freqs []map[string]int
	peaks []int
	df    map[string]int
	n     int
}

// NewModel tokenizes docs and builds the term statistics. When strip is
// true, stopwords are excluded.
func NewModel(docs []string, strip bool) *Model {
	m := &Model{
		freqs: make([]map[string]int, len(docs)),
		peaks: make([]int, len(docs)),
		df:    make(map[string]int),
		n:     len(docs),
	}

	for i, doc := range docs {
		tokens := text.Tokenize(doc)
		if strip {
			tokens = text.StripStopwords(tokens)
		}

		m.freqs[i] = text.Frequencies(tokens)

		for term, f := range m.freqs[i] {
			m.df[term]++

			if f > m.peaks[i] {
				m.peaks[i] = f
			}
		}
	}

	return m
}

// Score returns one tf-idf score per corpus document for the query, in
// corpus order. Query terms absent from the corpus contribute nothing.
func (m *Model) Score(query, tfVariant, idfVariant string) ([]float64, error) {
	tf, err := tfFunc(tfVariant)
	if err != nil {
		return nil, err
	}

	idf, err := idfFunc(idfVariant)
	if err != nil {
		return nil, err
	}

	terms := text.Tokenize(query)

	scores := make([]float64, m.n)

	for _, term := range terms {
		df := m.df[term]
		if df == 0 {
			continue
		}

		w := idf(m.n, df)

		for i := range m.freqs {
			scores[i] += tf(m.freqs[i][term], m.peaks[i]) * w
		}
	}

	return scores, nil
}

// TopTerms returns the limit heaviest terms of every document, in
// corpus order. Equal weights order alphabetically so output is
// reproducible.
func (m *Model) TopTerms(limit int, tfVariant, idfVariant string) ([][]TermWeight, error) {
	tf, err := tfFunc(tfVariant)
	if err != nil {
		return nil, err
	}

	idf, err := idfFunc(idfVariant)
	if err != nil {
		return nil, err
	}

	out := make([][]TermWeight, m.n)

	for i, freq := range m.freqs {
		weights := make([]TermWeight, 0, len(freq))
		for term, f := range freq {
			weights = append(weights, TermWeight{
				Term:   term,
				Weight: tf(f, m.peaks[i]) * idf(m.n, m.df[term]),
			})
		}

		slices.SortFunc(weights, func(a, b TermWeight) int {
			if a.Weight != b.Weight {
				return cmp.Compare(b.Weight, a.Weight)
			}
			return cmp.Compare(a.Term, b.Term)
		})

		if limit > 0 && len(weights) > limit {
			weights = weights[:limit:limit]
		}

		out[i] = weights
	}

	return out, nil
}

func tfFunc(variant string) (func(f, peak int) float64, error) {
	switch variant {
	case "raw":
		return func(f, _ int) float64 { return float64(f) }, nil
	case "boolean":
		return func(f, _ int) float64 {
			if f > 0 {
				return 1
			}
			return 0
		}, nil
	case "log":
		return func(f, _ int) float64 {
			if f <= 0 {
				return 0
			}
			return 1 + math.Log(float64(f))
		}, nil
	case "doubleNormalized", "augmented":
		return func(f, peak int) float64 {
			if f <= 0 || peak <= 0 {
				return 0
			}
			return 0.5 + 0.5*float64(f)/float64(peak)
		}, nil
	default:
		return nil, fmt.Errorf("tfidf: unknown tf variant %q", variant)
	}
}

func idfFunc(variant string) (func(n, df int) float64, error) {
	switch variant {
	case "standard":
		return func(n, df int) float64 {
			if df <= 0 {
				return 0
			}
			return math.Log(float64(n) / float64(df))
		}, nil
	case "smooth":
		return func(n, df int) float64 {
			return math.Log(float64(n)/float64(1+df)) + 1
		}, nil
	case "probabilistic":
		return func(n, df int) float64 {
			if df <= 0 || n <= df {
				return 0
			}
			// Floored at zero so common terms never subtract relevance.
			return math.Max(0, math.Log(float64(n-df)/float64(df)))
		}, nil
	default:
		return nil, fmt.Errorf("tfidf: unknown idf variant %q", variant)
	}
}

// Descriptor returns the contract and executor of the analyzer.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "weights window or batch documents with configurable tf-idf variants",
			Kind:        atom.KindAnalyzer,
			Lane:        atom.LaneFast,
			Reads:       []string{common.WindowReady, common.EntriesBatch},
			Writes:      []string{common.TFIDFResults, common.TFIDFTerms},
			BaseCost:    3,
			CostPerKB:   0.25,
		},
		Executor: run,
	}
}

func run(_ context.Context, rc *atom.RunContext) error {
	query := rc.Config.String("query", "")
	topTerms := rc.Config.Int("terms", 0)

	if query == "" && topTerms <= 0 {
		return ErrMissingQuery
	}

	entries := common.GatherEntries(rc)
	if entries == nil {
		entries = common.WindowEntries(rc)
	}

	if len(entries) == 0 {
		rc.Logger.Debug("no documents to weight", "node", rc.NodeID)
		return nil
	}

	docs := make([]string, len(entries))
	for i, e := range entries {
		docs[i] = e.Text
	}

	tfVariant := rc.Config.String("tf", DefaultTF)
	idfVariant := rc.Config.String("idf", DefaultIDF)

	model := NewModel(docs, rc.Config.Bool("stopwords", true))

	if query != "" {
		scores, err := model.Score(query, tfVariant, idfVariant)
		if err != nil {
			return err
		}

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

		rc.Emit(common.TFIDFResults, ranked)
	}

	if topTerms > 0 {
		perDoc, err := model.TopTerms(topTerms, tfVariant, idfVariant)
		if err != nil {
			return err
		}

		terms := make(map[string][]TermWeight, len(entries))
		for i, e := range entries {
			terms[e.Identity()] = perDoc[i]
		}

		rc.Emit(common.TFIDFTerms, terms)
	}

	return nil
}
