// Package mmr implements maximal-marginal-relevance reranking.
//
// Selection is greedy: each round picks the candidate maximizing
//
//	λ·rel(d) − (1−λ)·max_{s∈S} cos(d, s)
//
// where rel(d) is the cosine similarity to the query embedding when both
// embeddings are present, otherwise the candidate's upstream score.
// Candidates without embeddings incur no diversity penalty. Selected
// entries keep their upstream score; the output order is the result.
package mmr

import (
	"context"
	"math"

	"github.com/axonworks/axon/pkg/alg/similarity"
	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
)

// Name is the atom name workflows reference.
const Name = "mmr"

// Default tuning constants.
const (
	DefaultLambda = 0.7
	DefaultTopK   = 10
)

// Select returns up to limit candidates in maximal-marginal-relevance
// order. A limit outside (0, len] selects everything. Ties pick the
// earlier candidate.
func Select(candidates []common.Scored, query []float64, lambda float64, limit int) []common.Scored {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	if lambda < 0 || lambda > 1 {
		lambda = DefaultLambda
	}

	rel := make([]float64, len(candidates))
	for i, c := range candidates {
		rel[i] = c.Score
		if len(query) > 0 && len(c.Embedding) > 0 {
			rel[i] = similarity.Cosine(query, c.Embedding)
		}
	}

	selected := make([]common.Scored, 0, limit)
	picked := make([]bool, len(candidates))

	for len(selected) < limit {
		best := -1
		bestObjective := math.Inf(-1)

		for i := range candidates {
			if picked[i] {
				continue
			}

			objective := lambda * rel[i]
			if len(selected) > 0 {
				objective -= (1 - lambda) * maxSimToPicked(candidates, picked, i)
			}

			if objective > bestObjective {
				bestObjective = objective
				best = i
			}
		}

		if best < 0 {
			break
		}

		picked[best] = true
		selected = append(selected, candidates[best])
	}

	return selected
}

// maxSimToPicked returns the highest embedding similarity between
// candidate i and the already selected set. Zero when nothing
// comparable was picked.
func maxSimToPicked(candidates []common.Scored, picked []bool, i int) float64 {
	top := math.Inf(-1)

	for j, p := range picked {
		if !p {
			continue
		}

		if sim := embeddingSim(candidates[i].Entry, candidates[j].Entry); sim > top {
			top = sim
		}
	}

	if math.IsInf(top, -1) {
		return 0
	}

	return top
}

func embeddingSim(a, b common.Entry) float64 {
	if len(a.Embedding) == 0 || len(b.Embedding) == 0 {
		return 0
	}

	return similarity.Cosine(a.Embedding, b.Embedding)
}

// Descriptor returns the contract and executor of the shaper.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "reranks a candidate list for relevance and diversity",
			Kind:        atom.KindShaper,
			Lane:        atom.LaneFast,
			Reads:       []string{common.RRFResults, common.BM25Results, common.TFIDFResults, common.RankedList},
			Writes:      []string{common.MMRResults},
			BaseCost:    3,
		},
		Executor: run,
	}
}

func run(_ context.Context, rc *atom.RunContext) error {
	candidates := common.GatherScored(rc)
	if candidates == nil {
		if entries := common.WindowEntries(rc); entries != nil {
			candidates = common.WrapScored(entries)
		}
	}

	if len(candidates) == 0 {
		rc.Logger.Debug("no candidates to rerank", "node", rc.NodeID)

		return nil
	}

	query := rc.Config.FloatSlice("query", nil)
	lambda := rc.Config.Float("lambda", DefaultLambda)
	limit := rc.Config.Int("topK", DefaultTopK)

	rc.Emit(common.MMRResults, Select(candidates, query, lambda, limit))

	return nil
}
