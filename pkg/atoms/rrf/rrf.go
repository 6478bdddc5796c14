// Package rrf implements reciprocal-rank fusion over ranked lists.
package rrf

import (
	"context"
	"slices"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
)

// Name is the atom name workflows reference.
const Name = "rrf"

// DefaultK is the standard RRF damping constant.
const DefaultK = 60

// Fuse combines ranked lists: an item's fused score is Σ 1/(k + rank)
// over the lists that mention it, rank 1-based within each list.
// Duplicate identities inside one list are counted once, at their first
// rank, with later items closing the gap. Equal fused scores keep
// first-appearance order, so fusion is deterministic for any input.
func Fuse(lists [][]common.Scored, k float64) []common.Scored {
	if k <= 0 {
		k = DefaultK
	}

	type slot struct {
		entry common.Entry
		score float64
	}

	fused := make(map[string]*slot)

	var arrival []string

	for _, list := range lists {
		seen := make(map[string]struct{}, len(list))
		rank := 0

		for _, item := range list {
			id := item.Identity()
			if _, dup := seen[id]; dup {
				continue
			}

			seen[id] = struct{}{}
			rank++

			s, ok := fused[id]
			if !ok {
				s = &slot{entry: item.Entry}
				fused[id] = s
				arrival = append(arrival, id)
			}

			s.score += 1 / (k + float64(rank))
		}
	}

	out := make([]common.Scored, 0, len(arrival))
	for _, id := range arrival {
		out = append(out, common.Scored{Entry: fused[id].entry, Score: fused[id].score})
	}

	// Descending by fused score; ties keep first-appearance order.
	slices.SortStableFunc(out, func(a, b common.Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	return out
}

// Descriptor returns the contract and executor of the analyzer.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "fuses ranked lists with reciprocal-rank fusion",
			Kind:        atom.KindAnalyzer,
			Lane:        atom.LaneFast,
			Reads:       []string{common.BM25Results, common.TFIDFResults, common.RankedList},
			Writes:      []string{common.RRFResults},
			BaseCost:    2,
		},
		Executor: run,
	}
}

func run(_ context.Context, rc *atom.RunContext) error {
	lists := gatherLists(rc)
	if len(lists) == 0 {
		rc.Logger.Debug("no ranked lists to fuse", "node", rc.NodeID)

		return nil
	}

	rc.Emit(common.RRFResults, Fuse(lists, rc.Config.Float("k", DefaultK)))

	return nil
}

// gatherLists collects every decodable ranked list: the trigger first,
// then the remaining inputs in lexical name order. Unlike GatherScored it
// keeps all of them; fusion wants one list per upstream scorer.
func gatherLists(rc *atom.RunContext) [][]common.Scored {
	var lists [][]common.Scored

	if scored := common.DecodeScored(rc.Trigger.Value); scored != nil {
		lists = append(lists, scored)
	}

	for _, name := range common.SortedInputNames(rc.Inputs) {
		if name == rc.Trigger.Name {
			continue
		}

		if scored := common.DecodeScored(rc.Inputs[name].Value); scored != nil {
			lists = append(lists, scored)
		}
	}

	return lists
}
