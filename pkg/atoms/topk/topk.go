// Package topk implements the top-k selection constrainer.
//
// Selection runs a size-k min-heap over the candidate stream, so cost is
// O(n log k) instead of a full sort. Output is descending by score;
// equal scores keep input order, including across the selection
// boundary.
package topk

import (
	"container/heap"
	"context"
	"slices"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
)

// Name is the atom name workflows reference.
const Name = "topk"

// DefaultK is the selection size when the node config carries none.
const DefaultK = 10

type item struct {
	common.Scored
	index int
}

// minHeap keeps the current worst selection at the root: lowest score
// first, later arrival first among equals.
type minHeap []item

func (h minHeap) Len() int { return len(h) }

func (h minHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}

	return h[i].index > h[j].index
}

func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) { *h = append(*h, x.(item)) }

func (h *minHeap) Pop() any {
	old := *h
	it := old[len(old)-1]
	*h = old[:len(old)-1]

	return it
}

// Top returns the k highest-scored candidates in descending order.
// Non-positive k selects nothing; k beyond the input selects everything.
func Top(candidates []common.Scored, k int) []common.Scored {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	if k > len(candidates) {
		k = len(candidates)
	}

	h := make(minHeap, 0, k)

	for i, c := range candidates {
		it := item{Scored: c, index: i}

		if len(h) < k {
			heap.Push(&h, it)

			continue
		}

		if beats(it, h[0]) {
			h[0] = it
			heap.Fix(&h, 0)
		}
	}

	slices.SortFunc(h, func(a, b item) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return a.index - b.index
		}
	})

	out := make([]common.Scored, len(h))
	for i, it := range h {
		out[i] = it.Scored
	}

	return out
}

// beats reports whether a displaces b: a strictly higher score, since
// equal-score arrivals are never earlier than what the heap holds.
func beats(a, b item) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}

	return a.index < b.index
}

// Descriptor returns the contract and executor of the constrainer.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "keeps the k highest-scored items of a ranked list",
			Kind:        atom.KindConstrainer,
			Lane:        atom.LaneFast,
			Reads:       []string{common.RRFResults, common.MMRResults, common.BM25Results, common.TFIDFResults, common.RankedList},
			Writes:      []string{common.TopKResults, common.TopKCount, common.TopKDropped},
			BaseCost:    1,
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
		rc.Logger.Debug("nothing to select", "node", rc.NodeID)

		return nil
	}

	selected := Top(candidates, rc.Config.Int("k", DefaultK))

	rc.Emit(common.TopKResults, selected)
	rc.Emit(common.TopKCount, len(selected))
	rc.Emit(common.TopKDropped, len(candidates)-len(selected))

	return nil
}
