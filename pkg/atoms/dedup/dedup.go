// Package dedup implements near-duplicate clustering.
//
// Entries are compared with the blended string similarity from
// alg/similarity (Jaro-Winkler, normalized Levenshtein, character-bigram
// cosine). Clustering is greedy against representatives: each entry
// joins the first existing cluster whose representative clears the
// threshold, otherwise it founds a new cluster. The representative is
// always the earliest member.
package dedup

import (
	"context"

	"github.com/axonworks/axon/pkg/alg/similarity"
	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
)

// Name is the atom name workflows reference.
const Name = "dedup"

// Cluster groups near-duplicates under their first-seen representative.
type Cluster struct {
	Representative common.Scored   `json:"representative"`
	Duplicates     []common.Scored `json:"duplicates,omitempty"`
}

// Group clusters items in input order. A threshold outside (0, 1]
// falls back to similarity.DefaultThreshold.
func Group(items []common.Scored, threshold float64) []Cluster {
	if threshold <= 0 || threshold > 1 {
		threshold = similarity.DefaultThreshold
	}

	var clusters []Cluster

	for _, item := range items {
		joined := false

		for i := range clusters {
			if similarity.Blend(content(item.Entry), content(clusters[i].Representative.Entry)) >= threshold {
				clusters[i].Duplicates = append(clusters[i].Duplicates, item)
				joined = true

				break
			}
		}

		if !joined {
			clusters = append(clusters, Cluster{Representative: item})
		}
	}

	return clusters
}

// content is what similarity compares: the text when present, else the
// key. Keys alone still cluster exact repeats of keyed numeric entries.
func content(e common.Entry) string {
	if e.Text != "" {
		return e.Text
	}

	return e.Key
}

// Descriptor returns the contract and executor of the constrainer.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "collapses near-duplicate entries by blended string similarity",
			Kind:        atom.KindConstrainer,
			Lane:        atom.LaneFast,
			Reads:       []string{common.EntriesBatch, common.WindowReady, common.RankedList},
			Writes:      []string{common.DedupResults, common.DedupClusters, common.DedupDuplicatesRemoved},
			BaseCost:    4,
			CostPerKB:   0.5,
		},
		Executor: run,
	}
}

func run(_ context.Context, rc *atom.RunContext) error {
	items := common.GatherScored(rc)
	if items == nil {
		if entries := common.WindowEntries(rc); entries != nil {
			items = common.WrapScored(entries)
		}
	}

	if len(items) == 0 {
		rc.Logger.Debug("nothing to deduplicate", "node", rc.NodeID)

		return nil
	}

	clusters := Group(items, rc.Config.Float("threshold", similarity.DefaultThreshold))

	representatives := make([]common.Scored, len(clusters))
	removed := 0

	for i, c := range clusters {
		representatives[i] = c.Representative
		removed += len(c.Duplicates)
	}

	rc.Emit(common.DedupResults, representatives)
	rc.Emit(common.DedupClusters, clusters)
	rc.Emit(common.DedupDuplicatesRemoved, removed)

	return nil
}
