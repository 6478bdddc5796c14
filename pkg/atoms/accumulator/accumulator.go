// Package accumulator implements the windowing shaper: incoming entries are
// appended to a named sliding window and the new population is announced.
package accumulator

import (
	"context"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
	"github.com/axonworks/axon/pkg/sink"
)

// Name is the atom name workflows reference.
const Name = "accumulator"

// DefaultWindow is the window filled when config names none.
const DefaultWindow = "accumulator"

// Descriptor returns the contract and executor of the shaper.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "appends incoming entries to a sliding window and announces the population",
			Kind:        atom.KindShaper,
			Lane:        atom.LaneFast,
			Reads:       []string{common.EntriesBatch, common.EntryAdd},
			Writes:      []string{common.AccumulatorCount, common.WindowReady},
			BaseCost:    1,
		},
		Executor: run,
	}
}

func run(_ context.Context, rc *atom.RunContext) error {
	window := rc.Config.String(common.ConfigWindow, DefaultWindow)

	// Rebound the window only when this node declares bounds; otherwise
	// leave whatever configuration the window already carries.
	if rc.Config.Has("maxItems") || rc.Config.Has("maxAge") {
		rc.Sink.ConfigureWindow(window, sink.WindowConfig{
			MaxItems: rc.Config.Int("maxItems", 0),
			MaxAge:   rc.Config.Duration("maxAge", 0),
		})
	}

	for _, e := range common.GatherEntries(rc) {
		rc.Sink.WindowAdd(window, e.Key, e)
	}

	count := rc.Sink.WindowStats(window).Count

	rc.Emit(common.AccumulatorCount, count)
	common.Announce(rc, window, count)

	return nil
}
