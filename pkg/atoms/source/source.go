// Package source implements the source.entries sensor: it feeds entries
// declared in node config into the run, so workflows are self-contained in
// tests and CLI demos.
package source

import (
	"context"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
	"github.com/axonworks/axon/pkg/sink"
)

// Name is the atom name workflows reference.
const Name = "source.entries"

// Descriptor returns the contract and executor of the sensor.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "feeds configured entries into the run and optionally into a named window",
			Kind:        atom.KindSensor,
			Lane:        atom.LaneFast,
			Writes:      []string{common.EntriesBatch, common.WindowReady},
			BaseCost:    1,
		},
		Executor: run,
	}
}

func run(_ context.Context, rc *atom.RunContext) error {
	entries := common.DecodeEntries(rc.Config["entries"])
	if len(entries) == 0 {
		rc.Logger.Debug("source has no entries configured")

		return nil
	}

	rc.Emit(common.EntriesBatch, entries)

	window := rc.Config.String(common.ConfigWindow, "")
	if window == "" {
		return nil
	}

	if rc.Config.Has("maxItems") || rc.Config.Has("maxAge") {
		rc.Sink.ConfigureWindow(window, sink.WindowConfig{
			MaxItems: rc.Config.Int("maxItems", 0),
			MaxAge:   rc.Config.Duration("maxAge", 0),
		})
	}

	for _, e := range entries {
		rc.Sink.WindowAdd(window, e.Key, e)
	}

	common.Announce(rc, window, rc.Sink.WindowStats(window).Count)

	return nil
}
