// Package tap implements the run observer: every signal that reaches it
// is logged, nothing is emitted, nothing is charged.
package tap

import (
	"context"
	"log/slog"

	"github.com/axonworks/axon/pkg/atom"
)

// Name is the atom name workflows reference.
const Name = "tap"

// Descriptor returns the contract and executor of the observer.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "logs every signal of the run without producing output",
			Kind:        atom.KindCoordinator,
			Lane:        atom.LaneFast,
			Reads:       []string{atom.WildcardRead},
		},
		Executor: run,
	}
}

func run(ctx context.Context, rc *atom.RunContext) error {
	if rc.Trigger.Name == "" {
		return nil
	}

	level := slog.LevelDebug
	if rc.Config.String("level", "debug") == "info" {
		level = slog.LevelInfo
	}

	rc.Logger.Log(ctx, level, "signal",
		"name", rc.Trigger.Name,
		"source", rc.Trigger.Source,
		"key", rc.Trigger.Key,
		"confidence", rc.Trigger.Confidence,
	)

	return nil
}
