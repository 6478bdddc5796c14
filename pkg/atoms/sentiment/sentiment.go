// Package sentiment implements the sentiment-scoring proposer. Each
// input text goes through the LLM adapter; the adapter's confidence
// becomes the signal confidence, so downstream consumers can discount
// weak calls.
package sentiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
	"github.com/axonworks/axon/pkg/signal"
)

// Name is the atom name workflows reference.
const Name = "sentiment"

// ErrNoLLM is returned when the run has no LLM adapter wired.
var ErrNoLLM = errors.New("sentiment: no llm adapter configured")

// Descriptor returns the contract and executor of the proposer.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "scores the sentiment of each input text through the llm adapter",
			Kind:        atom.KindProposer,
			Lane:        atom.LaneLLM,
			Determinism: atom.NonDeterministic,
			Reads:       []string{common.EntriesBatch, common.EntryAdd, common.GeneratedText},
			Writes:      []string{common.SentimentScore},
			BaseCost:    10,
			CostPerKB:   1,
		},
		Executor: run,
	}
}

func run(ctx context.Context, rc *atom.RunContext) error {
	if rc.Services.LLM == nil {
		return ErrNoLLM
	}

	var entries []common.Entry

	if text := rc.Config.String("text", ""); text != "" {
		entries = []common.Entry{{Text: text}}
	} else {
		for _, e := range common.GatherEntries(rc) {
			if e.Text != "" {
				entries = append(entries, e)
			}
		}
	}

	if len(entries) == 0 {
		rc.Logger.Debug("no text to score", "node", rc.NodeID)

		return nil
	}

	for _, e := range entries {
		s, err := rc.Services.LLM.AnalyzeSentiment(ctx, e.Text)
		if err != nil {
			return fmt.Errorf("sentiment: %w", err)
		}

		rc.EmitSignal(signal.Signal{
			Name:       common.SentimentScore,
			Key:        e.Identity(),
			Value:      s,
			Confidence: s.Confidence,
		})
	}

	return nil
}
