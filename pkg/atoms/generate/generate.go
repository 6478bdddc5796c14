// Package generate implements the text-generation proposer: a prompt
// from node config, optionally extended with the input texts, handed to
// the LLM adapter.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
)

// Name is the atom name workflows reference.
const Name = "generate"

// Errors surfaced by the executor.
var (
	ErrNoLLM    = errors.New("generate: no llm adapter configured")
	ErrNoPrompt = errors.New("generate: empty prompt")
)

// Descriptor returns the contract and executor of the proposer.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "generates text from a prompt and the input entries through the llm adapter",
			Kind:        atom.KindProposer,
			Lane:        atom.LaneLLM,
			Determinism: atom.NonDeterministic,
			Reads:       []string{common.EntriesBatch, common.ReduceResult, common.RRFResults, common.TopKResults},
			Writes:      []string{common.GeneratedText},
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

	parts := []string{}

	if prompt := rc.Config.String("prompt", ""); prompt != "" {
		parts = append(parts, prompt)
	}

	for _, e := range common.GatherEntries(rc) {
		if e.Text != "" {
			parts = append(parts, e.Text)
		}
	}

	if len(parts) == 0 {
		return ErrNoPrompt
	}

	reply, err := rc.Services.LLM.Generate(ctx, strings.Join(parts, "\n"))
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	rc.Emit(common.GeneratedText, reply)

	return nil
}
