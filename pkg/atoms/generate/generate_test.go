package generate_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/adapters"
	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
	"github.com/axonworks/axon/pkg/atoms/generate"
	"github.com/axonworks/axon/pkg/signal"
)

func newRunContext(cfg atom.Config, llm adapters.LLM) *atom.RunContext {
	return &atom.RunContext{
		RunID:    "run-1",
		NodeID:   "draft",
		Config:   cfg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Services: atom.Services{LLM: llm},
	}
}

func TestRun_CombinesPromptAndInputs(t *testing.T) {
	t.Parallel()

	rc := newRunContext(atom.Config{"prompt": "summarize the following"}, adapters.NewLocalLLM())
	rc.Trigger = signal.Signal{
		Name: common.EntriesBatch,
		Value: []common.Entry{
			{Text: "alpha"},
			{Text: "beta"},
		},
	}

	require.NoError(t, generate.Descriptor().Executor(context.Background(), rc))

	emitted := rc.Emitted()
	require.Len(t, emitted, 1)
	require.Equal(t, common.GeneratedText, emitted[0].Name)
	assert.Equal(t, "summarize the following alpha beta", emitted[0].Value)
}

func TestRun_EmptyPromptFails(t *testing.T) {
	t.Parallel()

	rc := newRunContext(atom.Config{}, adapters.NewLocalLLM())

	err := generate.Descriptor().Executor(context.Background(), rc)
	assert.ErrorIs(t, err, generate.ErrNoPrompt)
}

func TestRun_MissingLLMFails(t *testing.T) {
	t.Parallel()

	rc := newRunContext(atom.Config{"prompt": "anything"}, nil)

	err := generate.Descriptor().Executor(context.Background(), rc)
	assert.ErrorIs(t, err, generate.ErrNoLLM)
}
