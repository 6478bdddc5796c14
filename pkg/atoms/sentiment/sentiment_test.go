package sentiment_test

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
	"github.com/axonworks/axon/pkg/atoms/sentiment"
	"github.com/axonworks/axon/pkg/signal"
)

func newRunContext(cfg atom.Config, llm adapters.LLM) *atom.RunContext {
	return &atom.RunContext{
		RunID:    "run-1",
		NodeID:   "mood",
		Config:   cfg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Services: atom.Services{LLM: llm},
	}
}

func TestRun_ScoresBatchEntries(t *testing.T) {
	t.Parallel()

	rc := newRunContext(atom.Config{}, adapters.NewLocalLLM())
	rc.Trigger = signal.Signal{
		Name: common.EntriesBatch,
		Value: []common.Entry{
			{Key: "praise", Text: "excellent wonderful release"},
			{Key: "gripe", Text: "terrible awful regression"},
		},
	}

	require.NoError(t, sentiment.Descriptor().Executor(context.Background(), rc))

	emitted := rc.Emitted()
	require.Len(t, emitted, 2)

	praise := emitted[0]
	assert.Equal(t, common.SentimentScore, praise.Name)
	assert.Equal(t, "praise", praise.Key)
	assert.Equal(t, adapters.SentimentPositive, praise.Value.(adapters.Sentiment).Label)
	assert.Positive(t, praise.Confidence)

	gripe := emitted[1]
	assert.Equal(t, "gripe", gripe.Key)
	assert.Equal(t, adapters.SentimentNegative, gripe.Value.(adapters.Sentiment).Label)
}

func TestRun_ConfigTextOverridesInputs(t *testing.T) {
	t.Parallel()

	rc := newRunContext(atom.Config{"text": "all good"}, adapters.NewLocalLLM())
	rc.Trigger = signal.Signal{
		Name:  common.EntriesBatch,
		Value: []common.Entry{{Key: "ignored", Text: "terrible"}},
	}

	require.NoError(t, sentiment.Descriptor().Executor(context.Background(), rc))

	emitted := rc.Emitted()
	require.Len(t, emitted, 1)
	assert.Equal(t, adapters.SentimentPositive, emitted[0].Value.(adapters.Sentiment).Label)
}

func TestRun_MissingLLMFails(t *testing.T) {
	t.Parallel()

	rc := newRunContext(atom.Config{"text": "anything"}, nil)

	err := sentiment.Descriptor().Executor(context.Background(), rc)
	assert.ErrorIs(t, err, sentiment.ErrNoLLM)
}

func TestRun_NoTextStaysSilent(t *testing.T) {
	t.Parallel()

	rc := newRunContext(atom.Config{}, adapters.NewLocalLLM())
	rc.Trigger = signal.Signal{
		Name:  common.EntriesBatch,
		Value: []common.Entry{{Key: "numeric", Value: 42}},
	}

	require.NoError(t, sentiment.Descriptor().Executor(context.Background(), rc))
	assert.Empty(t, rc.Emitted())
}
