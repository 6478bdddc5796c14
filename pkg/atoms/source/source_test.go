package source_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
	"github.com/axonworks/axon/pkg/atoms/source"
	"github.com/axonworks/axon/pkg/sink"
)

func newRunContext(t *testing.T, cfg atom.Config) *atom.RunContext {
	t.Helper()

	snk := sink.New(sink.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	t.Cleanup(snk.Close)

	return &atom.RunContext{
		RunID:  "run-1",
		NodeID: "feed",
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sink:   snk,
	}
}

func TestRun_EmitsConfiguredEntries(t *testing.T) {
	t.Parallel()

	rc := newRunContext(t, atom.Config{
		"entries": []any{
			map[string]any{"key": "a", "text": "first"},
			map[string]any{"key": "b", "value": 2.0},
		},
	})

	require.NoError(t, source.Descriptor().Executor(context.Background(), rc))

	emitted := rc.Emitted()
	require.Len(t, emitted, 1)
	require.Equal(t, common.EntriesBatch, emitted[0].Name)

	entries, ok := emitted[0].Value.([]common.Entry)
	require.True(t, ok)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "first", entries[0].Text)
	assert.InDelta(t, 2.0, entries[1].Value, 1e-12)
}

func TestRun_FillsWindowAndAnnounces(t *testing.T) {
	t.Parallel()

	rc := newRunContext(t, atom.Config{
		"entries": []string{"one", "two", "three"},
		"window":  "docs",
	})

	require.NoError(t, source.Descriptor().Executor(context.Background(), rc))

	emitted := rc.Emitted()
	require.Len(t, emitted, 2)
	assert.Equal(t, common.EntriesBatch, emitted[0].Name)
	assert.Equal(t, common.WindowReady, emitted[1].Name)
	assert.Equal(t, map[string]any{"window": "docs", "count": 3}, emitted[1].Value)

	assert.Equal(t, 3, rc.Sink.WindowStats("docs").Count)
}

func TestRun_AppliesWindowBounds(t *testing.T) {
	t.Parallel()

	rc := newRunContext(t, atom.Config{
		"entries":  []string{"one", "two", "three"},
		"window":   "docs",
		"maxItems": 2,
	})

	require.NoError(t, source.Descriptor().Executor(context.Background(), rc))

	assert.Equal(t, 2, rc.Sink.WindowStats("docs").Count, "bounded window keeps the newest entries")

	emitted := rc.Emitted()
	require.Len(t, emitted, 2)
	assert.Equal(t, map[string]any{"window": "docs", "count": 2}, emitted[1].Value, "the announcement reflects the bounded count")
}

func TestRun_NoEntriesStaysSilent(t *testing.T) {
	t.Parallel()

	rc := newRunContext(t, atom.Config{"window": "docs"})

	require.NoError(t, source.Descriptor().Executor(context.Background(), rc))
	assert.Empty(t, rc.Emitted())
	assert.Zero(t, rc.Sink.WindowStats("docs").Count)
}
