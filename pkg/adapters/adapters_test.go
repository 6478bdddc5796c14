package adapters

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClock_AdvanceAndSet(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	assert.Equal(t, start, clock.Now())

	clock.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clock.Now())

	clock.Set(start)
	assert.Equal(t, start, clock.Now())
}

func TestLocalStorage_StoreBytesSmallPayloadUncompressed(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStorage(t.TempDir(), nil)
	require.NoError(t, err)

	data := []byte(`{"hello":"world"}`)

	obj, err := store.StoreBytes(context.Background(), "reports/run1.json", "application/json", data)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("reports", "run1.json"), obj.Path)
	assert.Equal(t, int64(len(data)), obj.Size)
	assert.Len(t, obj.Hash, 64)

	local, err := store.GetLocalPath(context.Background(), obj.Path)
	require.NoError(t, err)

	got, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLocalStorage_LargePayloadCompressedRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStorage(t.TempDir(), nil)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("signal payload line\n"), 1024)
	require.GreaterOrEqual(t, len(data), CompressThreshold)

	obj, err := store.StoreBytes(context.Background(), "dumps/window.txt", "text/plain", data)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(obj.Path, lz4Extension))
	assert.Less(t, obj.Size, int64(len(data)), "repetitive payload should compress")

	// Resolving by the logical (uncompressed) name must also work.
	local, err := store.GetLocalPath(context.Background(), "dumps/window.txt")
	require.NoError(t, err)

	got, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLocalStorage_StoreTextWritesMetaSidecar(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := NewLocalStorage(root, nil)
	require.NoError(t, err)

	_, err = store.StoreText(context.Background(), "notes.txt", "done", "text/plain",
		map[string]string{"runId": "r-1"})
	require.NoError(t, err)

	sidecar, err := os.ReadFile(filepath.Join(root, "notes.txt"+metaExtension))
	require.NoError(t, err)
	assert.JSONEq(t, `{"runId":"r-1"}`, string(sidecar))
}

func TestLocalStorage_RejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStorage(t.TempDir(), nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
	}{
		{name: "parent_traversal", path: "../outside.txt"},
		{name: "nested_traversal", path: "a/../../outside.txt"},
		{name: "absolute", path: "/etc/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := store.StoreBytes(context.Background(), tt.path, "text/plain", []byte("x"))
			assert.ErrorIs(t, err, ErrPathEscapesRoot)
		})
	}
}

func TestLocalStorage_GetLocalPathMissing(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStorage(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.GetLocalPath(context.Background(), "never/stored.json")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestLocalLLM_AnalyzeSentiment(t *testing.T) {
	t.Parallel()

	llm := NewLocalLLM()

	tests := []struct {
		name      string
		input     string
		wantLabel string
	}{
		{name: "positive_text", input: "excellent work, the fix is clean and fast", wantLabel: SentimentPositive},
		{name: "negative_text", input: "terrible regression, everything is broken and slow", wantLabel: SentimentNegative},
		{name: "neutral_text", input: "the meeting moved to tuesday", wantLabel: SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := llm.AnalyzeSentiment(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.GreaterOrEqual(t, got.Score, 0.0)
			assert.LessOrEqual(t, got.Score, 1.0)
		})
	}
}

func TestLocalLLM_EmptyTextIsNeutralZeroConfidence(t *testing.T) {
	t.Parallel()

	llm := NewLocalLLM()

	got, err := llm.AnalyzeSentiment(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, SentimentNeutral, got.Label)
	assert.InDelta(t, 0.5, got.Score, 0.0001)
	assert.InDelta(t, 0.0, got.Confidence, 0.0001)
}

func TestLocalLLM_GenerateTruncates(t *testing.T) {
	t.Parallel()

	llm := NewLocalLLM()

	prompt := strings.Repeat("word ", generateMaxWords*2)

	got, err := llm.Generate(context.Background(), prompt)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(got), generateMaxWords)
}

func TestLocalLLM_ObservesCancellation(t *testing.T) {
	t.Parallel()

	llm := NewLocalLLM()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := llm.Generate(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = llm.AnalyzeSentiment(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}
