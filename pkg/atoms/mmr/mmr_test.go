package mmr_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
	"github.com/axonworks/axon/pkg/atoms/mmr"
	"github.com/axonworks/axon/pkg/signal"
)

func embedded() []common.Scored {
	return []common.Scored{
		{Entry: common.Entry{Key: "a", Embedding: []float64{1, 0}}},
		{Entry: common.Entry{Key: "b", Embedding: []float64{0.95, 0.312}}},
		{Entry: common.Entry{Key: "c", Embedding: []float64{0, 1}}},
	}
}

func keys(selected []common.Scored) []string {
	out := make([]string, len(selected))
	for i, s := range selected {
		out[i] = s.Key
	}

	return out
}

func TestSelect_DiversityOutweighsRelevance(t *testing.T) {
	t.Parallel()

	query := []float64{0.8, 0.6}

	// b is closest to the query; a is more relevant than c but nearly
	// parallel to b, so the penalty demotes it.
	got := mmr.Select(embedded(), query, mmr.DefaultLambda, 3)
	assert.Equal(t, []string{"b", "c", "a"}, keys(got))
}

func TestSelect_PureRelevanceAtLambdaOne(t *testing.T) {
	t.Parallel()

	query := []float64{0.8, 0.6}

	got := mmr.Select(embedded(), query, 1.0, 3)
	assert.Equal(t, []string{"b", "a", "c"}, keys(got))
}

func TestSelect_FallsBackToUpstreamScores(t *testing.T) {
	t.Parallel()

	candidates := []common.Scored{
		{Entry: common.Entry{Key: "low"}, Score: 1},
		{Entry: common.Entry{Key: "high"}, Score: 3},
		{Entry: common.Entry{Key: "mid"}, Score: 2},
	}

	got := mmr.Select(candidates, nil, mmr.DefaultLambda, 2)

	assert.Equal(t, []string{"high", "mid"}, keys(got))
	assert.InDelta(t, 3.0, got[0].Score, 1e-12, "upstream scores survive selection")
}

func TestSelect_NonPositiveLimitSelectsAll(t *testing.T) {
	t.Parallel()

	got := mmr.Select(embedded(), nil, mmr.DefaultLambda, 0)
	assert.Len(t, got, 3)
}

func TestRun_RerankTrigger(t *testing.T) {
	t.Parallel()

	rc := &atom.RunContext{
		RunID:  "run-1",
		NodeID: "diversify",
		Config: atom.Config{
			"query": []float64{0.8, 0.6},
			"topK":  2,
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	rc.Trigger = signal.Signal{Name: common.RRFResults, Value: embedded()}

	require.NoError(t, mmr.Descriptor().Executor(context.Background(), rc))

	emitted := rc.Emitted()
	require.Len(t, emitted, 1)
	require.Equal(t, common.MMRResults, emitted[0].Name)

	selected := emitted[0].Value.([]common.Scored)
	assert.Equal(t, []string{"b", "c"}, keys(selected))
}

func TestRun_EmptyInputEmitsNothing(t *testing.T) {
	t.Parallel()

	rc := &atom.RunContext{
		RunID:  "run-1",
		NodeID: "diversify",
		Config: atom.Config{},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	require.NoError(t, mmr.Descriptor().Executor(context.Background(), rc))
	assert.Empty(t, rc.Emitted())
}
