package accumulator_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/adapters"
	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/accumulator"
	"github.com/axonworks/axon/pkg/atoms/common"
	"github.com/axonworks/axon/pkg/sink"
)

func newRunContext(t *testing.T, clock adapters.Clock, cfg atom.Config) *atom.RunContext {
	t.Helper()

	snk := sink.New(sink.Options{
		Clock:  clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(snk.Close)

	return &atom.RunContext{
		RunID:  "run-1",
		NodeID: "gather",
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sink:   snk,
	}
}

func fire(t *testing.T, rc *atom.RunContext, entries ...common.Entry) {
	t.Helper()

	rc.Trigger.Name = common.EntriesBatch
	rc.Trigger.Value = entries

	require.NoError(t, accumulator.Descriptor().Executor(context.Background(), rc))
}

func TestRun_AppendsAndAnnounces(t *testing.T) {
	t.Parallel()

	rc := newRunContext(t, nil, atom.Config{"window": "events"})

	fire(t, rc,
		common.Entry{Key: "a", Value: 1},
		common.Entry{Key: "b", Value: 2},
	)

	emitted := rc.Emitted()
	require.Len(t, emitted, 2)
	assert.Equal(t, common.AccumulatorCount, emitted[0].Name)
	assert.Equal(t, 2, emitted[0].Value)
	assert.Equal(t, common.WindowReady, emitted[1].Name)
	assert.Equal(t, map[string]any{"window": "events", "count": 2}, emitted[1].Value)

	snapshot := rc.Sink.WindowQuery("events")
	require.Len(t, snapshot, 2)
	assert.Equal(t, "a", snapshot[0].Key)
	assert.Equal(t, "b", snapshot[1].Key)
}

func TestRun_CountsAccumulateAcrossFirings(t *testing.T) {
	t.Parallel()

	rc := newRunContext(t, nil, atom.Config{})

	fire(t, rc, common.Entry{Key: "a"})
	fire(t, rc, common.Entry{Key: "b"})

	emitted := rc.Emitted()
	require.Len(t, emitted, 4)
	assert.Equal(t, 1, emitted[0].Value)
	assert.Equal(t, 2, emitted[2].Value, "the second firing sees the first's entries")

	assert.Equal(t, 2, rc.Sink.WindowStats(accumulator.DefaultWindow).Count)
}

func TestRun_DuplicateKeysCoexist(t *testing.T) {
	t.Parallel()

	rc := newRunContext(t, nil, atom.Config{"window": "events"})

	fire(t, rc, common.Entry{Key: "a", Value: 1})
	fire(t, rc, common.Entry{Key: "a", Value: 2})

	snapshot := rc.Sink.WindowQuery("events")
	require.Len(t, snapshot, 2, "windows append, they do not upsert")
}

func TestRun_BoundsOnlyWhenDeclared(t *testing.T) {
	t.Parallel()

	clock := adapters.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	rc := newRunContext(t, clock, atom.Config{
		"window":   "events",
		"maxItems": 2,
		"maxAge":   "1m",
	})

	fire(t, rc, common.Entry{Key: "a"}, common.Entry{Key: "b"}, common.Entry{Key: "c"})
	assert.Equal(t, 2, rc.Sink.WindowStats("events").Count, "capacity bound holds")

	clock.Advance(2 * time.Minute)
	assert.Zero(t, rc.Sink.WindowStats("events").Count, "age bound expires the rest")
}

func TestRun_EmptyTriggerStillAnnounces(t *testing.T) {
	t.Parallel()

	rc := newRunContext(t, nil, atom.Config{"window": "events"})

	rc.Trigger.Name = common.AccumulatorCount
	rc.Trigger.Value = 7

	require.NoError(t, accumulator.Descriptor().Executor(context.Background(), rc))

	emitted := rc.Emitted()
	require.Len(t, emitted, 2)
	assert.Equal(t, 0, emitted[0].Value)
	assert.Equal(t, map[string]any{"window": "events", "count": 0}, emitted[1].Value)
}
