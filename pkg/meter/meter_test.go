package meter

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/adapters"
)

func fixedStart() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func fixedCeiling(n int) func() int {
	return func() int { return n }
}

func TestFactorFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		utilization float64
		want        float64
	}{
		{utilization: 0.0, want: 1.0},
		{utilization: 0.49, want: 1.0},
		{utilization: 0.5, want: 1.0},
		{utilization: 0.65, want: 0.75},
		{utilization: 0.8, want: 0.5},
		{utilization: 0.9, want: 0.3},
		{utilization: 0.99, want: 0.12},
		{utilization: 1.0, want: 0.0},
		{utilization: 1.5, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("u_%.2f", tt.utilization), func(t *testing.T) {
			t.Parallel()

			assert.InDelta(t, tt.want, FactorFor(tt.utilization), 1e-9)
		})
	}
}

func TestFactorFor_MonotoneNonIncreasing(t *testing.T) {
	t.Parallel()

	prev := FactorFor(0)

	for u := 0.01; u <= 1.2; u += 0.01 {
		cur := FactorFor(u)
		assert.LessOrEqual(t, cur, prev, "factor rose at u=%.2f", u)
		prev = cur
	}
}

func TestMeter_UnlimitedWithoutProvider(t *testing.T) {
	t.Parallel()

	m := New(Options{Clock: adapters.NewFakeClock(fixedStart())})

	m.Record(1e6, "llm")

	assert.True(t, m.CanConsume(1e9))
	assert.True(t, m.TryConsume(1e9, "llm"))
	assert.Zero(t, m.MaxWorkUnits())
	assert.Zero(t, m.Utilization())
	assert.InDelta(t, 1.0, m.ThrottleFactor(), 1e-9)
}

func TestMeter_TryConsume(t *testing.T) {
	t.Parallel()

	m := New(Options{
		MaxProvider: fixedCeiling(100),
		Clock:       adapters.NewFakeClock(fixedStart()),
	})

	require.True(t, m.TryConsume(60, "analysis"))
	assert.InDelta(t, 60, m.CurrentWorkUnits(), 1e-9)

	assert.False(t, m.TryConsume(50, "analysis"), "60+50 exceeds the ceiling")
	assert.InDelta(t, 60, m.CurrentWorkUnits(), 1e-9, "a refused consume records nothing")

	require.True(t, m.TryConsume(40, "analysis"))
	assert.InDelta(t, 100, m.CurrentWorkUnits(), 1e-9)

	assert.False(t, m.TryConsume(0.5, "analysis"))
	assert.True(t, m.CanConsume(0), "the budget admits zero-cost work at the ceiling")
}

func TestMeter_WindowExpiry(t *testing.T) {
	t.Parallel()

	t.Run("full_window_rolls_off", func(t *testing.T) {
		t.Parallel()

		clock := adapters.NewFakeClock(fixedStart())
		m := New(Options{MaxProvider: fixedCeiling(1000), Clock: clock})

		m.Record(100, "analysis")
		clock.Advance(61 * time.Second)

		assert.Zero(t, m.CurrentWorkUnits())
	})

	t.Run("buckets_expire_individually", func(t *testing.T) {
		t.Parallel()

		clock := adapters.NewFakeClock(fixedStart())
		m := New(Options{MaxProvider: fixedCeiling(1000), Clock: clock})

		m.Record(10, "a")
		clock.Advance(30 * time.Second)
		m.Record(20, "b")
		clock.Advance(31 * time.Second)

		// 61s after the first record only the 30s-old bucket survives.
		assert.InDelta(t, 20, m.CurrentWorkUnits(), 1e-9)
	})
}

func TestMeter_ThresholdEvents(t *testing.T) {
	t.Parallel()

	t.Run("rising_edges_fire_once", func(t *testing.T) {
		t.Parallel()

		var events []ThresholdEvent

		m := New(Options{
			MaxProvider: fixedCeiling(100),
			OnThreshold: func(ev ThresholdEvent) { events = append(events, ev) },
			Clock:       adapters.NewFakeClock(fixedStart()),
		})

		m.Record(50, "analysis")
		require.Len(t, events, 1)
		assert.Equal(t, 50, events[0].Threshold)
		assert.InDelta(t, 0.5, events[0].Utilization, 1e-9)
		assert.Equal(t, 100, events[0].Max)

		m.Record(10, "analysis")
		assert.Len(t, events, 1, "60% crosses nothing new")

		m.Record(30, "analysis")
		require.Len(t, events, 3, "one record may cross several thresholds")
		assert.Equal(t, 80, events[1].Threshold)
		assert.Equal(t, 90, events[2].Threshold)

		m.Record(10, "analysis")
		require.Len(t, events, 4)
		assert.Equal(t, 100, events[3].Threshold)
	})

	t.Run("hysteresis_gates_the_rearm", func(t *testing.T) {
		t.Parallel()

		var events []ThresholdEvent

		clock := adapters.NewFakeClock(fixedStart())
		m := New(Options{
			MaxProvider: fixedCeiling(100),
			Thresholds:  []int{50},
			OnThreshold: func(ev ThresholdEvent) { events = append(events, ev) },
			Clock:       clock,
		})

		m.Record(50, "a")
		require.Len(t, events, 1)

		// Fall to 49%: inside the 2pp hysteresis band, still armed off.
		clock.Advance(61 * time.Second)
		m.Record(49, "a")
		assert.Len(t, events, 1)

		m.Record(1, "a")
		assert.Len(t, events, 1, "50% again without re-arming stays silent")

		// Fall below 48%: re-arms, and the next crossing fires.
		clock.Advance(61 * time.Second)
		m.Record(47, "a")
		assert.Len(t, events, 1)

		m.Record(3, "a")
		require.Len(t, events, 2)
		assert.Equal(t, 50, events[1].Threshold)
	})

	t.Run("no_events_without_ceiling", func(t *testing.T) {
		t.Parallel()

		var events []ThresholdEvent

		m := New(Options{
			OnThreshold: func(ev ThresholdEvent) { events = append(events, ev) },
			Clock:       adapters.NewFakeClock(fixedStart()),
		})

		m.Record(1e6, "a")
		assert.Empty(t, events)
	})
}

func TestMeter_ZeroCeiling(t *testing.T) {
	t.Parallel()

	m := New(Options{
		MaxProvider: fixedCeiling(0),
		Clock:       adapters.NewFakeClock(fixedStart()),
	})

	assert.False(t, m.TryConsume(1, "a"), "a zeroed entitlement admits nothing")
	assert.InDelta(t, 1.0, m.Utilization(), 1e-9)
	assert.Zero(t, m.ThrottleFactor())
}

func TestMeter_Snapshot(t *testing.T) {
	t.Parallel()

	m := New(Options{
		MaxProvider: fixedCeiling(200),
		Clock:       adapters.NewFakeClock(fixedStart()),
	})

	m.Record(30, "analysis")
	m.Record(50, "llm")
	m.Record(20, "llm")

	snap := m.Snapshot()

	assert.InDelta(t, 100, snap.Current, 1e-9)
	assert.Equal(t, 200, snap.Max)
	assert.InDelta(t, 0.5, snap.Utilization, 1e-9)
	assert.InDelta(t, 1.0, snap.ThrottleFactor, 1e-9)
	assert.InDelta(t, 30, snap.ByType["analysis"], 1e-9)
	assert.InDelta(t, 70, snap.ByType["llm"], 1e-9)
}

func TestMeter_Reset(t *testing.T) {
	t.Parallel()

	var events []ThresholdEvent

	m := New(Options{
		MaxProvider: fixedCeiling(100),
		Thresholds:  []int{50},
		OnThreshold: func(ev ThresholdEvent) { events = append(events, ev) },
		Clock:       adapters.NewFakeClock(fixedStart()),
	})

	m.Record(60, "a")
	require.Len(t, events, 1)

	m.Reset()

	assert.Zero(t, m.CurrentWorkUnits())

	m.Record(60, "a")
	assert.Len(t, events, 2, "reset re-arms every threshold")
}

func TestMeter_ConcurrentTryConsume(t *testing.T) {
	t.Parallel()

	const (
		ceiling  = 1000
		workers  = 10
		attempts = 200
	)

	m := New(Options{MaxProvider: fixedCeiling(ceiling)})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range attempts {
				if m.TryConsume(1, "load") {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, ceiling, succeeded, "exactly the ceiling is admitted")
	assert.InDelta(t, float64(ceiling), m.CurrentWorkUnits(), 1e-9)
}
