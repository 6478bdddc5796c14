// Package meter implements the rolling work-unit budget: a ring of time
// buckets covering one window, threshold crossing events, and the throttle
// factor the scheduler consults on every admission.
package meter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/axonworks/axon/pkg/adapters"
)

// Defaults for a bare meter.
const (
	// DefaultWindow is the budget period.
	DefaultWindow = time.Minute

	// DefaultBuckets discretize the window; finer buckets smooth the
	// observable rate at the cost of memory.
	DefaultBuckets = 60

	// DefaultHysteresisPct is how many percentage points utilization must
	// fall below a fired threshold before it re-arms.
	DefaultHysteresisPct = 2
)

// DefaultThresholds are the utilization percentages a bare meter announces.
func DefaultThresholds() []int {
	return []int{50, 80, 90, 100}
}

// Throttle curve breakpoints. The factor is 1.0 below the low knee, falls
// linearly to 0.5 at the high knee, then to 0.1 just under full utilization,
// and is 0 at or past it.
const (
	throttleKneeLow   = 0.5
	throttleKneeHigh  = 0.8
	factorAtKneeHigh  = 0.5
	factorNearCeiling = 0.1
)

// ThresholdEvent describes one rising-edge crossing.
type ThresholdEvent struct {
	// Threshold is the configured percentage that was crossed.
	Threshold int

	// Utilization is current/max at the moment of crossing.
	Utilization float64

	// Current and Max are the work-unit figures behind Utilization.
	Current float64
	Max     int

	At time.Time
}

// Snapshot is a point-in-time copy of the meter for reporting.
type Snapshot struct {
	Current        float64            `json:"current"`
	Max            int                `json:"max"`
	Utilization    float64            `json:"utilization"`
	ThrottleFactor float64            `json:"throttleFactor"`
	ByType         map[string]float64 `json:"byType,omitempty"`
}

// Options configures New.
type Options struct {
	// Window and Buckets shape the ring. Defaults: one minute, 60.
	Window  time.Duration
	Buckets int

	// Thresholds are utilization percentages announced on rising edges.
	// Nil selects DefaultThresholds.
	Thresholds []int

	// HysteresisPct defaults to DefaultHysteresisPct; negative means zero.
	HysteresisPct int

	// MaxProvider supplies the budget ceiling, normally the license
	// manager's MaxWorkUnitsPerMinute. Nil means unlimited.
	MaxProvider func() int

	// OnThreshold observes crossings. Invoked outside the meter lock.
	OnThreshold func(ThresholdEvent)

	Clock  adapters.Clock
	Logger *slog.Logger
}

// bucket accumulates the work units of one slice of the window.
type bucket struct {
	total  float64
	byType map[string]float64
}

// Meter is safe for concurrent use. One lock covers rollover, check, and
// record so that check-and-record admission is atomic.
type Meter struct {
	mu        sync.Mutex
	opts      Options
	bucketDur time.Duration
	ring      []bucket
	head      int
	headStart time.Time
	fired     map[int]bool
}

// New builds a meter. Zero-valued options select the defaults.
func New(opts Options) *Meter {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}

	if opts.Buckets <= 0 {
		opts.Buckets = DefaultBuckets
	}

	if opts.Thresholds == nil {
		opts.Thresholds = DefaultThresholds()
	}

	if opts.HysteresisPct == 0 {
		opts.HysteresisPct = DefaultHysteresisPct
	}

	if opts.HysteresisPct < 0 {
		opts.HysteresisPct = 0
	}

	if opts.Clock == nil {
		opts.Clock = adapters.SystemClock{}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Meter{
		opts:      opts,
		bucketDur: opts.Window / time.Duration(opts.Buckets),
		ring:      make([]bucket, opts.Buckets),
		headStart: opts.Clock.Now(),
		fired:     make(map[int]bool, len(opts.Thresholds)),
	}
}

// Record adds amount under the given type to the current bucket. Recording
// is unconditional; strict admission uses TryConsume instead.
func (m *Meter) Record(amount float64, typ string) {
	m.mu.Lock()

	m.advance(m.opts.Clock.Now())
	m.record(amount, typ)
	events := m.evaluateThresholds()

	m.mu.Unlock()

	m.notify(events)
}

// TryConsume atomically checks the budget and records amount when it fits.
// Returns false, recording nothing, when current + amount would exceed the
// ceiling.
func (m *Meter) TryConsume(amount float64, typ string) bool {
	m.mu.Lock()

	m.advance(m.opts.Clock.Now())

	maxUnits, limited := m.ceiling()
	if limited && m.current()+amount > float64(maxUnits) {
		m.mu.Unlock()

		return false
	}

	m.record(amount, typ)
	events := m.evaluateThresholds()

	m.mu.Unlock()

	m.notify(events)

	return true
}

// CanConsume reports whether amount fits the budget right now. Callers that
// must not race a concurrent admission use TryConsume.
func (m *Meter) CanConsume(amount float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advance(m.opts.Clock.Now())

	maxUnits, limited := m.ceiling()
	if !limited {
		return true
	}

	return m.current()+amount <= float64(maxUnits)
}

// CurrentWorkUnits returns the sum over the live buckets.
func (m *Meter) CurrentWorkUnits() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advance(m.opts.Clock.Now())

	return m.current()
}

// MaxWorkUnits returns the ceiling, or 0 when unlimited.
func (m *Meter) MaxWorkUnits() int {
	maxUnits, limited := m.ceiling()
	if !limited {
		return 0
	}

	return maxUnits
}

// Utilization returns current/max, or 0 when unlimited.
func (m *Meter) Utilization() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advance(m.opts.Clock.Now())

	return m.utilization()
}

// ThrottleFactor maps utilization onto [0, 1]; callers multiply their pace
// by it. 0 means admission is denied outright.
func (m *Meter) ThrottleFactor() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advance(m.opts.Clock.Now())

	return FactorFor(m.utilization())
}

// FactorFor is the pure throttle curve: monotone non-increasing in u.
func FactorFor(u float64) float64 {
	switch {
	case u < throttleKneeLow:
		return 1.0
	case u < throttleKneeHigh:
		return 1.0 - (u-throttleKneeLow)/(throttleKneeHigh-throttleKneeLow)*(1.0-factorAtKneeHigh)
	case u < 1.0:
		return factorAtKneeHigh - (u-throttleKneeHigh)/(1.0-throttleKneeHigh)*(factorAtKneeHigh-factorNearCeiling)
	default:
		return 0.0
	}
}

// Snapshot returns a copy of the meter for reporting.
func (m *Meter) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advance(m.opts.Clock.Now())

	byType := make(map[string]float64)

	for _, b := range m.ring {
		for typ, amount := range b.byType {
			byType[typ] += amount
		}
	}

	if len(byType) == 0 {
		byType = nil
	}

	maxUnits, _ := m.ceiling()
	u := m.utilization()

	return Snapshot{
		Current:        m.current(),
		Max:            maxUnits,
		Utilization:    u,
		ThrottleFactor: FactorFor(u),
		ByType:         byType,
	}
}

// Reset clears all buckets and re-arms every threshold.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.ring {
		m.ring[i] = bucket{}
	}

	m.headStart = m.opts.Clock.Now()
	m.fired = make(map[int]bool, len(m.opts.Thresholds))
}

// ceiling returns the budget max and whether one applies.
func (m *Meter) ceiling() (int, bool) {
	if m.opts.MaxProvider == nil {
		return 0, false
	}

	return m.opts.MaxProvider(), true
}

// current sums the live buckets. Callers hold the lock.
func (m *Meter) current() float64 {
	var sum float64

	for _, b := range m.ring {
		sum += b.total
	}

	return sum
}

// utilization is current/max. A non-positive ceiling with a provider means a
// zeroed entitlement: utilization saturates so the factor is 0.
func (m *Meter) utilization() float64 {
	maxUnits, limited := m.ceiling()
	if !limited {
		return 0
	}

	if maxUnits <= 0 {
		return 1
	}

	return m.current() / float64(maxUnits)
}

// record adds amount to the head bucket. Callers hold the lock.
func (m *Meter) record(amount float64, typ string) {
	b := &m.ring[m.head]
	b.total += amount

	if typ == "" {
		return
	}

	if b.byType == nil {
		b.byType = make(map[string]float64, 4)
	}

	b.byType[typ] += amount
}

// advance rotates expired buckets out of the ring. Callers hold the lock.
func (m *Meter) advance(now time.Time) {
	elapsed := now.Sub(m.headStart)
	if elapsed < m.bucketDur {
		return
	}

	steps := int(elapsed / m.bucketDur)

	if steps >= len(m.ring) {
		for i := range m.ring {
			m.ring[i] = bucket{}
		}
	} else {
		for range steps {
			m.head = (m.head + 1) % len(m.ring)
			m.ring[m.head] = bucket{}
		}
	}

	m.headStart = m.headStart.Add(time.Duration(steps) * m.bucketDur)
}

// evaluateThresholds re-arms fallen thresholds and collects rising-edge
// crossings. Callers hold the lock; fire callbacks after releasing it.
func (m *Meter) evaluateThresholds() []ThresholdEvent {
	maxUnits, limited := m.ceiling()
	if !limited || maxUnits <= 0 {
		return nil
	}

	current := m.current()
	pct := current / float64(maxUnits) * 100

	var events []ThresholdEvent

	for _, th := range m.opts.Thresholds {
		switch {
		case m.fired[th] && pct < float64(th-m.opts.HysteresisPct):
			m.fired[th] = false
		case !m.fired[th] && pct >= float64(th):
			m.fired[th] = true

			events = append(events, ThresholdEvent{
				Threshold:   th,
				Utilization: current / float64(maxUnits),
				Current:     current,
				Max:         maxUnits,
				At:          m.opts.Clock.Now(),
			})
		}
	}

	return events
}

// notify delivers events outside the lock.
func (m *Meter) notify(events []ThresholdEvent) {
	if len(events) == 0 {
		return
	}

	for _, ev := range events {
		m.opts.Logger.Info("work-unit threshold crossed",
			"threshold_pct", ev.Threshold,
			"current", ev.Current,
			"max", ev.Max)

		if m.opts.OnThreshold != nil {
			m.opts.OnThreshold(ev)
		}
	}
}
