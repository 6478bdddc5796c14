// Package coordinator owns the runtime lifecycle. It wires the sink, the
// work-unit meter, the license manager, the gate, and the scheduler into
// one long-lived stack, announces itself and its license tier through
// system signals, heartbeats at a fixed cadence, and shuts the stack
// down in order: cancel, drain, release.
package coordinator

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/axonworks/axon/pkg/adapters"
	"github.com/axonworks/axon/pkg/alg/lru"
	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/gate"
	"github.com/axonworks/axon/pkg/license"
	"github.com/axonworks/axon/pkg/meter"
	"github.com/axonworks/axon/pkg/observability"
	"github.com/axonworks/axon/pkg/scheduler"
	"github.com/axonworks/axon/pkg/signal"
	"github.com/axonworks/axon/pkg/sink"
	"github.com/axonworks/axon/pkg/workflow"
)

// Defaults applied by New.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultShutdownGrace     = 5 * time.Second
)

// definitionCacheEntries bounds the parsed-definition cache. Keyed by
// content hash, so a changed document never hits a stale entry.
const definitionCacheEntries = 128

// DefaultThresholds are the utilization percentages the coordinator
// announces as workunit.threshold signals.
func DefaultThresholds() []int {
	return []int{80, 90, 100}
}

// ErrShutdownTimeout is returned by Stop when in-flight atoms did not
// finish within the shutdown grace.
var ErrShutdownTimeout = errors.New("coordinator: shutdown grace elapsed with atoms still running")

// ErrAlreadyStarted is returned by Start on a coordinator that is
// already running.
var ErrAlreadyStarted = errors.New("coordinator: already started")

// Options configures New. Registry is required; everything else has a
// sensible default.
type Options struct {
	// Registry holds the atoms workflows may reference.
	Registry *atom.Registry

	// Services is handed to atoms through their run context.
	Services atom.Services

	// LicenseToken is the signed token envelope. LicenseFile names a file
	// to read it from instead; the inline token wins when both are set.
	// Neither set selects the free tier.
	LicenseToken []byte
	LicenseFile  string

	// VendorKey verifies the token signature.
	VendorKey ed25519.PublicKey

	// LicenseOverrides replace individual token entitlements in-process.
	LicenseOverrides license.Overrides

	// LicenseGracePeriod and ClockSkew pass through to the manager.
	// Zero selects the manager defaults.
	LicenseGracePeriod time.Duration
	ClockSkew          time.Duration

	// FreeTier replaces the default free-tier limits when non-zero.
	FreeTier license.Limits

	// CustomLicenseValidator can reject a structurally valid token.
	CustomLicenseValidator func(license.Token) error

	// CustomWorkUnitCalculator overrides the gate's pricing function.
	CustomWorkUnitCalculator gate.CostCalculator

	// OnLicenseStateChanged observes license transitions, after the
	// license.state signal is emitted.
	OnLicenseStateChanged func(old, new license.State)

	// OnWorkUnitThreshold observes rising-edge utilization crossings,
	// after the workunit.threshold signal is emitted.
	OnWorkUnitThreshold func(meter.ThresholdEvent)

	// AllowFreeTierDegradation turns per-node tier and feature refusals
	// into silent skips instead of license.required failures.
	AllowFreeTierDegradation bool

	// EnableMesh is accepted for configuration compatibility and ignored;
	// this build is single-node.
	EnableMesh bool

	HeartbeatInterval time.Duration
	ShutdownGrace     time.Duration

	// Work-unit meter shape. Zero values select the meter defaults;
	// nil thresholds select DefaultThresholds.
	WorkUnitWindow         time.Duration
	WorkUnitBuckets        int
	WorkUnitThresholds     []int
	ThresholdHysteresisPct int

	// Sink shape. Zero values select the sink defaults.
	SinkCapacity int
	SinkMaxAge   time.Duration
	SinkAsync    bool

	// Scheduler tuning, passed through unchanged.
	LaneLimits         map[atom.Lane]int64
	AtomTimeout        time.Duration
	CoordinatorTimeout time.Duration
	MaxCycleDepth      int
	QuarantineAfter    int
	QuarantineWindow   time.Duration

	Clock   adapters.Clock
	Logger  *slog.Logger
	Metrics *observability.Runtime
}

// Status is a point-in-time view of the running stack for renderers and
// the MCP surface.
type Status struct {
	License license.Snapshot `json:"license"`
	Meter   meter.Snapshot   `json:"meter"`
	Signals int              `json:"signals"`
	Windows []string         `json:"windows,omitempty"`
}

// Coordinator is the lifecycle owner. Construct with New, run with
// Start, execute workflows with Execute, release with Stop.
type Coordinator struct {
	opts Options

	sink      *sink.Sink
	meter     *meter.Meter
	manager   license.Manager
	gate      *gate.Gate
	scheduler *scheduler.Scheduler

	// definitions caches parse results for ExecuteJSON and Validate.
	// Definitions are immutable after Parse, so entries are shared.
	definitions *lru.Cache[string, *workflow.Definition]

	cancel context.CancelFunc
	group  *errgroup.Group

	mu      sync.Mutex
	started bool
	stopped bool
}

// New wires the stack. No goroutines start and no signals are emitted
// until Start.
func New(opts Options) (*Coordinator, error) {
	if opts.Registry == nil {
		return nil, errors.New("coordinator: nil registry")
	}

	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = DefaultShutdownGrace
	}

	if opts.WorkUnitThresholds == nil {
		opts.WorkUnitThresholds = DefaultThresholds()
	}

	if opts.Clock == nil {
		opts.Clock = adapters.SystemClock{}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.EnableMesh {
		opts.Logger.Warn("mesh coordination requested but not available in this build, running single-node")
	}

	token := opts.LicenseToken
	if len(token) == 0 && opts.LicenseFile != "" {
		data, err := os.ReadFile(opts.LicenseFile)
		if err != nil {
			return nil, fmt.Errorf("coordinator: read license file: %w", err)
		}

		token = data
	}

	c := &Coordinator{opts: opts}

	c.definitions = lru.New(
		lru.WithMaxEntries[string, *workflow.Definition](definitionCacheEntries))

	c.sink = sink.New(sink.Options{
		Capacity: opts.SinkCapacity,
		MaxAge:   opts.SinkMaxAge,
		Async:    opts.SinkAsync,
		Clock:    opts.Clock,
		Logger:   opts.Logger,
	})

	manager, err := license.NewManager(license.Options{
		TokenJSON:     token,
		VendorKey:     opts.VendorKey,
		Overrides:     opts.LicenseOverrides,
		GracePeriod:   opts.LicenseGracePeriod,
		ClockSkew:     opts.ClockSkew,
		FreeTier:      opts.FreeTier,
		Validator:     opts.CustomLicenseValidator,
		OnStateChange: c.licenseChanged,
		Clock:         opts.Clock,
		Logger:        opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("coordinator: license manager: %w", err)
	}

	c.manager = manager

	c.meter = meter.New(meter.Options{
		Window:        opts.WorkUnitWindow,
		Buckets:       opts.WorkUnitBuckets,
		Thresholds:    opts.WorkUnitThresholds,
		HysteresisPct: opts.ThresholdHysteresisPct,
		MaxProvider:   manager.MaxWorkUnitsPerMinute,
		OnThreshold:   c.thresholdCrossed,
		Clock:         opts.Clock,
		Logger:        opts.Logger,
	})

	c.gate = gate.New(gate.Options{
		Manager:                  manager,
		Meter:                    c.meter,
		AllowFreeTierDegradation: opts.AllowFreeTierDegradation,
		Cost:                     opts.CustomWorkUnitCalculator,
		Logger:                   opts.Logger,
	})

	sched, err := scheduler.New(scheduler.Options{
		Registry:           opts.Registry,
		Sink:               c.sink,
		Gate:               c.gate,
		Manager:            manager,
		Services:           opts.Services,
		LaneLimits:         opts.LaneLimits,
		AtomTimeout:        opts.AtomTimeout,
		CoordinatorTimeout: opts.CoordinatorTimeout,
		MaxCycleDepth:      opts.MaxCycleDepth,
		QuarantineAfter:    opts.QuarantineAfter,
		QuarantineWindow:   opts.QuarantineWindow,
		Clock:              opts.Clock,
		Logger:             opts.Logger,
		Metrics:            opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("coordinator: scheduler: %w", err)
	}

	c.scheduler = sched

	return c, nil
}

// Start announces readiness and the license tier, then begins the
// heartbeat and license revalidation loops. The loops stop when ctx is
// canceled or Stop is called.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.group, runCtx = errgroup.WithContext(runCtx)
	c.started = true

	c.sink.Emit(signal.Signal{
		Source: signal.SourceSystem,
		Name:   signal.SystemReady,
		Value:  map[string]any{"atoms": c.opts.Registry.Len()},
	})
	c.sink.Emit(signal.Signal{
		Source: signal.SourceSystem,
		Name:   signal.SystemLicenseTier,
		Value:  c.manager.CurrentTier().String(),
	})

	c.opts.Logger.Info("coordinator started",
		slog.String("state", c.manager.CurrentState().String()),
		slog.String("tier", c.manager.CurrentTier().String()),
		slog.Int("atoms", c.opts.Registry.Len()))

	c.manager.ValidateAsync(runCtx)
	c.group.Go(func() error {
		c.heartbeat(runCtx)

		return nil
	})

	return nil
}

// heartbeat emits system.heartbeat every HeartbeatInterval until ctx is
// done.
func (c *Coordinator) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	seq := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq++
			c.sink.Emit(signal.Signal{
				Source: signal.SourceSystem,
				Name:   signal.SystemHeartbeat,
				Value:  map[string]any{"seq": seq},
			})
		}
	}
}

// licenseChanged relays a manager transition as a license.state signal,
// then notifies the configured callback.
func (c *Coordinator) licenseChanged(old, new license.State) {
	c.sink.Emit(signal.Signal{
		Source: signal.SourceSystem,
		Name:   signal.LicenseState,
		Value: map[string]any{
			"old": old.String(),
			"new": new.String(),
		},
	})

	if c.opts.OnLicenseStateChanged != nil {
		c.opts.OnLicenseStateChanged(old, new)
	}
}

// thresholdCrossed relays a meter crossing as a workunit.threshold
// signal, then notifies the configured callback.
func (c *Coordinator) thresholdCrossed(ev meter.ThresholdEvent) {
	c.sink.Emit(signal.Signal{
		Source: signal.SourceSystem,
		Name:   signal.WorkUnitThreshold,
		Value: map[string]any{
			"threshold":   ev.Threshold,
			"utilization": ev.Utilization,
			"current":     ev.Current,
			"max":         ev.Max,
		},
	})

	if c.opts.OnWorkUnitThreshold != nil {
		c.opts.OnWorkUnitThreshold(ev)
	}
}

// Execute compiles def and runs it to quiescence. The returned error,
// when non-nil, is a *scheduler.RunError.
func (c *Coordinator) Execute(ctx context.Context, def *workflow.Definition, inputs []signal.Signal) (*scheduler.RunReport, error) {
	g, err := c.compile(def)
	if err != nil {
		return nil, err
	}

	return c.scheduler.Run(ctx, g, inputs)
}

// ExecuteJSON parses a workflow definition document and runs it. A
// document seen before skips straight past parsing and schema checks.
func (c *Coordinator) ExecuteJSON(ctx context.Context, data []byte, inputs []signal.Signal) (*scheduler.RunReport, error) {
	def, err := c.parse(data)
	if err != nil {
		return nil, err
	}

	return c.Execute(ctx, def, inputs)
}

// Validate parses and compiles a workflow definition document without
// running it. The returned error, when non-nil, is a *scheduler.RunError.
func (c *Coordinator) Validate(data []byte) error {
	def, err := c.parse(data)
	if err != nil {
		return err
	}

	_, err = c.compile(def)

	return err
}

// parse resolves data through the definition cache, parsing on first
// sight. Only successful parses are cached.
func (c *Coordinator) parse(data []byte) (*workflow.Definition, error) {
	key := definitionKey(data)
	if def, ok := c.definitions.Get(key); ok {
		return def, nil
	}

	def, err := workflow.Parse(data)
	if err != nil {
		return nil, &scheduler.RunError{Kind: scheduler.KindInvalidWorkflow, Msg: "workflow rejected", Err: err}
	}

	c.definitions.Put(key, def)

	return def, nil
}

func definitionKey(data []byte) string {
	sum := sha256.Sum256(data)

	return string(sum[:])
}

func (c *Coordinator) compile(def *workflow.Definition) (*workflow.Graph, error) {
	g, err := workflow.Compile(def, c.opts.Registry, workflow.ValidateOptions{})
	if err != nil {
		kind := scheduler.KindInvalidWorkflow
		if errors.Is(err, atom.ErrUnknownAtom) {
			kind = scheduler.KindUnknownAtom
		}

		return nil, &scheduler.RunError{Kind: kind, Msg: "workflow rejected", Err: err}
	}

	return g, nil
}

// Stop cancels the loops and any in-flight run, waits out the shutdown
// grace for straggling atoms, and releases the sink. Idempotent.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.stopped {
		return nil
	}

	c.stopped = true
	c.cancel()

	_ = c.group.Wait()

	var err error
	if !c.scheduler.Drain(c.opts.ShutdownGrace) {
		err = ErrShutdownTimeout

		c.opts.Logger.Warn("shutdown grace elapsed",
			slog.Duration("grace", c.opts.ShutdownGrace))
	}

	c.sink.Close()
	c.opts.Logger.Info("coordinator stopped")

	return err
}

// Status snapshots the license, the budget, and the sink.
func (c *Coordinator) Status() Status {
	return Status{
		License: c.manager.Snapshot(),
		Meter:   c.meter.Snapshot(),
		Signals: c.sink.Len(),
		Windows: c.sink.WindowNames(),
	}
}

// Sink exposes the signal sink for taps, tests, and the MCP surface.
func (c *Coordinator) Sink() *sink.Sink { return c.sink }

// Registry exposes the atom registry.
func (c *Coordinator) Registry() *atom.Registry { return c.opts.Registry }

// Manager exposes the license manager.
func (c *Coordinator) Manager() license.Manager { return c.manager }

// Meter exposes the work-unit meter.
func (c *Coordinator) Meter() *meter.Meter { return c.meter }
