// Package scheduler executes compiled workflow graphs. It routes
// emissions to the nodes whose triggers name them, serializes firings
// per node, bounds concurrency per lane, applies license admission to
// every firing, and converts failures into runtime signals so a run
// degrades instead of dying.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/axonworks/axon/pkg/adapters"
	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/gate"
	"github.com/axonworks/axon/pkg/license"
	"github.com/axonworks/axon/pkg/observability"
	"github.com/axonworks/axon/pkg/signal"
	"github.com/axonworks/axon/pkg/sink"
	"github.com/axonworks/axon/pkg/workflow"
)

const (
	// DefaultAtomTimeout bounds a single atom invocation.
	DefaultAtomTimeout = 30 * time.Second

	// DefaultCoordinatorTimeout is the ceiling the runtime owner imposes;
	// the effective deadline is the smaller of the two.
	DefaultCoordinatorTimeout = 60 * time.Second

	// DefaultMaxCycleDepth bounds firings routed through any cyclic edge
	// within one run.
	DefaultMaxCycleDepth = 32

	// DefaultQuarantineAfter is the failure count that quarantines a node.
	DefaultQuarantineAfter = 5

	// DefaultQuarantineWindow is the rolling window for failure counting.
	DefaultQuarantineWindow = time.Minute
)

// quarantine reason values carried on atom.quarantined signals.
const (
	quarantineRepeatedFailure = "repeated_failure"
	quarantineTimeoutAbandon  = "timeout_abandoned"
)

// Options configures New. Registry, Sink, Gate, and Manager are required.
type Options struct {
	Registry *atom.Registry
	Sink     *sink.Sink
	Gate     *gate.Gate
	Manager  license.Manager

	// Services is handed to atoms through their run context.
	Services atom.Services

	// LaneLimits overrides per-lane concurrency bounds. Missing lanes
	// keep their defaults.
	LaneLimits map[atom.Lane]int64

	AtomTimeout        time.Duration
	CoordinatorTimeout time.Duration

	MaxCycleDepth    int
	QuarantineAfter  int
	QuarantineWindow time.Duration

	Clock   adapters.Clock
	Logger  *slog.Logger
	Metrics *observability.Runtime
}

// Scheduler dispatches workflow runs. One scheduler may execute many
// runs; each Run call owns its own bookkeeping.
type Scheduler struct {
	opts  Options
	lanes map[atom.Lane]*semaphore.Weighted

	// atomWG tracks atom goroutines, including ones abandoned by their
	// supervisor. Drain waits for stragglers at shutdown.
	atomWG sync.WaitGroup
}

// New validates opts, applies defaults, and builds the lane semaphores.
func New(opts Options) (*Scheduler, error) {
	if opts.Registry == nil {
		return nil, errors.New("scheduler: nil registry")
	}

	if opts.Sink == nil {
		return nil, errors.New("scheduler: nil sink")
	}

	if opts.Gate == nil {
		return nil, errors.New("scheduler: nil gate")
	}

	if opts.Manager == nil {
		return nil, errors.New("scheduler: nil license manager")
	}

	if opts.AtomTimeout <= 0 {
		opts.AtomTimeout = DefaultAtomTimeout
	}

	if opts.CoordinatorTimeout <= 0 {
		opts.CoordinatorTimeout = DefaultCoordinatorTimeout
	}

	if opts.MaxCycleDepth <= 0 {
		opts.MaxCycleDepth = DefaultMaxCycleDepth
	}

	if opts.QuarantineAfter <= 0 {
		opts.QuarantineAfter = DefaultQuarantineAfter
	}

	if opts.QuarantineWindow <= 0 {
		opts.QuarantineWindow = DefaultQuarantineWindow
	}

	if opts.Clock == nil {
		opts.Clock = adapters.SystemClock{}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	lanes := make(map[atom.Lane]*semaphore.Weighted, len(atom.Lanes()))

	for lane, limit := range atom.DefaultLaneLimits() {
		if override, ok := opts.LaneLimits[lane]; ok && override > 0 {
			limit = override
		}

		lanes[lane] = semaphore.NewWeighted(limit)
	}

	return &Scheduler{opts: opts, lanes: lanes}, nil
}

// run is the per-Run bookkeeping shared by the dispatch paths.
type run struct {
	id        string
	ctx       context.Context
	graph     *workflow.Graph
	nodes     map[string]*nodeState
	executors map[string]atom.Executor

	// slots is the license concurrency ceiling across all lanes, nil
	// when the license does not bound it.
	slots *semaphore.Weighted

	// wg counts supervisors. Every Add happens before the supervisor
	// that causes it returns, so Wait observes quiescence.
	wg sync.WaitGroup

	mu         sync.Mutex
	depth      map[[2]string]int
	log        []signal.Signal
	reports    map[string]*NodeReport
	workUnits  float64
	throttles  int
	drops      int
	cycleDrops int
}

func (r *run) bump(nodeID string, fn func(*NodeReport)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if nr, ok := r.reports[nodeID]; ok {
		fn(nr)
	}
}

// Run executes one workflow run to quiescence and returns its report.
// inputs are emitted after entry nodes fire, in order. The error, when
// non-nil, is a *RunError.
func (s *Scheduler) Run(ctx context.Context, g *workflow.Graph, inputs []signal.Signal) (*RunReport, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, runErr(KindInvalidWorkflow, "", "empty workflow graph", nil)
	}

	if state := s.opts.Manager.CurrentState(); state.Fatal() {
		return nil, runErr(KindLicenseInvalid, "", fmt.Sprintf("license state %s refuses runs", state), nil)
	}

	if maxNodes := s.opts.Manager.MaxNodes(); maxNodes > 0 && len(g.Nodes) > maxNodes {
		return nil, runErr(KindLicenseRequired, "",
			fmt.Sprintf("workflow has %d nodes, tier %s allows %d", len(g.Nodes), s.opts.Manager.CurrentTier(), maxNodes), nil)
	}

	r, err := s.newRun(ctx, g)
	if err != nil {
		return nil, err
	}

	started := s.opts.Clock.Now()
	logger := s.opts.Logger.With(
		slog.String("run_id", r.id),
		slog.String("workflow", g.Definition.ID),
	)
	logger.Info("run started",
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("entry", len(g.Entry)),
		slog.Bool("cyclic", g.HasCycles))

	// External resets and sink overflow notices arrive through the
	// sink. The handler only mutates state and never launches firings,
	// so async delivery cannot outlive wg.Wait in a harmful way.
	subscription := s.opts.Sink.Subscribe(func(sig signal.Signal) {
		s.observe(r, sig)
	})
	defer subscription.Unsubscribe()

	for _, nodeID := range g.Entry {
		s.trigger(r, nodeID, signal.Signal{RunID: r.id, Source: signal.SourceSystem})
	}

	for _, in := range inputs {
		in.RunID = r.id
		if in.Source == "" {
			in.Source = signal.SourceSystem
		}

		s.emit(r, in)
	}

	r.wg.Wait()

	report := s.buildReport(r, started)

	if cause := ctx.Err(); cause != nil {
		rerr := runErr(KindCancelled, "", "run cancelled", cause)
		report.ErrorKind = string(rerr.Kind)
		report.Error = rerr.Error()

		logger.Warn("run cancelled", slog.Int("firings", report.Firings()))

		return report, rerr
	}

	logger.Info("run finished",
		slog.Int("firings", report.Firings()),
		slog.Float64("work_units", report.WorkUnits),
		slog.Int("signals", len(report.Signals)))

	return report, nil
}

func (s *Scheduler) newRun(ctx context.Context, g *workflow.Graph) (*run, error) {
	r := &run{
		id:        uuid.NewString(),
		ctx:       ctx,
		graph:     g,
		nodes:     make(map[string]*nodeState, len(g.Nodes)),
		executors: make(map[string]atom.Executor, len(g.Nodes)),
		depth:     make(map[[2]string]int),
		reports:   make(map[string]*NodeReport, len(g.Nodes)),
	}

	for id, node := range g.Nodes {
		desc, err := s.opts.Registry.Get(node.AtomName)
		if err != nil {
			return nil, runErr(KindUnknownAtom, id, fmt.Sprintf("atom %q", node.AtomName), err)
		}

		r.nodes[id] = &nodeState{trigger: g.Triggers[id]}
		r.executors[id] = desc.Executor
		r.reports[id] = &NodeReport{NodeID: id, AtomName: node.AtomName}
	}

	if maxSlots := s.opts.Manager.MaxSlots(); maxSlots > 0 {
		r.slots = semaphore.NewWeighted(int64(maxSlots))
	}

	return r, nil
}

// observe handles passively subscribed runtime signals for r.
func (s *Scheduler) observe(r *run, sig signal.Signal) {
	if sig.RunID != "" && sig.RunID != r.id {
		return
	}

	switch sig.Name {
	case signal.AtomReset:
		nodeID := sig.Key
		if nodeID == "" {
			nodeID, _ = sig.Value.(string)
		}

		if ns, ok := r.nodes[nodeID]; ok {
			ns.reset()
			s.opts.Logger.Info("node quarantine cleared",
				slog.String("run_id", r.id), slog.String("node", nodeID))
		}
	case signal.SubscriberDrop:
		r.mu.Lock()
		r.drops++
		r.mu.Unlock()
	}
}

// emit appends sig to the sink and routes the stamped result.
func (s *Scheduler) emit(r *run, sig signal.Signal) {
	stamped := s.opts.Sink.Emit(sig)
	s.route(r, stamped)
}

// route fans sig out to trigger targets and taps. Taps never receive
// their own emissions.
func (s *Scheduler) route(r *run, sig signal.Signal) {
	r.mu.Lock()
	r.log = append(r.log, sig)
	r.mu.Unlock()

	s.opts.Metrics.RecordSignal(r.ctx, sig.Name)

	if r.ctx.Err() != nil {
		return
	}

	for _, rt := range r.graph.Emitters[sig.Name] {
		if rt.Cyclic && !s.admitCycle(r, sig.Name, rt.Target) {
			continue
		}

		s.trigger(r, rt.Target, sig)
	}

	for _, tapID := range r.graph.Taps {
		if tapID == sig.Source {
			continue
		}

		s.trigger(r, tapID, sig)
	}
}

// admitCycle bounds traversals of a cyclic edge within one run.
func (s *Scheduler) admitCycle(r *run, signalName, target string) bool {
	key := [2]string{signalName, target}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.depth[key]++
	if r.depth[key] > s.opts.MaxCycleDepth {
		r.cycleDrops++

		if r.depth[key] == s.opts.MaxCycleDepth+1 {
			s.opts.Logger.Warn("cycle depth exhausted",
				slog.String("run_id", r.id),
				slog.String("signal", signalName),
				slog.String("node", target),
				slog.Int("max_depth", s.opts.MaxCycleDepth))
		}

		return false
	}

	return true
}

// trigger offers sig to a node and launches a supervisor when the node
// fires.
func (s *Scheduler) trigger(r *run, nodeID string, sig signal.Signal) {
	ns, ok := r.nodes[nodeID]
	if !ok {
		return
	}

	f, dropped := ns.offer(sig)
	if dropped {
		r.bump(nodeID, func(nr *NodeReport) { nr.Skips++ })

		return
	}

	if f == nil {
		return
	}

	r.wg.Add(1)

	go s.supervise(r, nodeID, f)
}

// supervise drains one node's serial slot: it runs the launched firing,
// then any firings coalesced while it was busy.
func (s *Scheduler) supervise(r *run, nodeID string, f *firing) {
	defer r.wg.Done()

	ns := r.nodes[nodeID]

	for f != nil {
		if !s.invoke(r, nodeID, f) {
			// Slot intentionally parked: either the run is cancelled or
			// the invocation was abandoned and may still be executing.
			return
		}

		f = ns.completeAndNext()
	}
}

// invoke admits and executes one firing. It reports false when the
// node's serial slot must stay parked.
func (s *Scheduler) invoke(r *run, nodeID string, f *firing) bool {
	node := r.graph.Nodes[nodeID]
	contract := r.graph.Contracts[nodeID]
	logger := s.opts.Logger.With(
		slog.String("run_id", r.id),
		slog.String("node", nodeID),
		slog.String("atom", node.AtomName),
	)

	// License slot ceiling first, then the lane bound. Both queue FIFO
	// and abort on cancel.
	if r.slots != nil {
		if err := r.slots.Acquire(r.ctx, 1); err != nil {
			return false
		}
		defer r.slots.Release(1)
	}

	lane, ok := s.lanes[contract.Lane]
	if !ok {
		lane = s.lanes[atom.LaneFast]
	}

	if err := lane.Acquire(r.ctx, 1); err != nil {
		return false
	}
	defer lane.Release(1)

	res := s.opts.Gate.Admit(contract, payloadKB(contract, f.inputs))

	switch res.Decision {
	case gate.Throttled:
		r.bump(nodeID, func(nr *NodeReport) {
			nr.Throttled++
			nr.Skips++
		})
		r.mu.Lock()
		r.throttles++
		r.mu.Unlock()

		logger.Debug("firing throttled", slog.Float64("cost", res.Cost), slog.String("reason", res.Reason))
		s.emitRuntime(r, signal.AtomThrottled, nodeID, map[string]any{
			"reason": res.Reason,
			"cost":   res.Cost,
		})

		return true
	case gate.DegradedSkip:
		r.bump(nodeID, func(nr *NodeReport) { nr.Skips++ })

		logger.Debug("firing degraded", slog.String("reason", res.Reason))
		s.emitRuntime(r, signal.AtomDegraded, nodeID, map[string]any{"reason": res.Reason})

		return true
	case gate.LicenseRequired:
		r.bump(nodeID, func(nr *NodeReport) { nr.Skips++ })

		logger.Warn("firing refused, license required", slog.String("reason", res.Reason))
		s.emitRuntime(r, signal.LicenseRequired, nodeID, map[string]any{"reason": res.Reason})
		s.failNode(r, nodeID, logger)

		return true
	case gate.Admitted:
	}

	r.mu.Lock()
	r.workUnits += res.Cost
	r.mu.Unlock()
	r.bump(nodeID, func(nr *NodeReport) { nr.WorkUnits += res.Cost })
	s.opts.Metrics.RecordWorkUnits(r.ctx, res.Cost, string(contract.Kind))

	deadline := min(s.opts.AtomTimeout, s.opts.CoordinatorTimeout)
	actx, cancel := context.WithTimeout(r.ctx, deadline)
	defer cancel()

	rc := &atom.RunContext{
		RunID:    r.id,
		NodeID:   nodeID,
		Trigger:  f.trigger,
		Inputs:   f.inputs,
		Config:   node.Config,
		Logger:   logger,
		Sink:     s.opts.Sink,
		Services: s.opts.Services,
	}

	release := s.opts.Metrics.TrackInflightAtom(r.ctx, string(contract.Lane))
	defer release()

	started := time.Now()
	done := make(chan error, 1)

	s.atomWG.Add(1)

	go func() {
		defer s.atomWG.Done()
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("atom panicked: %v", p)
			}
		}()

		done <- r.executors[nodeID](actx, rc)
	}()

	var (
		execErr error
		late    bool
	)

	select {
	case execErr = <-done:
	case <-actx.Done():
		if r.ctx.Err() != nil {
			// Run cancelled. The atom keeps the background goroutine; its
			// emissions are discarded.
			return false
		}

		// Deadline hit. Give the atom one more deadline to come back
		// before declaring it a runaway.
		grace := time.NewTimer(deadline)
		defer grace.Stop()

		late = true

		select {
		case execErr = <-done:
		case <-r.ctx.Done():
			return false
		case <-grace.C:
			s.abandon(r, nodeID, logger)

			return false
		}
	}

	took := time.Since(started)
	s.opts.Metrics.RecordDispatch(r.ctx, string(contract.Lane), took)

	if execErr == nil && late {
		// Returned inside the grace period; still past its deadline.
		execErr = context.DeadlineExceeded
	}

	if execErr != nil {
		kind := KindAtomError
		if errors.Is(execErr, context.DeadlineExceeded) {
			kind = KindTimeout
		}

		logger.Warn("atom failed",
			slog.String("kind", string(kind)),
			slog.Duration("took", took),
			slog.Any("error", execErr))

		r.bump(nodeID, func(nr *NodeReport) { nr.Errors++ })
		s.opts.Metrics.RecordAtomError(r.ctx, nodeID)
		s.emitRuntime(r, signal.AtomError, nodeID, map[string]any{
			"kind":    string(kind),
			"message": execErr.Error(),
		})
		s.failNode(r, nodeID, logger)

		return true
	}

	// Successful firing: flush buffered emissions into the sink in
	// order, routing each.
	for _, out := range rc.Emitted() {
		s.emit(r, out)
	}

	r.bump(nodeID, func(nr *NodeReport) { nr.Firings++ })
	logger.Debug("atom completed", slog.Duration("took", took), slog.Int("emitted", len(rc.Emitted())))

	return true
}

// failNode counts one failure and quarantines the node at the threshold.
func (s *Scheduler) failNode(r *run, nodeID string, logger *slog.Logger) {
	ns := r.nodes[nodeID]
	if !ns.recordFailure(s.opts.Clock.Now(), s.opts.QuarantineWindow, s.opts.QuarantineAfter) {
		return
	}

	logger.Warn("node quarantined", slog.String("reason", quarantineRepeatedFailure))
	s.emitRuntime(r, signal.AtomQuarantined, nodeID, map[string]any{"reason": quarantineRepeatedFailure})
}

// abandon quarantines a node whose invocation outlived deadline and the
// grace period. The serial slot stays parked so a still-running atom
// can never overlap a future firing of the same node.
func (s *Scheduler) abandon(r *run, nodeID string, logger *slog.Logger) {
	r.nodes[nodeID].markAbandoned()

	r.bump(nodeID, func(nr *NodeReport) { nr.Errors++ })
	s.opts.Metrics.RecordAtomError(r.ctx, nodeID)

	logger.Warn("atom abandoned", slog.String("reason", quarantineTimeoutAbandon))
	s.emitRuntime(r, signal.AtomQuarantined, nodeID, map[string]any{"reason": quarantineTimeoutAbandon})
}

// emitRuntime emits a system-sourced runtime signal keyed by node.
func (s *Scheduler) emitRuntime(r *run, name, nodeID string, value any) {
	s.emit(r, signal.Signal{
		RunID:  r.id,
		Source: signal.SourceSystem,
		Name:   name,
		Key:    nodeID,
		Value:  value,
	})
}

func (s *Scheduler) buildReport(r *run, started time.Time) *RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &RunReport{
		RunID:          r.id,
		WorkflowID:     r.graph.Definition.ID,
		StartedAt:      started,
		Duration:       s.opts.Clock.Now().Sub(started),
		WorkUnits:      r.workUnits,
		ThrottleEvents: r.throttles,
		DroppedSignals: r.drops,
		CycleDrops:     r.cycleDrops,
		Signals:        slices.Clone(r.log),
	}

	// Quarantined reflects the node's final state, so a reset mid-run
	// reads as healthy.
	for _, node := range r.graph.Definition.Nodes {
		nr := *r.reports[node.ID]
		nr.Quarantined = r.nodes[node.ID].isQuarantined()
		report.Nodes = append(report.Nodes, nr)
	}

	return report
}

// Drain waits up to timeout for detached atom goroutines, including
// abandoned ones, to finish. It reports whether all of them did.
func (s *Scheduler) Drain(timeout time.Duration) bool {
	settled := make(chan struct{})

	go func() {
		s.atomWG.Wait()
		close(settled)
	}()

	select {
	case <-settled:
		return true
	case <-time.After(timeout):
		return false
	}
}

// payloadKB estimates the serialized size of a firing's inputs. Skipped
// entirely for contracts without a per-KB cost component.
func payloadKB(contract atom.Contract, inputs map[string]signal.Signal) float64 {
	if contract.CostPerKB <= 0 || len(inputs) == 0 {
		return 0
	}

	var total int

	for _, sig := range inputs {
		if buf, err := json.Marshal(sig.Value); err == nil {
			total += len(buf)
		}
	}

	return float64(total) / 1024
}
