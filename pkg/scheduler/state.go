package scheduler

import (
	"sync"
	"time"

	"github.com/axonworks/axon/pkg/signal"
	"github.com/axonworks/axon/pkg/workflow"
)

// firing is one unit of node work: the trigger that caused it and the
// coalesced inputs, most recent value per signal name.
type firing struct {
	trigger signal.Signal
	inputs  map[string]signal.Signal
}

// nodeState serializes invocations of one node and holds its coalescing
// and quarantine bookkeeping. All fields are guarded by mu.
type nodeState struct {
	mu sync.Mutex

	trigger workflow.Trigger

	// busy marks a supervisor holding the node's serial slot. An
	// abandoned invocation parks the slot for the rest of the run.
	busy bool

	// pending coalesces triggers arriving while busy, most recent value
	// per signal name.
	pending map[string]signal.Signal

	// seen accumulates arrivals for TriggerAll predicates while idle.
	// Consumed when a firing launches.
	seen map[string]signal.Signal

	failures    []time.Time
	quarantined bool
}

// offer presents a signal to the node. It returns the firing to launch
// when the node is idle and its predicate is satisfied; nil when the
// signal was coalesced or is still waiting on other names. dropped is
// set when the node is quarantined.
func (ns *nodeState) offer(sig signal.Signal) (f *firing, dropped bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.quarantined {
		return nil, true
	}

	if ns.busy {
		if sig.Name != "" {
			if ns.pending == nil {
				ns.pending = make(map[string]signal.Signal)
			}

			ns.pending[sig.Name] = sig
		}

		return nil, false
	}

	if ns.waitsForAll() {
		if sig.Name != "" {
			if ns.seen == nil {
				ns.seen = make(map[string]signal.Signal)
			}

			ns.seen[sig.Name] = sig
		}

		if !ns.allSeen(ns.seen) {
			return nil, false
		}

		f = &firing{trigger: latest(ns.seen), inputs: ns.seen}
		ns.seen = nil
		ns.busy = true

		return f, false
	}

	inputs := make(map[string]signal.Signal, 1)
	if sig.Name != "" {
		inputs[sig.Name] = sig
	}

	ns.busy = true

	return &firing{trigger: sig, inputs: inputs}, false
}

// completeAndNext finishes the current firing and returns the next one
// drained from the coalesced pending set, or nil when the node goes
// idle. The serial slot stays held across the returned firing.
func (ns *nodeState) completeAndNext() *firing {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.quarantined {
		ns.busy = false
		ns.pending = nil
		ns.seen = nil

		return nil
	}

	if ns.waitsForAll() {
		if len(ns.pending) > 0 {
			if ns.seen == nil {
				ns.seen = make(map[string]signal.Signal, len(ns.pending))
			}

			for name, sig := range ns.pending {
				ns.seen[name] = sig
			}

			ns.pending = nil
		}

		if !ns.allSeen(ns.seen) {
			ns.busy = false

			return nil
		}

		f := &firing{trigger: latest(ns.seen), inputs: ns.seen}
		ns.seen = nil

		return f
	}

	if len(ns.pending) > 0 {
		f := &firing{trigger: latest(ns.pending), inputs: ns.pending}
		ns.pending = nil

		return f
	}

	ns.busy = false

	return nil
}

// recordFailure appends a failure at now and reports whether the node
// just crossed the quarantine threshold within the rolling window.
func (ns *nodeState) recordFailure(now time.Time, window time.Duration, threshold int) bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.quarantined {
		return false
	}

	cut := now.Add(-window)
	kept := ns.failures[:0]

	for _, at := range ns.failures {
		if at.After(cut) {
			kept = append(kept, at)
		}
	}

	ns.failures = append(kept, now)

	if len(ns.failures) >= threshold {
		ns.quarantined = true
		ns.failures = nil

		return true
	}

	return false
}

// markAbandoned quarantines the node without releasing the serial slot;
// the runaway invocation may still be executing.
func (ns *nodeState) markAbandoned() {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.quarantined = true
	ns.failures = nil
	ns.pending = nil
	ns.seen = nil
}

// reset clears quarantine and failure history. A slot parked by an
// abandoned invocation stays parked.
func (ns *nodeState) reset() {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.quarantined = false
	ns.failures = nil
	ns.pending = nil
	ns.seen = nil
}

func (ns *nodeState) isQuarantined() bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	return ns.quarantined
}

func (ns *nodeState) waitsForAll() bool {
	return ns.trigger.Mode == workflow.TriggerAll && len(ns.trigger.Names) > 0
}

// allSeen reports whether every trigger name has arrived. Callers hold mu.
func (ns *nodeState) allSeen(got map[string]signal.Signal) bool {
	for _, name := range ns.trigger.Names {
		if _, ok := got[name]; !ok {
			return false
		}
	}

	return true
}

// latest returns the most recently stamped signal in m. Sink stamps are
// strictly monotonic, so the result is unique.
func latest(m map[string]signal.Signal) signal.Signal {
	var best signal.Signal

	for _, sig := range m {
		if best.Name == "" || sig.EmittedAt.After(best.EmittedAt) {
			best = sig
		}
	}

	return best
}
