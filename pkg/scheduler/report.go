package scheduler

import (
	"time"

	"github.com/axonworks/axon/pkg/signal"
)

// NodeReport aggregates dispatch outcomes for one node over a run.
type NodeReport struct {
	NodeID      string  `json:"nodeId"`
	AtomName    string  `json:"atomName"`
	Firings     int     `json:"firings"`
	Errors      int     `json:"errors"`
	Skips       int     `json:"skips"`
	Throttled   int     `json:"throttled"`
	WorkUnits   float64 `json:"workUnits"`
	Quarantined bool    `json:"quarantined,omitempty"`
}

// RunReport is the outcome of one workflow run. Nodes follow definition
// order; Signals is the full emission log in stamp order.
type RunReport struct {
	RunID      string    `json:"runId"`
	WorkflowID string    `json:"workflowId"`
	StartedAt  time.Time `json:"startedAt"`

	// Duration is measured on the scheduler clock.
	Duration time.Duration `json:"duration"`

	Nodes []NodeReport `json:"nodes"`

	WorkUnits      float64 `json:"workUnits"`
	ThrottleEvents int     `json:"throttleEvents"`
	DroppedSignals int     `json:"droppedSignals,omitempty"`
	CycleDrops     int     `json:"cycleDrops,omitempty"`

	Signals []signal.Signal `json:"signals"`

	// ErrorKind and Error are filled when the run returned an error, so
	// serialized reports carry the failure without the error value.
	ErrorKind string `json:"errorKind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Node returns the report row for id, or nil.
func (r *RunReport) Node(id string) *NodeReport {
	for i := range r.Nodes {
		if r.Nodes[i].NodeID == id {
			return &r.Nodes[i]
		}
	}

	return nil
}

// Firings sums node firings across the run.
func (r *RunReport) Firings() int {
	var total int
	for i := range r.Nodes {
		total += r.Nodes[i].Firings
	}

	return total
}

// Failed reports whether any node ended the run quarantined or counted
// errors.
func (r *RunReport) Failed() bool {
	for i := range r.Nodes {
		if r.Nodes[i].Quarantined || r.Nodes[i].Errors > 0 {
			return true
		}
	}

	return false
}
