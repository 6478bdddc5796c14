// Package signal defines the immutable record exchanged through the sink and
// the stable names of the signals the runtime itself emits.
package signal

import "time"

// SourceSystem is the Source of signals emitted by the runtime rather than
// by a workflow node.
const SourceSystem = "system"

// Signal is one named, timestamped value broadcast through the sink. Once
// appended it is never mutated; consumers must treat Value as read-only.
type Signal struct {
	// RunID identifies the workflow run the signal belongs to. Empty for
	// signals emitted outside any run (heartbeats, license transitions).
	RunID string `json:"runId,omitempty"`

	// Source is the emitting node ID, or SourceSystem.
	Source string `json:"source"`

	// Name is a dot-delimited path such as "sentiment.score".
	Name string `json:"name"`

	// Key is an optional correlation token, e.g. the identity a burst
	// detector counted.
	Key string `json:"key,omitempty"`

	// Value is the payload: scalar, string, slice, or structured record.
	Value any `json:"value"`

	// Confidence is meaningful for detector emissions, in [0, 1].
	Confidence float64 `json:"confidence,omitempty"`

	// EmittedAt is assigned by the sink on append and is strictly
	// monotonic within one sink.
	EmittedAt time.Time `json:"emittedAt"`
}

// Names of the signals the runtime itself emits. Workflow atoms must not
// write to these.
const (
	SystemReady       = "system.ready"
	SystemHeartbeat   = "system.heartbeat"
	SystemLicenseTier = "system.license.tier"
	LicenseState      = "license.state"
	LicenseRequired   = "license.required"
	WorkUnitThreshold = "workunit.threshold"
	AtomError         = "atom.error"
	AtomThrottled     = "atom.throttled"
	AtomDegraded      = "atom.degraded"
	AtomQuarantined   = "atom.quarantined"
	AtomReset         = "atom.reset"
	SubscriberDrop    = "sink.subscriber.drop"
)

// New builds a signal with the given source, name, and value. EmittedAt is
// left zero; the sink stamps it on append.
func New(source, name string, value any) Signal {
	return Signal{Source: source, Name: name, Value: value}
}
