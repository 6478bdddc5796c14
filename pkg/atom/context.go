package atom

import (
	"log/slog"
	"sync"

	"github.com/axonworks/axon/pkg/adapters"
	"github.com/axonworks/axon/pkg/signal"
	"github.com/axonworks/axon/pkg/sink"
)

// Services is the external-collaborator handle an invocation borrows.
type Services struct {
	Storage adapters.Storage
	LLM     adapters.LLM
}

// RunContext carries everything one invocation may touch. The scheduler
// builds one per firing and never shares it across concurrent atoms.
// Emissions are buffered here and appended to the sink by the scheduler
// after the executor returns, preserving emission order.
type RunContext struct {
	// RunID identifies the workflow run; NodeID the node being fired.
	RunID  string
	NodeID string

	// Trigger is the signal whose arrival caused this firing. Inputs holds
	// the most recent signal per name out of the coalesced trigger set,
	// Trigger included. Entry-node firings carry a zero Trigger.
	Trigger signal.Signal
	Inputs  map[string]signal.Signal

	// Config is the node's config block from the workflow definition.
	Config Config

	Logger   *slog.Logger
	Sink     *sink.Sink
	Services Services

	mu      sync.Mutex
	emitted []signal.Signal
}

// Emit buffers a named emission attributed to this node.
func (rc *RunContext) Emit(name string, value any) {
	rc.EmitSignal(signal.Signal{Name: name, Value: value})
}

// EmitKeyed buffers an emission with a correlation key.
func (rc *RunContext) EmitKeyed(name, key string, value any) {
	rc.EmitSignal(signal.Signal{Name: name, Key: key, Value: value})
}

// EmitScored buffers an emission carrying a confidence in [0, 1].
func (rc *RunContext) EmitScored(name string, value any, confidence float64) {
	rc.EmitSignal(signal.Signal{Name: name, Value: value, Confidence: confidence})
}

// EmitSignal buffers sig after stamping run and node identity. The sink
// assigns EmittedAt on append; a value set here is overwritten.
func (rc *RunContext) EmitSignal(sig signal.Signal) {
	sig.RunID = rc.RunID
	sig.Source = rc.NodeID

	rc.mu.Lock()
	rc.emitted = append(rc.emitted, sig)
	rc.mu.Unlock()
}

// Emitted snapshots the buffered emissions in order.
func (rc *RunContext) Emitted() []signal.Signal {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	out := make([]signal.Signal, len(rc.emitted))
	copy(out, rc.emitted)

	return out
}

// Input returns the coalesced input signal for name, when present.
func (rc *RunContext) Input(name string) (signal.Signal, bool) {
	sig, ok := rc.Inputs[name]

	return sig, ok
}
