// Package atom defines the execution surface of one workflow node: the
// contract describing what it reads, writes, and costs, the executor entry
// point, and the per-invocation run context.
package atom

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/axonworks/axon/pkg/license"
)

// Kind classifies what an atom does with the signals it consumes.
type Kind string

// Atom kinds.
const (
	// KindSensor produces signals from outside the run (inputs, feeds).
	KindSensor Kind = "sensor"

	// KindExtractor derives structured entities from raw payloads.
	KindExtractor Kind = "extractor"

	// KindAnalyzer scores or aggregates window contents.
	KindAnalyzer Kind = "analyzer"

	// KindProposer produces generative output, usually via the LLM adapter.
	KindProposer Kind = "proposer"

	// KindConstrainer filters or bounds a candidate set.
	KindConstrainer Kind = "constrainer"

	// KindRenderer materializes results through the storage adapter.
	KindRenderer Kind = "renderer"

	// KindShaper reorders or restructures entities without scoring them.
	KindShaper Kind = "shaper"

	// KindCoordinator observes the run itself (taps, loggers).
	KindCoordinator Kind = "coordinator"
)

var kinds = []Kind{
	KindSensor, KindExtractor, KindAnalyzer, KindProposer,
	KindConstrainer, KindRenderer, KindShaper, KindCoordinator,
}

// ParseKind maps a contract string onto a known kind.
func ParseKind(s string) (Kind, error) {
	if slices.Contains(kinds, Kind(s)) {
		return Kind(s), nil
	}

	return "", fmt.Errorf("unknown atom kind %q", s)
}

// Lane is the concurrency class an atom runs under. Each lane holds a
// bounded number of slots; admission waits in FIFO order.
type Lane string

// Lanes, cheapest first.
const (
	LaneFast Lane = "fast"
	LaneIO   Lane = "io"
	LaneML   Lane = "ml"
	LaneLLM  Lane = "llm"
)

// Lanes returns all lanes in their stable order.
func Lanes() []Lane {
	return []Lane{LaneFast, LaneIO, LaneML, LaneLLM}
}

// DefaultLaneLimits returns the default slot count per lane. The values are
// int64 because lane admission runs on weighted semaphores.
func DefaultLaneLimits() map[Lane]int64 {
	return map[Lane]int64{
		LaneFast: 8,
		LaneIO:   4,
		LaneML:   2,
		LaneLLM:  1,
	}
}

// ParseLane maps a contract string onto a known lane.
func ParseLane(s string) (Lane, error) {
	if slices.Contains(Lanes(), Lane(s)) {
		return Lane(s), nil
	}

	return "", fmt.Errorf("unknown lane %q", s)
}

// Determinism declares whether re-running an atom on the same inputs yields
// the same emissions.
type Determinism string

// Determinism classes.
const (
	Deterministic    Determinism = "deterministic"
	NonDeterministic Determinism = "nondeterministic"
)

// Persistence declares whether an atom leaves artifacts beyond the run.
type Persistence string

// Persistence classes.
const (
	Ephemeral Persistence = "ephemeral"
	Durable   Persistence = "durable"
)

// WildcardRead marks a contract that consumes every emission. Such atoms
// never join the trigger index; the scheduler taps them into the sink
// directly.
const WildcardRead = "*"

// ErrInvalidContract is returned when a contract fails validation.
var ErrInvalidContract = errors.New("invalid atom contract")

// Contract is the immutable description of one atom: identity, concurrency
// class, signal surface, and licensing requirements. The gate derives the
// invocation cost as BaseCost + CostPerKB × payloadKB.
type Contract struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Kind        Kind        `json:"kind"`
	Lane        Lane        `json:"lane"`
	Determinism Determinism `json:"determinism"`
	Persistence Persistence `json:"persistence"`

	// Reads and Writes enumerate the signal names this atom consumes and
	// produces. Reads may contain the wildcard; Writes may contain it for
	// pass-through shapers.
	Reads  []string `json:"reads,omitempty"`
	Writes []string `json:"writes,omitempty"`

	// MinimumTier and RequiredFeatures gate the atom behind the license.
	// Feature patterns support a trailing wildcard (documents.*).
	MinimumTier      license.Tier `json:"minimumTier"`
	RequiredFeatures []string     `json:"requiredFeatures,omitempty"`

	// BaseCost and CostPerKB price one invocation in work units.
	BaseCost  float64 `json:"baseCost"`
	CostPerKB float64 `json:"costPerKb"`
}

// Executor runs one invocation. Emissions are buffered on the run context
// and appended to the sink by the scheduler after return, in order.
type Executor func(ctx context.Context, rc *RunContext) error

// Descriptor pairs a contract with its executor. Registries are built from
// descriptor tables at startup.
type Descriptor struct {
	Contract Contract
	Executor Executor
}

// Validate checks the contract fields and fills the normalizable defaults:
// an empty lane becomes fast, empty determinism and persistence become
// deterministic and ephemeral.
func (c *Contract) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidContract)
	}

	if !slices.Contains(kinds, c.Kind) {
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidContract, c.Name, c.Kind)
	}

	if c.Lane == "" {
		c.Lane = LaneFast
	} else if !slices.Contains(Lanes(), c.Lane) {
		return fmt.Errorf("%w: %s: unknown lane %q", ErrInvalidContract, c.Name, c.Lane)
	}

	if c.Determinism == "" {
		c.Determinism = Deterministic
	}

	if c.Persistence == "" {
		c.Persistence = Ephemeral
	}

	if c.BaseCost < 0 || c.CostPerKB < 0 {
		return fmt.Errorf("%w: %s: negative cost", ErrInvalidContract, c.Name)
	}

	return nil
}

// ReadsAll reports whether the contract consumes every emission.
func (c Contract) ReadsAll() bool {
	return slices.Contains(c.Reads, WildcardRead)
}

// ReadsSignal reports whether the contract consumes the named signal.
func (c Contract) ReadsSignal(name string) bool {
	return c.ReadsAll() || slices.Contains(c.Reads, name)
}

// WritesSignal reports whether the contract may produce the named signal.
func (c Contract) WritesSignal(name string) bool {
	return slices.Contains(c.Writes, WildcardRead) || slices.Contains(c.Writes, name)
}

// clone deep-copies the slice fields so registered contracts stay immutable
// when callers mutate what Register or Get handed them.
func (c Contract) clone() Contract {
	c.Reads = slices.Clone(c.Reads)
	c.Writes = slices.Clone(c.Writes)
	c.RequiredFeatures = slices.Clone(c.RequiredFeatures)

	return c
}
