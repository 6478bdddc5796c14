package workflow

import (
	"errors"
	"fmt"

	"github.com/axonworks/axon/pkg/atom"
)

// TriggerMode controls when a node with several incoming signal names
// fires.
type TriggerMode string

const (
	// TriggerAny fires the node on every incoming signal name. The
	// default.
	TriggerAny TriggerMode = "any"

	// TriggerAll fires only once each incoming signal name has been
	// seen since the node last fired.
	TriggerAll TriggerMode = "all"
)

// triggerModeKey is the node config key selecting the trigger mode.
const triggerModeKey = "triggerMode"

// ParseTriggerMode parses s, treating empty as TriggerAny.
func ParseTriggerMode(s string) (TriggerMode, error) {
	switch s {
	case "", string(TriggerAny):
		return TriggerAny, nil
	case string(TriggerAll):
		return TriggerAll, nil
	default:
		return "", fmt.Errorf("%w: unknown trigger mode %q", ErrInvalidWorkflow, s)
	}
}

// ValidateOptions tunes graph-level validation.
type ValidateOptions struct {
	// AllowSelfEdges permits edges whose source and target are the same
	// node. Off by default.
	AllowSelfEdges bool
}

// Validate checks the definition against the registry: every node must
// name a registered atom, every edge must connect existing nodes over a
// signal the source writes and the target reads. All problems are
// reported at once, joined into a single error. Unknown atoms wrap
// atom.ErrUnknownAtom; everything else wraps ErrInvalidWorkflow.
func Validate(def *Definition, reg *atom.Registry, opts ValidateOptions) error {
	var issues []error

	contracts := make(map[string]atom.Contract, len(def.Nodes))
	known := make(map[string]bool, len(def.Nodes))

	for _, n := range def.Nodes {
		if n.ID == "" {
			issues = append(issues, fmt.Errorf("%w: node with empty id", ErrInvalidWorkflow))

			continue
		}

		if known[n.ID] {
			issues = append(issues, fmt.Errorf("%w: duplicate node id %q", ErrInvalidWorkflow, n.ID))

			continue
		}

		known[n.ID] = true

		if _, err := ParseTriggerMode(n.Config.String(triggerModeKey, "")); err != nil {
			issues = append(issues, fmt.Errorf("node %q: %w", n.ID, err))
		}

		desc, err := reg.Get(n.AtomName)
		if err != nil {
			issues = append(issues, fmt.Errorf("node %q: %w", n.ID, err))

			continue
		}

		contracts[n.ID] = desc.Contract
	}

	for _, e := range def.Edges {
		if e.Signal == "" {
			issues = append(issues, fmt.Errorf("%w: edge %s -> %s with empty signal",
				ErrInvalidWorkflow, e.Source, e.Target))

			continue
		}

		if !known[e.Source] {
			issues = append(issues, fmt.Errorf("%w: edge signal %q references unknown source node %q",
				ErrInvalidWorkflow, e.Signal, e.Source))

			continue
		}

		if !known[e.Target] {
			issues = append(issues, fmt.Errorf("%w: edge signal %q references unknown target node %q",
				ErrInvalidWorkflow, e.Signal, e.Target))

			continue
		}

		if e.Source == e.Target && !opts.AllowSelfEdges {
			issues = append(issues, fmt.Errorf("%w: self-edge on node %q (signal %q)",
				ErrInvalidWorkflow, e.Source, e.Signal))

			continue
		}

		// Surface checks only run when the atom resolved; an unknown
		// atom is already reported above.
		if c, ok := contracts[e.Source]; ok && !c.WritesSignal(e.Signal) {
			issues = append(issues, fmt.Errorf("%w: node %q (atom %q) does not write signal %q",
				ErrInvalidWorkflow, e.Source, c.Name, e.Signal))
		}

		if c, ok := contracts[e.Target]; ok && !c.ReadsSignal(e.Signal) {
			issues = append(issues, fmt.Errorf("%w: node %q (atom %q) does not read signal %q",
				ErrInvalidWorkflow, e.Target, c.Name, e.Signal))
		}
	}

	return errors.Join(issues...)
}
