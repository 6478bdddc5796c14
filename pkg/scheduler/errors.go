package scheduler

import "fmt"

// Kind is the machine-readable class of a runtime error. Renderers and
// the MCP surface match on these strings.
type Kind string

// Error kinds.
const (
	KindUnknownAtom     Kind = "unknown_atom"
	KindInvalidWorkflow Kind = "invalid_workflow"
	KindLicenseRequired Kind = "license_required"
	KindLicenseInvalid  Kind = "license_invalid"
	KindThrottled       Kind = "throttled"
	KindDegradedSkip    Kind = "degraded_skip"
	KindAtomError       Kind = "atom_error"
	KindTimeout         Kind = "timeout"
	KindCancelled       Kind = "cancelled"
	KindQuarantined     Kind = "quarantined_node"
	KindSinkOverflow    Kind = "sink_overflow"
)

// RunError is a runtime failure with a stable kind, an optional node
// attribution, and a human message.
type RunError struct {
	Kind Kind

	// Node is the workflow node the error is attributed to, when any.
	Node string

	// Msg is the human-readable description.
	Msg string

	// Err is the underlying cause, when any.
	Err error
}

func (e *RunError) Error() string {
	switch {
	case e.Node != "" && e.Err != nil:
		return fmt.Sprintf("%s: node %q: %s: %v", e.Kind, e.Node, e.Msg, e.Err)
	case e.Node != "":
		return fmt.Sprintf("%s: node %q: %s", e.Kind, e.Node, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// runErr builds a RunError.
func runErr(kind Kind, node, msg string, err error) *RunError {
	return &RunError{Kind: kind, Node: node, Msg: msg, Err: err}
}
