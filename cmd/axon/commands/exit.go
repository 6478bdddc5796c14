package commands

import (
	"errors"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/scheduler"
	"github.com/axonworks/axon/pkg/workflow"
)

// Exit codes reported by the axon binary.
const (
	ExitOK         = 0
	ExitValidation = 1
	ExitLicense    = 2
	ExitThrottled  = 3
	ExitInternal   = 4
)

// ExitError pins the process exit code for an error the command already
// classified.
type ExitError struct {
	Err  error
	Code int
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an Execute error onto the process exit code: workflow
// validation failures 1, license refusals 2, throttle 3, everything
// else 4.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var runError *scheduler.RunError
	if errors.As(err, &runError) {
		return runErrorCode(runError.Kind)
	}

	if errors.Is(err, workflow.ErrInvalidDefinition) ||
		errors.Is(err, workflow.ErrInvalidWorkflow) ||
		errors.Is(err, atom.ErrUnknownAtom) {
		return ExitValidation
	}

	return ExitInternal
}

func runErrorCode(kind scheduler.Kind) int {
	switch kind {
	case scheduler.KindInvalidWorkflow, scheduler.KindUnknownAtom:
		return ExitValidation
	case scheduler.KindLicenseRequired, scheduler.KindLicenseInvalid:
		return ExitLicense
	case scheduler.KindThrottled:
		return ExitThrottled
	default:
		return ExitInternal
	}
}
