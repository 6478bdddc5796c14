package commands

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/scheduler"
	"github.com/axonworks/axon/pkg/workflow"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{
			name: "exit error",
			err:  &ExitError{Code: ExitThrottled, Err: errors.New("denied")},
			want: ExitThrottled,
		},
		{
			name: "wrapped exit error",
			err:  fmt.Errorf("run: %w", &ExitError{Code: ExitLicense, Err: errors.New("bad token")}),
			want: ExitLicense,
		},
		{
			name: "invalid workflow run error",
			err:  &scheduler.RunError{Kind: scheduler.KindInvalidWorkflow, Msg: "empty"},
			want: ExitValidation,
		},
		{
			name: "unknown atom run error",
			err:  &scheduler.RunError{Kind: scheduler.KindUnknownAtom, Node: "n"},
			want: ExitValidation,
		},
		{
			name: "license required run error",
			err:  &scheduler.RunError{Kind: scheduler.KindLicenseRequired},
			want: ExitLicense,
		},
		{
			name: "license invalid run error",
			err:  &scheduler.RunError{Kind: scheduler.KindLicenseInvalid},
			want: ExitLicense,
		},
		{
			name: "throttled run error",
			err:  &scheduler.RunError{Kind: scheduler.KindThrottled},
			want: ExitThrottled,
		},
		{
			name: "atom run error",
			err:  &scheduler.RunError{Kind: scheduler.KindAtomError, Node: "n"},
			want: ExitInternal,
		},
		{
			name: "invalid definition sentinel",
			err:  fmt.Errorf("parse: %w", workflow.ErrInvalidDefinition),
			want: ExitValidation,
		},
		{
			name: "invalid workflow sentinel",
			err:  fmt.Errorf("validate: %w", workflow.ErrInvalidWorkflow),
			want: ExitValidation,
		},
		{
			name: "unknown atom sentinel",
			err:  fmt.Errorf("validate: %w", atom.ErrUnknownAtom),
			want: ExitValidation,
		},
		{name: "plain error", err: errors.New("boom"), want: ExitInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}
