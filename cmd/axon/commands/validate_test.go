package commands

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/workflow"
)

func TestValidateCommand_Valid(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "workflow.json", cliWorkflow)

	var out bytes.Buffer

	cmd := NewValidateCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"-w", path})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "cli-smoke: valid")
	assert.Contains(t, out.String(), "2 nodes")
}

func TestValidateCommand_UnknownAtom(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "workflow.json",
		`{"id": "bad", "nodes": [{"id": "n", "atomName": "no.such.atom"}]}`)

	cmd := NewValidateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"-w", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, atom.ErrUnknownAtom)
	assert.Equal(t, ExitValidation, ExitCode(err))
}

func TestValidateCommand_MalformedJSON(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "workflow.json", `{not json`)

	cmd := NewValidateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"-w", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrInvalidDefinition)
	assert.Equal(t, ExitValidation, ExitCode(err))
}

func TestValidateCommand_MissingFile(t *testing.T) {
	t.Parallel()

	cmd := NewValidateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"-w", filepath.Join(t.TempDir(), "absent.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitInternal, ExitCode(err))
}
