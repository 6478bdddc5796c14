package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/catalog"
)

func TestAtomsCommand_Table(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	cmd := NewAtomsCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "NAME")
	assert.Contains(t, out.String(), "source.entries")
	assert.Contains(t, out.String(), "reduce")
	assert.Contains(t, out.String(), "Total:")
}

func TestAtomsCommand_JSON(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	cmd := NewAtomsCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--format", "json"})

	require.NoError(t, cmd.Execute())

	var contracts []atom.Contract
	require.NoError(t, json.Unmarshal(out.Bytes(), &contracts))

	assert.Len(t, contracts, len(catalog.BuiltIn()))
	assert.Equal(t, "source.entries", contracts[0].Name)
}

func TestAtomsCommand_YAML(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	cmd := NewAtomsCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--format", "yaml"})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "name: source.entries")
	assert.Contains(t, out.String(), "minimumTier: free")
}

func TestAtomsCommand_UnknownFormat(t *testing.T) {
	t.Parallel()

	cmd := NewAtomsCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--format", "toml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAtomsFormat)
}
