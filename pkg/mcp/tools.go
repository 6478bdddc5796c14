package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/axonworks/axon/pkg/sink"
)

// Tool name constants.
const (
	ToolNameRunWorkflow      = "run_workflow"
	ToolNameValidateWorkflow = "validate_workflow"
	ToolNameListAtoms        = "list_atoms"
	ToolNameWindowStats      = "window_stats"
)

// Input size limits.
const (
	// MaxDefinitionBytes is the maximum allowed size for a workflow
	// definition document (1 MB).
	MaxDefinitionBytes = 1 << 20
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyDefinition indicates the definition parameter is empty.
	ErrEmptyDefinition = errors.New("definition parameter is required and must not be empty")
	// ErrDefinitionTooLarge indicates the definition exceeds the size limit.
	ErrDefinitionTooLarge = errors.New("definition exceeds maximum size")
	// ErrUnknownWindow indicates the named window does not exist in the sink.
	ErrUnknownWindow = errors.New("unknown window")
)

// Input types (auto-generate JSON schemas via struct tags).

// RunWorkflowInput is the input schema for the run_workflow tool.
type RunWorkflowInput struct {
	Definition string `json:"definition" jsonschema:"workflow definition document (JSON with id nodes edges)"`
}

// ValidateWorkflowInput is the input schema for the validate_workflow tool.
type ValidateWorkflowInput struct {
	Definition string `json:"definition" jsonschema:"workflow definition document (JSON with id nodes edges)"`
}

// ListAtomsInput is the input schema for the list_atoms tool.
type ListAtomsInput struct{}

// WindowStatsInput is the input schema for the window_stats tool.
type WindowStatsInput struct {
	Window string `json:"window,omitempty" jsonschema:"window name (empty returns stats for every window)"`
}

// Output types.

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// ValidationReport is the structured output of the validate_workflow tool.
// Invalid workflows are a verdict, not a tool error.
type ValidationReport struct {
	WorkflowID string `json:"workflowId,omitempty"`
	ErrorKind  string `json:"errorKind,omitempty"`
	Error      string `json:"error,omitempty"`
	Nodes      int    `json:"nodes,omitempty"`
	Edges      int    `json:"edges,omitempty"`
	Valid      bool   `json:"valid"`
}

// WindowReport pairs a window name with its live stats.
type WindowReport struct {
	Window string           `json:"window"`
	Stats  sink.WindowStats `json:"stats"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateDefinitionInput checks common definition input constraints.
func validateDefinitionInput(definition string) error {
	if definition == "" {
		return ErrEmptyDefinition
	}

	if len(definition) > MaxDefinitionBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrDefinitionTooLarge, len(definition), MaxDefinitionBytes)
	}

	return nil
}
