package mcp

import (
	"context"
	"errors"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/axonworks/axon/pkg/scheduler"
	"github.com/axonworks/axon/pkg/workflow"
)

// handleRunWorkflow processes run_workflow tool calls. Runs share the
// server's coordinator, so their signals land in the same sink the
// window_stats tool reads.
func (s *Server) handleRunWorkflow(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input RunWorkflowInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateDefinitionInput(input.Definition)
	if err != nil {
		return errorResult(err)
	}

	report, err := s.coord.ExecuteJSON(ctx, []byte(input.Definition), nil)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(report)
}

// handleValidateWorkflow processes validate_workflow tool calls.
func (s *Server) handleValidateWorkflow(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input ValidateWorkflowInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateDefinitionInput(input.Definition)
	if err != nil {
		return errorResult(err)
	}

	data := []byte(input.Definition)

	validateErr := s.coord.Validate(data)
	if validateErr != nil {
		verdict := ValidationReport{Error: validateErr.Error()}

		var rerr *scheduler.RunError
		if errors.As(validateErr, &rerr) {
			verdict.ErrorKind = string(rerr.Kind)
		}

		return jsonResult(verdict)
	}

	def, parseErr := workflow.Parse(data)
	if parseErr != nil {
		return errorResult(parseErr)
	}

	return jsonResult(ValidationReport{
		Valid:      true,
		WorkflowID: def.ID,
		Nodes:      len(def.Nodes),
		Edges:      len(def.Edges),
	})
}
