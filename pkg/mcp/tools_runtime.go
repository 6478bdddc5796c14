package mcp

import (
	"context"
	"fmt"
	"slices"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// handleListAtoms processes list_atoms tool calls.
func (s *Server) handleListAtoms(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	_ ListAtomsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return jsonResult(s.coord.Registry().Contracts())
}

// handleWindowStats processes window_stats tool calls.
func (s *Server) handleWindowStats(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input WindowStatsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	snk := s.coord.Sink()
	names := snk.WindowNames()

	if input.Window != "" {
		if !slices.Contains(names, input.Window) {
			return errorResult(fmt.Errorf("%w: %s", ErrUnknownWindow, input.Window))
		}

		return jsonResult([]WindowReport{{Window: input.Window, Stats: snk.WindowStats(input.Window)}})
	}

	reports := make([]WindowReport, 0, len(names))
	for _, name := range names {
		reports = append(reports, WindowReport{Window: name, Stats: snk.WindowStats(name)})
	}

	return jsonResult(reports)
}
