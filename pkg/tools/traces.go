package tools

import (
	"context"

	"github.com/awlx/agentops-mcp/pkg/agentops"
	"github.com/awlx/agentops-mcp/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// fetchByID is the shape shared by the trace and span lookups.
type fetchByID func(ctx context.Context, state *session.State, id string) (interface{}, error)

func registerTraceTools(s *server.MCPServer, client *agentops.Client, sessions *Sessions) {
	getTrace := mcp.NewTool("get_trace",
		mcp.WithDescription("Get trace information by ID, including its spans. Requires a prior call to auth."),
		mcp.WithString("trace_id",
			mcp.Required(),
			mcp.Description("Trace ID"),
		),
	)
	s.AddTool(getTrace, makeGetByIDHandler(sessions, "trace_id", "get trace", client.GetTrace))

	getTraceMetrics := mcp.NewTool("get_trace_metrics",
		mcp.WithDescription("Get metrics (costs, token counts, durations) for a specific trace. Requires a prior call to auth."),
		mcp.WithString("trace_id",
			mcp.Required(),
			mcp.Description("Trace ID"),
		),
	)
	s.AddTool(getTraceMetrics, makeGetByIDHandler(sessions, "trace_id", "get trace metrics", client.GetTraceMetrics))
}

func makeGetByIDHandler(sessions *Sessions, arg, what string, fetch fetchByID) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		state := sessions.State(ctx)
		if err := state.CheckAuthenticated(ctx); err != nil {
			return failure(what, err), nil
		}
		id, err := request.RequireString(arg)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		if id == "" {
			return errorResult(arg + " must not be empty"), nil
		}
		data, err := fetch(ctx, state, id)
		if err != nil {
			return failure(what, err), nil
		}
		return mcp.NewToolResultText(formatJSON(data)), nil
	}
}
