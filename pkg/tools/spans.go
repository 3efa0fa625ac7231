package tools

import (
	"github.com/awlx/agentops-mcp/pkg/agentops"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerSpanTools(s *server.MCPServer, client *agentops.Client, sessions *Sessions) {
	getSpan := mcp.NewTool("get_span",
		mcp.WithDescription("Get span information by ID. Requires a prior call to auth."),
		mcp.WithString("span_id",
			mcp.Required(),
			mcp.Description("Span ID"),
		),
	)
	s.AddTool(getSpan, makeGetByIDHandler(sessions, "span_id", "get span", client.GetSpan))

	getSpanMetrics := mcp.NewTool("get_span_metrics",
		mcp.WithDescription("Get metrics for a specific span. Requires a prior call to auth."),
		mcp.WithString("span_id",
			mcp.Required(),
			mcp.Description("Span ID"),
		),
	)
	s.AddTool(getSpanMetrics, makeGetByIDHandler(sessions, "span_id", "get span metrics", client.GetSpanMetrics))
}
