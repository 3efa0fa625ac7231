package tools

import (
	"context"

	"github.com/awlx/agentops-mcp/pkg/agentops"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerProjectTools(s *server.MCPServer, client *agentops.Client, sessions *Sessions) {
	getProject := mcp.NewTool("get_project",
		mcp.WithDescription("Get information about the AgentOps project the current token belongs to. Requires a prior call to auth."),
	)
	s.AddTool(getProject, makeGetProjectHandler(client, sessions))
}

func makeGetProjectHandler(client *agentops.Client, sessions *Sessions) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := client.GetProject(ctx, sessions.State(ctx))
		if err != nil {
			return failure("get project", err), nil
		}
		return mcp.NewToolResultText(formatJSON(data)), nil
	}
}
