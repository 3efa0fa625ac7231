package tools

import (
	"context"
	"fmt"

	"github.com/awlx/agentops-mcp/pkg/agentops"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerAuthTools(s *server.MCPServer, client *agentops.Client, sessions *Sessions, opts Options) {
	auth := mcp.NewTool("auth",
		mcp.WithDescription("Authorize using an AgentOps project API key and store the resulting JWT token for the following tool calls. "+
			"If the server was started with AGENTOPS_API_KEY, authentication already happened on startup and api_key may be omitted."),
		mcp.WithString("api_key",
			mcp.Description("AgentOps project API key (optional if AGENTOPS_API_KEY is set)"),
		),
	)
	s.AddTool(auth, makeAuthHandler(client, sessions, opts.DefaultAPIKey))
}

func makeAuthHandler(client *agentops.Client, sessions *Sessions, defaultKey string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		state := sessions.State(ctx)

		apiKey := request.GetString("api_key", "")
		source := "provided parameter"
		if apiKey == "" {
			if err := state.CheckAuthenticated(ctx); err == nil {
				return mcp.NewToolResultText(formatJSON(map[string]interface{}{
					"success": true,
					"message": "Already authenticated",
				})), nil
			}
			apiKey = defaultKey
			source = "environment variable"
		}
		if apiKey == "" {
			return errorResult("No API key available. Either set the AGENTOPS_API_KEY environment variable or provide an api_key parameter."), nil
		}

		if err := client.Authenticate(ctx, state, apiKey); err != nil {
			return errorResult(fmt.Sprintf("Authentication failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"success": true,
			"message": "Authentication successful",
			"source":  "API key loaded from " + source,
		})), nil
	}
}
