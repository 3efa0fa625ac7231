package tools

import (
	"github.com/awlx/agentops-mcp/pkg/agentops"
	"github.com/mark3labs/mcp-go/server"
)

// Options tune tool behaviour.
type Options struct {
	// DefaultAPIKey is used by the auth tool when no api_key is passed.
	DefaultAPIKey string
}

// RegisterAll registers every AgentOps tool on the given MCP server.
func RegisterAll(s *server.MCPServer, client *agentops.Client, sessions *Sessions, opts Options) {
	registerAuthTools(s, client, sessions, opts)
	registerProjectTools(s, client, sessions)
	registerTraceTools(s, client, sessions)
	registerSpanTools(s, client, sessions)
}
