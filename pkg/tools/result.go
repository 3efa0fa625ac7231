package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/awlx/agentops-mcp/pkg/agentops"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	msgAuthorization = "Authorization error."
	msgExpired       = "Credential expired. Re-authenticate with the auth tool."
)

// errorResult wraps msg into the {"error": msg} payload agents branch on.
func errorResult(msg string) *mcp.CallToolResult {
	return mcp.NewToolResultError(formatJSON(map[string]string{"error": msg}))
}

// failure maps an operation error to its payload. what describes the
// operation, e.g. "get trace".
func failure(what string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, agentops.ErrAuthenticationRequired):
		return errorResult(msgAuthorization)
	case errors.Is(err, agentops.ErrCredentialExpired):
		return errorResult(msgExpired)
	default:
		return errorResult(fmt.Sprintf("Failed to %s: %v", what, err))
	}
}

// formatJSON pretty-prints a value as JSON.
func formatJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
