package agentops

import (
	"errors"
	"fmt"

	"github.com/awlx/agentops-mcp/pkg/session"
)

var (
	// ErrAuthenticationRequired is returned when a query is attempted before a
	// bearer token has been obtained for the session.
	ErrAuthenticationRequired = session.ErrAuthenticationRequired

	// ErrCredentialExpired is returned when the upstream rejects a stored
	// bearer token. The caller has to authenticate again.
	ErrCredentialExpired = errors.New("credential expired")

	// ErrMalformedResponse is returned when the upstream answers with a
	// success status but the body is not what the endpoint promises.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// maxErrorBody bounds how much of an upstream error body ends up in an error.
const maxErrorBody = 512

// UpstreamError is a non-2xx answer from the AgentOps API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API error %d", e.StatusCode)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}
