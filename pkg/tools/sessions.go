package tools

import (
	"context"

	"github.com/awlx/agentops-mcp/pkg/session"
	"github.com/mark3labs/mcp-go/server"
)

// Sessions decides which credential slot a tool call reads and writes.
type Sessions struct {
	store     session.Store
	perClient bool
}

// NewSessions returns a resolver over store. With perClient set, every MCP
// client session gets its own credential; otherwise the whole process
// shares one.
func NewSessions(store session.Store, perClient bool) *Sessions {
	return &Sessions{store: store, perClient: perClient}
}

// State returns the session state for the tool call in ctx.
func (s *Sessions) State(ctx context.Context) *session.State {
	id := session.DefaultID
	if s.perClient {
		if cs := server.ClientSessionFromContext(ctx); cs != nil && cs.SessionID() != "" {
			id = cs.SessionID()
		}
	}
	return session.NewState(s.store, id)
}

// Default returns the process-wide session state.
func (s *Sessions) Default() *session.State {
	return session.NewState(s.store, session.DefaultID)
}

// Forget drops the credential of a client session that went away.
func (s *Sessions) Forget(ctx context.Context, id string) error {
	if !s.perClient || id == "" {
		return nil
	}
	return s.store.Delete(ctx, id)
}
