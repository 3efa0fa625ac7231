package tools

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/awlx/agentops-mcp/pkg/agentops"
	"github.com/awlx/agentops-mcp/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upstream struct {
	mu      sync.Mutex
	calls   int
	headers []string
	bearer  string
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if r.URL.Path == "/public/v1/auth/access_token" {
		if u.bearer == "" {
			_, _ = w.Write([]byte(`{"message":"ok"}`))
			return
		}
		_, _ = w.Write([]byte(`{"bearer":"` + u.bearer + `"}`))
		return
	}
	u.headers = append(u.headers, r.Header.Get("Authorization"))
	_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `","empty":"","zero":0}`))
}

func (u *upstream) snapshot() (int, []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls, append([]string(nil), u.headers...)
}

func (u *upstream) setBearer(b string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.bearer = b
}

type fixture struct {
	up       *upstream
	client   *agentops.Client
	sessions *Sessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	up := &upstream{bearer: "T"}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)
	return &fixture{
		up:       up,
		client:   agentops.NewClient(agentops.Config{Host: srv.URL, Timeout: 5 * time.Second, CleanResponses: true}, nil),
		sessions: NewSessions(session.NewMemoryStore(0), false),
	}
}

func call(t *testing.T, h server.ToolHandlerFunc, args map[string]interface{}) (*mcp.CallToolResult, map[string]interface{}) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return res, out
}

func (f *fixture) queryHandlers() map[string]struct {
	h    server.ToolHandlerFunc
	args map[string]interface{}
} {
	type entry = struct {
		h    server.ToolHandlerFunc
		args map[string]interface{}
	}
	return map[string]entry{
		"get_project":       {makeGetProjectHandler(f.client, f.sessions), nil},
		"get_trace":         {makeGetByIDHandler(f.sessions, "trace_id", "get trace", f.client.GetTrace), map[string]interface{}{"trace_id": "t1"}},
		"get_trace_metrics": {makeGetByIDHandler(f.sessions, "trace_id", "get trace metrics", f.client.GetTraceMetrics), map[string]interface{}{"trace_id": "t1"}},
		"get_span":          {makeGetByIDHandler(f.sessions, "span_id", "get span", f.client.GetSpan), map[string]interface{}{"span_id": "s1"}},
		"get_span_metrics":  {makeGetByIDHandler(f.sessions, "span_id", "get span metrics", f.client.GetSpanMetrics), map[string]interface{}{"span_id": "s1"}},
	}
}

func TestQueryTools_RequireAuth(t *testing.T) {
	f := newFixture(t)
	for name, q := range f.queryHandlers() {
		t.Run(name, func(t *testing.T) {
			res, out := call(t, q.h, q.args)
			assert.True(t, res.IsError)
			assert.Equal(t, map[string]interface{}{"error": "Authorization error."}, out)
		})
	}
	calls, _ := f.up.snapshot()
	assert.Equal(t, 0, calls)
}

func TestQueryTools_AfterAuth(t *testing.T) {
	f := newFixture(t)
	auth := makeAuthHandler(f.client, f.sessions, "")

	res, out := call(t, auth, map[string]interface{}{"api_key": "key"})
	require.False(t, res.IsError)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Authentication successful", out["message"])

	wantPaths := map[string]string{
		"get_project":       "/public/v1/project",
		"get_trace":         "/public/v1/traces/t1",
		"get_trace_metrics": "/public/v1/traces/t1/metrics",
		"get_span":          "/public/v1/spans/s1",
		"get_span_metrics":  "/public/v1/spans/s1/metrics",
	}
	for name, q := range f.queryHandlers() {
		t.Run(name, func(t *testing.T) {
			res, out := call(t, q.h, q.args)
			require.False(t, res.IsError)
			assert.Equal(t, map[string]interface{}{"path": wantPaths[name], "zero": 0.0}, out)
		})
	}

	_, headers := f.up.snapshot()
	require.Len(t, headers, 5)
	for _, h := range headers {
		assert.Equal(t, "Bearer T", h)
	}
}

func TestAuth_MissingBearerLeavesSessionUnset(t *testing.T) {
	f := newFixture(t)
	f.up.setBearer("")

	res, out := call(t, makeAuthHandler(f.client, f.sessions, ""), map[string]interface{}{"api_key": "key"})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "Authentication failed")

	res, out = call(t, makeGetProjectHandler(f.client, f.sessions), nil)
	assert.True(t, res.IsError)
	assert.Equal(t, "Authorization error.", out["error"])
}

func TestAuth_SecondKeyReplacesFirst(t *testing.T) {
	f := newFixture(t)
	auth := makeAuthHandler(f.client, f.sessions, "")

	call(t, auth, map[string]interface{}{"api_key": "k1"})
	f.up.setBearer("U")
	call(t, auth, map[string]interface{}{"api_key": "k2"})

	call(t, makeGetProjectHandler(f.client, f.sessions), nil)
	_, headers := f.up.snapshot()
	assert.Equal(t, []string{"Bearer U"}, headers)
}

func TestAuth_DefaultKey(t *testing.T) {
	f := newFixture(t)

	res, out := call(t, makeAuthHandler(f.client, f.sessions, ""), nil)
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "No API key available")

	auth := makeAuthHandler(f.client, f.sessions, "configured")
	res, out = call(t, auth, nil)
	require.False(t, res.IsError)
	assert.Equal(t, "API key loaded from environment variable", out["source"])

	calls, _ := f.up.snapshot()
	res, out = call(t, auth, nil)
	require.False(t, res.IsError)
	assert.Equal(t, "Already authenticated", out["message"])
	after, _ := f.up.snapshot()
	assert.Equal(t, calls, after, "already authenticated sessions skip the token exchange")
}

func TestQueryTools_AuthCheckedBeforeArguments(t *testing.T) {
	f := newFixture(t)
	h := makeGetByIDHandler(f.sessions, "trace_id", "get trace", f.client.GetTrace)

	for _, args := range []map[string]interface{}{nil, {"trace_id": ""}, {"trace_id": "  "}} {
		res, out := call(t, h, args)
		assert.True(t, res.IsError)
		assert.Equal(t, "Authorization error.", out["error"])
	}
	calls, _ := f.up.snapshot()
	assert.Equal(t, 0, calls)
}

func TestQueryTools_MissingArgument(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Default().SetCredential(context.Background(), "T"))
	h := makeGetByIDHandler(f.sessions, "trace_id", "get trace", f.client.GetTrace)

	res, out := call(t, h, nil)
	assert.True(t, res.IsError)
	assert.NotEmpty(t, out["error"])

	res, out = call(t, h, map[string]interface{}{"trace_id": ""})
	assert.True(t, res.IsError)
	assert.Equal(t, "trace_id must not be empty", out["error"])

	// Whitespace is not empty; the upstream decides whether the id exists.
	res, out = call(t, h, map[string]interface{}{"trace_id": "  "})
	assert.False(t, res.IsError)
	assert.Equal(t, "/public/v1/traces/  ", out["path"])
}

func TestQueryTools_NetworkFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	sessions := NewSessions(session.NewMemoryStore(0), false)
	require.NoError(t, sessions.Default().SetCredential(context.Background(), "T"))
	client := agentops.NewClient(agentops.Config{Host: "http://" + addr, Timeout: time.Second}, nil)

	res, out := call(t, makeGetByIDHandler(sessions, "span_id", "get span", client.GetSpan), map[string]interface{}{"span_id": "s1"})
	assert.True(t, res.IsError)
	msg, _ := out["error"].(string)
	assert.Contains(t, msg, "Failed to get span")

	h, err := sessions.Default().AuthHeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer T", h.Get("Authorization"))
}

func TestQueryTools_ExpiredCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sessions := NewSessions(session.NewMemoryStore(0), false)
	require.NoError(t, sessions.Default().SetCredential(context.Background(), "old"))
	client := agentops.NewClient(agentops.Config{Host: srv.URL}, nil)
	h := makeGetProjectHandler(client, sessions)

	_, out := call(t, h, nil)
	assert.Equal(t, "Credential expired. Re-authenticate with the auth tool.", out["error"])

	_, out = call(t, h, nil)
	assert.Equal(t, "Authorization error.", out["error"])
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(0)

	perClient := NewSessions(store, true)
	assert.Equal(t, session.DefaultID, perClient.State(ctx).ID(), "no client session falls back to default")

	require.NoError(t, session.NewState(store, "c1").SetCredential(ctx, "T"))
	require.NoError(t, perClient.Forget(ctx, "c1"))
	_, err := store.Get(ctx, "c1")
	assert.ErrorIs(t, err, session.ErrNotFound)

	shared := NewSessions(store, false)
	require.NoError(t, session.NewState(store, session.DefaultID).SetCredential(ctx, "T"))
	require.NoError(t, shared.Forget(ctx, session.DefaultID))
	assert.NoError(t, shared.Default().CheckAuthenticated(ctx), "process scoped credentials outlive client sessions")
}

func TestRegisterAll(t *testing.T) {
	f := newFixture(t)
	s := server.NewMCPServer("test", "0.0.0", server.WithToolCapabilities(false))
	RegisterAll(s, f.client, f.sessions, Options{})

	ctx := context.Background()
	s.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}`))
	resp := s.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	var names []string
	for _, tool := range decoded.Result.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"auth", "get_project", "get_span", "get_span_metrics", "get_trace", "get_trace_metrics"}, names)
}

func TestRegisterAll_CallBeforeAuth(t *testing.T) {
	f := newFixture(t)
	s := server.NewMCPServer("test", "0.0.0", server.WithToolCapabilities(false))
	RegisterAll(s, f.client, f.sessions, Options{})

	resp := s.HandleMessage(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_trace","arguments":{"trace_id":"t1"}}}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.Result.IsError)
	require.Len(t, decoded.Result.Content, 1)
	assert.JSONEq(t, `{"error":"Authorization error."}`, decoded.Result.Content[0].Text)
}
