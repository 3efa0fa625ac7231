package agentops

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/awlx/agentops-mcp/pkg/config"
	"github.com/awlx/agentops-mcp/pkg/payload"
	"github.com/awlx/agentops-mcp/pkg/session"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Config holds the settings for talking to the AgentOps public API.
type Config struct {
	Host           string
	Timeout        time.Duration
	CleanResponses bool
	// Transport overrides the HTTP transport, e.g. for tracing.
	Transport http.RoundTripper
}

// Client is an HTTP client for the AgentOps public API. It holds no
// credentials itself; bearer tokens live in a session.State.
type Client struct {
	host   string
	clean  bool
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a new AgentOps API client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = config.DefaultHost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		host:  host,
		clean: cfg.CleanResponses,
		http: &http.Client{
			Timeout:   timeout,
			Transport: cfg.Transport,
		},
		logger: logger.Named("agentops.client"),
	}
}

// Host returns the base URL requests are sent to.
func (c *Client) Host() string {
	return c.host
}

// doRequest sends one request. secrets are redacted from error bodies in
// addition to the bearer token carried by header.
func (c *Client) doRequest(ctx context.Context, method, path string, header http.Header, body interface{}, secrets ...string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug("upstream request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       snippet(respBody, append(secrets, bearerFrom(header))...),
		}
	}

	return respBody, nil
}

// Authenticate exchanges an API key for a bearer token and stores it in
// state. The state is only written when the exchange fully succeeds.
func (c *Client) Authenticate(ctx context.Context, state *session.State, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("api key is empty")
	}
	data, err := c.doRequest(ctx, http.MethodPost, "/public/v1/auth/access_token", nil,
		map[string]string{"api_key": apiKey}, apiKey)
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: token exchange body is not valid JSON", ErrMalformedResponse)
	}
	bearer := gjson.GetBytes(data, "bearer")
	if bearer.Type != gjson.String || bearer.Str == "" {
		return fmt.Errorf("%w: no bearer token received from auth endpoint", ErrMalformedResponse)
	}
	return state.SetCredential(ctx, bearer.Str)
}

// GetProject returns information about the project the token belongs to.
func (c *Client) GetProject(ctx context.Context, state *session.State) (interface{}, error) {
	return c.get(ctx, state, "/public/v1/project")
}

// GetTrace returns a trace by ID.
func (c *Client) GetTrace(ctx context.Context, state *session.State, traceID string) (interface{}, error) {
	return c.get(ctx, state, "/public/v1/traces/"+url.PathEscape(traceID))
}

// GetTraceMetrics returns the metrics of a trace.
func (c *Client) GetTraceMetrics(ctx context.Context, state *session.State, traceID string) (interface{}, error) {
	return c.get(ctx, state, "/public/v1/traces/"+url.PathEscape(traceID)+"/metrics")
}

// GetSpan returns a span by ID.
func (c *Client) GetSpan(ctx context.Context, state *session.State, spanID string) (interface{}, error) {
	return c.get(ctx, state, "/public/v1/spans/"+url.PathEscape(spanID))
}

// GetSpanMetrics returns the metrics of a span.
func (c *Client) GetSpanMetrics(ctx context.Context, state *session.State, spanID string) (interface{}, error) {
	return c.get(ctx, state, "/public/v1/spans/"+url.PathEscape(spanID)+"/metrics")
}

// get issues one authenticated GET. The precondition check runs before any
// network activity.
func (c *Client) get(ctx context.Context, state *session.State, path string) (interface{}, error) {
	header, err := state.AuthHeader(ctx)
	if errors.Is(err, session.ErrAuthenticationRequired) {
		return nil, ErrAuthenticationRequired
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodGet, path, header, nil)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) && (ue.StatusCode == http.StatusUnauthorized || ue.StatusCode == http.StatusForbidden) {
			// Only the token this request sent is cleared; an auth that
			// completed meanwhile keeps its credential.
			if _, clearErr := state.ClearIf(ctx, bearerFrom(header)); clearErr != nil {
				c.logger.Warn("failed to clear rejected credential", zap.Error(clearErr))
			}
			return nil, fmt.Errorf("%w: %s", ErrCredentialExpired, ue.Error())
		}
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if c.clean {
		out = payload.Clean(out)
	}
	return out, nil
}

func bearerFrom(header http.Header) string {
	return strings.TrimPrefix(header.Get("Authorization"), "Bearer ")
}

// snippet trims an upstream body for inclusion in an error message and
// removes secrets should the upstream echo them back. Truncation never
// splits a UTF-8 sequence.
func snippet(body []byte, secrets ...string) string {
	s := strings.TrimSpace(string(body))
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "[REDACTED]")
		}
	}
	if len(s) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
