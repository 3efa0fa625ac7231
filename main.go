package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awlx/agentops-mcp/pkg/agentops"
	"github.com/awlx/agentops-mcp/pkg/config"
	"github.com/awlx/agentops-mcp/pkg/logger"
	"github.com/awlx/agentops-mcp/pkg/metrics"
	"github.com/awlx/agentops-mcp/pkg/session"
	"github.com/awlx/agentops-mcp/pkg/tools"
	"github.com/awlx/agentops-mcp/pkg/trace"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	serverName    = "agentops-mcp"
	serverVersion = "0.3.0"
)

var (
	configPath string
	transport  string
	addr       string
)

var rootCmd = &cobra.Command{
	Use:   "agentops-mcp",
	Short: "MCP server exposing AgentOps projects, traces and spans as tools",
	Long: `agentops-mcp lets an agent authenticate against the AgentOps public API
and query project, trace and span data through MCP tools.

Configuration comes from an optional YAML file (--config) and environment
variables such as AGENTOPS_HOST and AGENTOPS_API_KEY. A .env file in the
working directory is loaded first.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	rootCmd.Flags().StringVar(&transport, "transport", "", "MCP transport: stdio or http (overrides configuration)")
	rootCmd.Flags().StringVar(&addr, "addr", "", "listen address for the http transport (overrides configuration)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("transport") {
		cfg.Server.Transport = transport
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lg := logger.NewLogger(cfg.Logger)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := trace.InitTracing(ctx, cfg.Tracing, lg)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			lg.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	store, err := session.NewStore(lg, cfg.Session)
	if err != nil {
		return err
	}
	defer store.Close()
	sessions := tools.NewSessions(store, cfg.Session.Scope == "client")

	client := agentops.NewClient(agentops.Config{
		Host:           cfg.AgentOps.Host,
		Timeout:        cfg.AgentOps.Timeout,
		CleanResponses: cfg.AgentOps.CleanResponses,
		Transport:      trace.Transport(http.DefaultTransport),
	}, lg)

	autoAuthenticate(ctx, lg, client, sessions, cfg.AgentOps.APIKey)

	m := metrics.New(cfg.Metrics)
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(newHooks(lg, sessions)),
		server.WithToolHandlerMiddleware(trace.Middleware()),
		server.WithToolHandlerMiddleware(m.Middleware()),
		server.WithInstructions("AgentOps MCP Server provides access to AgentOps observability data for agent runs. "+
			"Call auth first with a project API key (unless the server was started with AGENTOPS_API_KEY), "+
			"then use get_project, get_trace, get_trace_metrics, get_span and get_span_metrics. "+
			"Failures are returned as {\"error\": \"...\"}; \"Authorization error.\" means auth is required."),
	)

	tools.RegisterAll(s, client, sessions, tools.Options{DefaultAPIKey: cfg.AgentOps.APIKey})

	lg.Info("AgentOps MCP server starting",
		zap.String("transport", cfg.Server.Transport),
		zap.String("host", client.Host()),
		zap.String("session_scope", cfg.Session.Scope),
		zap.String("session_store", cfg.Session.Type))

	if cfg.Server.Transport == "http" {
		return serveHTTP(ctx, lg, s, m, cfg)
	}
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// autoAuthenticate exchanges a configured API key on startup. Failure only
// leaves the default session unauthenticated.
func autoAuthenticate(ctx context.Context, lg *zap.Logger, client *agentops.Client, sessions *tools.Sessions, apiKey string) {
	if apiKey == "" {
		lg.Info("AGENTOPS_API_KEY not set, waiting for the auth tool")
		return
	}
	lg.Info("Auto-authenticating using environment variable", zap.String("api_key", logger.KeyPreview(apiKey)))
	if err := client.Authenticate(ctx, sessions.Default(), apiKey); err != nil {
		lg.Warn("Auto-authentication failed", zap.Error(err))
		return
	}
	lg.Info("Auto-authentication successful")
}

func newHooks(lg *zap.Logger, sessions *tools.Sessions) *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest) {
		lg.Debug("beforeCallTool", zap.Any("id", id), zap.String("tool", message.Params.Name))
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		lg.Error("onError", zap.String("method", string(method)), zap.Any("id", id), zap.Error(err))
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, cs server.ClientSession) {
		if err := sessions.Forget(ctx, cs.SessionID()); err != nil {
			lg.Warn("failed to drop session credential", zap.String("session", cs.SessionID()), zap.Error(err))
		}
	})
	return hooks
}

func serveHTTP(ctx context.Context, lg *zap.Logger, s *server.MCPServer, m *metrics.Metrics, cfg *config.Config) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Endpoint, server.NewStreamableHTTPServer(s, server.WithEndpointPath(cfg.Server.Endpoint)))
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("Server listening", zap.String("addr", cfg.Server.Addr), zap.String("endpoint", cfg.Server.Endpoint))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		lg.Info("Received shutdown signal, shutting down gracefully")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(sctx)
	}
}
