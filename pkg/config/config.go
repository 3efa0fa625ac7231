// Package config loads the bridge configuration from an optional YAML file
// whose values may reference environment variables as ${NAME:default}.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

const (
	// DefaultHost is the AgentOps API used when no host is configured.
	DefaultHost = "http://127.0.0.1:8000"
	// DefaultTimeout bounds every upstream request unless configured otherwise.
	DefaultTimeout = 30 * time.Second
)

type (
	// Config is the complete bridge configuration
	Config struct {
		AgentOps AgentOpsConfig `yaml:"agentops"`
		Server   ServerConfig   `yaml:"server"`
		Session  SessionConfig  `yaml:"session"`
		Logger   LoggerConfig   `yaml:"logger"`
		Metrics  MetricsConfig  `yaml:"metrics"`
		Tracing  TracingConfig  `yaml:"tracing"`
	}

	// AgentOpsConfig describes the upstream API
	AgentOpsConfig struct {
		Host           string        `yaml:"host"`
		APIKey         string        `yaml:"api_key"`
		Timeout        time.Duration `yaml:"timeout"`
		CleanResponses bool          `yaml:"clean_responses"`
	}

	// ServerConfig describes the MCP transport
	ServerConfig struct {
		Transport string `yaml:"transport"` // stdio or http
		Addr      string `yaml:"addr"`      // listen address for http
		Endpoint  string `yaml:"endpoint"`  // MCP endpoint path for http
	}

	// SessionConfig describes where bearer credentials are kept
	SessionConfig struct {
		Scope string             `yaml:"scope"` // process or client
		Type  string             `yaml:"type"`  // memory or redis
		TTL   time.Duration      `yaml:"ttl"`   // 0 keeps credentials until replaced
		Redis SessionRedisConfig `yaml:"redis"`
	}

	// SessionRedisConfig represents the Redis configuration for session storage
	SessionRedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`      // debug, info, warn, error
		Format     string `yaml:"format"`     // json, console
		Stacktrace bool   `yaml:"stacktrace"` // include stacktrace in error logs
	}

	// MetricsConfig represents the prometheus configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Path      string    `yaml:"path"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// TracingConfig represents the OpenTelemetry configuration
	TracingConfig struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		Endpoint    string  `yaml:"endpoint"` // e.g. localhost:4317 or localhost:4318
		Protocol    string  `yaml:"protocol"` // grpc or http
		Insecure    bool    `yaml:"insecure"`
		SamplerRate float64 `yaml:"sampler_rate"` // 0.0~1.0
	}
)

// Load reads the configuration. An empty path uses the embedded defaults,
// which are themselves driven by environment variables.
func Load(path string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	data := defaultConfig
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return Parse(data)
}

// Parse resolves environment placeholders in data and decodes it.
func Parse(data []byte) (*Config, error) {
	data = resolveEnv(data)
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	setDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.AgentOps.Host == "" {
		cfg.AgentOps.Host = os.Getenv("HOST")
	}
	if cfg.AgentOps.Host == "" {
		cfg.AgentOps.Host = DefaultHost
	}
	if cfg.AgentOps.Timeout <= 0 {
		cfg.AgentOps.Timeout = DefaultTimeout
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = "stdio"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.Endpoint == "" {
		cfg.Server.Endpoint = "/mcp"
	}
	if cfg.Session.Scope == "" {
		cfg.Session.Scope = "process"
	}
	if cfg.Session.Type == "" {
		cfg.Session.Type = "memory"
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "console"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "agentops_mcp"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "agentops-mcp"
	}
}

// Validate rejects values the bridge cannot run with.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("unsupported transport %q (want stdio or http)", c.Server.Transport)
	}
	switch c.Session.Scope {
	case "process", "client":
	default:
		return fmt.Errorf("unsupported session scope %q (want process or client)", c.Session.Scope)
	}
	switch c.Session.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported session store type %q (want memory or redis)", c.Session.Type)
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	return envPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := envPattern.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
