package session

import (
	"fmt"

	"github.com/awlx/agentops-mcp/pkg/config"
	"go.uber.org/zap"
)

// Type represents the type of credential store
type Type string

const (
	// TypeMemory keeps credentials in process memory
	TypeMemory Type = "memory"
	// TypeRedis keeps credentials in Redis
	TypeRedis Type = "redis"
)

// NewStore creates a credential store based on configuration
func NewStore(logger *zap.Logger, cfg config.SessionConfig) (Store, error) {
	logger.Info("Initializing session store", zap.String("type", cfg.Type))
	switch Type(cfg.Type) {
	case TypeMemory, "":
		return NewMemoryStore(cfg.TTL), nil
	case TypeRedis:
		return NewRedisStore(logger, cfg.Redis, cfg.TTL)
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Type)
	}
}
