package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/awlx/agentops-mcp/pkg/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps credentials in Redis so that several bridge replicas
// behind a load balancer see the same sessions.
type RedisStore struct {
	logger *zap.Logger
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(logger *zap.Logger, cfg config.SessionRedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "agentops-mcp"
	}
	return &RedisStore{
		logger: logger.Named("session.redis"),
		client: client,
		prefix: prefix + ":session:",
		ttl:    ttl,
	}, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Get returns the credential for id.
func (s *RedisStore) Get(ctx context.Context, id string) (*Credential, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		s.logger.Warn("dropping undecodable credential", zap.String("session", id), zap.Error(err))
		_ = s.client.Del(ctx, s.key(id)).Err()
		return nil, ErrNotFound
	}
	return &cred, nil
}

// Set replaces the credential for id.
func (s *RedisStore) Set(ctx context.Context, id string, cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	return nil
}

// Delete removes the credential for id.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// DeleteIf removes the credential for id if it still holds token. The key is
// watched so a concurrent Set aborts the delete.
func (s *RedisStore) DeleteIf(ctx context.Context, id, token string) (bool, error) {
	key := s.key(id)
	deleted := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var cred Credential
		if err := json.Unmarshal(data, &cred); err != nil || cred.Token != token {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}
		deleted = true
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// The credential changed underneath us, so it is no longer token.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete credential: %w", err)
	}
	return deleted, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
