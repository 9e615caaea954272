package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is the Store backed by a Redis server. Every failure path logs and
// degrades: a broken connection turns reads into misses and makes writes
// no-ops.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedis parses a redis:// URL and wraps the resulting client.
func NewRedis(url string, logger *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{client: redis.NewClient(opts), logger: logger}, nil
}

func (r *Redis) Get(ctx context.Context, key string, dest any) bool {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		r.logger.Info("cache miss", zap.String("key", key))
		return false
	}
	if err != nil {
		r.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		r.logger.Warn("cache payload corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	r.logger.Info("cache hit", zap.String("key", key))
	return true
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		r.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	r.logger.Info("cache set", zap.String("key", key), zap.Duration("ttl", ttl))
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
