package cache

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Memory is the in-process Store used when Redis is unreachable or caching
// is configured local. Values are stored serialized so Get semantics match
// the Redis backend exactly.
type Memory struct {
	inner  *gocache.Cache
	logger *zap.Logger
}

func NewMemory(logger *zap.Logger) *Memory {
	return &Memory{
		inner:  gocache.New(TTLStockData, 10*time.Minute),
		logger: logger,
	}
}

func (m *Memory) Get(_ context.Context, key string, dest any) bool {
	raw, found := m.inner.Get(key)
	if !found {
		m.logger.Info("cache miss", zap.String("key", key))
		return false
	}
	if err := json.Unmarshal(raw.([]byte), dest); err != nil {
		m.logger.Warn("cache payload corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	m.logger.Info("cache hit", zap.String("key", key))
	return true
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		m.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	m.inner.Set(key, raw, ttl)
	m.logger.Info("cache set", zap.String("key", key), zap.Duration("ttl", ttl))
}

func (m *Memory) Ping(context.Context) error { return nil }
