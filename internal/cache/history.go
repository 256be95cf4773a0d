// Package cache implements the read-through/write-through conversation
// history cache in front of the durable store.
//
// The cache is a disposable accelerator: every error degrades to a miss on
// read and is swallowed on write, so a Redis outage can slow the assistant
// down but never break it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/brightcart/support-assistant/internal/kv"
	"github.com/brightcart/support-assistant/internal/model"
	"github.com/brightcart/support-assistant/pkg/logger"
	"github.com/brightcart/support-assistant/pkg/metrics"
)

const keyPrefix = "chat:history:"

// KVStore is the slice of the key-value store the cache needs.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// HistoryCache caches a session's recent conversation turns with a TTL.
type HistoryCache struct {
	store    KVStore
	ttl      time.Duration
	maxTurns int
	logger   *logger.Logger
}

// New creates a history cache. maxTurns bounds the sequence kept per session.
func New(store KVStore, ttl time.Duration, maxTurns int, log *logger.Logger) *HistoryCache {
	return &HistoryCache{
		store:    store,
		ttl:      ttl,
		maxTurns: maxTurns,
		logger:   log,
	}
}

// Get returns the cached turns for a session. The second return value is
// false on a miss, on corrupt data, and on any store error: callers must
// fall back to the durable store.
func (c *HistoryCache) Get(ctx context.Context, sessionID string) ([]model.Turn, bool) {
	raw, err := c.store.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			c.logger.Error("history cache get failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
		metrics.CacheOps.WithLabelValues("get", "miss").Inc()
		return nil, false
	}

	var turns []model.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		c.logger.Error("history cache entry corrupt",
			zap.String("session_id", sessionID), zap.Error(err))
		metrics.CacheOps.WithLabelValues("get", "miss").Inc()
		return nil, false
	}

	metrics.CacheOps.WithLabelValues("get", "hit").Inc()
	return turns, true
}

// Set stores the turn sequence for a session. Errors are logged and
// swallowed; caching is never allowed to fail the primary operation.
func (c *HistoryCache) Set(ctx context.Context, sessionID string, turns []model.Turn) {
	raw, err := json.Marshal(turns)
	if err != nil {
		c.logger.Error("history cache marshal failed",
			zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	if err := c.store.SetWithTTL(ctx, keyPrefix+sessionID, raw, c.ttl); err != nil {
		c.logger.Error("history cache set failed",
			zap.String("session_id", sessionID), zap.Error(err))
		metrics.CacheOps.WithLabelValues("set", "error").Inc()
		return
	}
	metrics.CacheOps.WithLabelValues("set", "ok").Inc()
}

// Append adds one user/assistant exchange to an already-cached history and
// truncates to the most recent maxTurns turns. When nothing is cached it is
// a no-op: the next full read rebuilds the entry from the durable store.
func (c *HistoryCache) Append(ctx context.Context, sessionID, userText, assistantText string) {
	turns, ok := c.Get(ctx, sessionID)
	if !ok {
		return
	}

	turns = append(turns,
		model.Turn{Role: model.RoleUser, Content: userText},
		model.Turn{Role: model.RoleAssistant, Content: assistantText},
	)
	if len(turns) > c.maxTurns {
		turns = turns[len(turns)-c.maxTurns:]
	}

	c.Set(ctx, sessionID, turns)
}

// Invalidate drops the cached history for a session.
func (c *HistoryCache) Invalidate(ctx context.Context, sessionID string) {
	if err := c.store.Del(ctx, keyPrefix+sessionID); err != nil {
		c.logger.Error("history cache invalidate failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Healthy probes the underlying store. Never returns an error.
func (c *HistoryCache) Healthy(ctx context.Context) bool {
	if err := c.store.Ping(ctx); err != nil {
		c.logger.Error("history cache health check failed", zap.Error(err))
		return false
	}
	return true
}
