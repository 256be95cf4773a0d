// Package kv provides the shared key-value store handle used by the rate
// limiter and the history cache.
package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store wraps a Redis client behind the narrow surface the chat core needs:
// atomic increment with expiry, get/set/delete with TTL, and a liveness probe.
type Store struct {
	client *redis.Client
}

// Open creates a store. The connection is established lazily so an
// unreachable Redis at startup does not prevent boot: both consumers fail
// open or degrade when the store is down.
func Open(cfg Config) *Store {
	return &Store{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// New wraps an existing client. Used by tests against miniredis.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Incr atomically increments the counter at key and returns the new value.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

// Expire arms a TTL on key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

// TTL reports the remaining lifetime of key.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.TTL(ctx, key).Result()
}

// Get returns the value at key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

// SetWithTTL stores value at key with the given lifetime.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Del removes key.
func (s *Store) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Ping probes the store.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
