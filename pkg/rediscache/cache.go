// Package rediscache stores JSON values in Redis under hashed keys.
package rediscache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultTTL applies when Options.TTL is zero.
const DefaultTTL = 7 * 24 * time.Hour

// client is the subset of *redis.Client the cache uses.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Options configure a Cache.
type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Cache is a JSON value cache in Redis.
type Cache struct {
	rdb    client
	prefix string
	ttl    time.Duration
}

// New connects lazily to the Redis server at o.Addr.
func New(o Options) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Username: o.Username,
		Password: o.Password,
		DB:       o.DB,
	}), o.Prefix, o.TTL)
}

// NewWithClient wraps an existing client.
func NewWithClient(c client, prefix string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: c, prefix: prefix, ttl: ttl}
}

// Key derives a fixed-length key from arbitrary input.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// GetJSON decodes the value stored at key into out. It reports false when the
// key is absent.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("rediscache: get: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("rediscache: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v at key with the cache TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("rediscache: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("rediscache: set: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("rediscache: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Cache) Close() error { return c.rdb.Close() }
