// Package cache stores extracted schema snapshots in Redis so that
// repeated reads do not re-introspect the database.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tordrt/schemascope/internal/schema"
)

const (
	// DefaultPrefix namespaces every snapshot key
	DefaultPrefix = "schemascope:"
	// DefaultTTL is used when a cache is created without a TTL
	DefaultTTL = 5 * time.Minute
)

// ErrCacheMiss is returned when no snapshot is stored under a key
var ErrCacheMiss = errors.New("cache miss")

// SnapshotCache is a Redis-backed store of schema snapshots
type SnapshotCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSnapshotCache connects to the Redis server at url (redis:// or rediss://)
func NewSnapshotCache(ctx context.Context, url, prefix string, ttl time.Duration) (*SnapshotCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewSnapshotCacheWithClient(client, prefix, ttl), nil
}

// NewSnapshotCacheWithClient wraps an existing client
func NewSnapshotCacheWithClient(client *redis.Client, prefix string, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Key builds the snapshot key for a source. location identifies the database
// (host and database name, never credentials) so that instances pointed at
// different databases can share one Redis. An empty location is left out.
func Key(source, location, schemaName string) string {
	if location == "" {
		return source + ":" + schemaName
	}
	hash := sha256.Sum256([]byte(location))
	return source + ":" + hex.EncodeToString(hash[:6]) + ":" + schemaName
}

// Get loads the snapshot stored under key
func (c *SnapshotCache) Get(ctx context.Context, key string) (*schema.Schema, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}

	var s schema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}

	return &s, nil
}

// Set stores a snapshot under key with the cache TTL
func (c *SnapshotCache) Set(ctx context.Context, key string, s *schema.Schema) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", key, err)
	}

	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", key, err)
	}
	return nil
}

// Delete drops the snapshot under key. Deleting a missing key is not an error.
func (c *SnapshotCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	return nil
}

// Ping checks that Redis answers
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
