package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache stores per-email identity snapshots for a short TTL so that bursts
// of requests from the same user do not repeat the multi-table fan-out.
// Implementations must treat entries as expendable; a miss is never an
// error.
type Cache interface {
	Get(ctx context.Context, email string) (*EmailIdentities, bool)
	Set(ctx context.Context, email string, ids *EmailIdentities)
	Delete(ctx context.Context, email string)
}

// DefaultCacheTTL bounds how stale a cached identity snapshot may be.
// Approval-state changes become visible within this window.
const DefaultCacheTTL = 30 * time.Second

// DefaultCacheSize bounds the number of cached emails
const DefaultCacheSize = 4096

// LRUCache is a bounded in-memory cache with per-entry expiry
type LRUCache struct {
	lru *expirable.LRU[string, *EmailIdentities]
}

// NewLRUCache creates an in-memory identity cache. Zero values select the
// defaults.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &LRUCache{
		lru: expirable.NewLRU[string, *EmailIdentities](size, nil, ttl),
	}
}

// Get returns the cached snapshot for email, if present and unexpired
func (c *LRUCache) Get(_ context.Context, email string) (*EmailIdentities, bool) {
	return c.lru.Get(email)
}

// Set stores a snapshot for email
func (c *LRUCache) Set(_ context.Context, email string, ids *EmailIdentities) {
	c.lru.Add(email, ids)
}

// Delete removes the snapshot for email
func (c *LRUCache) Delete(_ context.Context, email string) {
	c.lru.Remove(email)
}

// RedisCache is a Redis-backed identity cache for multi-process
// deployments
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed identity cache
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func identityCacheKey(email string) string {
	return fmt.Sprintf("identity:email:%s", email)
}

// Get returns the cached snapshot for email, if present
func (c *RedisCache) Get(ctx context.Context, email string) (*EmailIdentities, bool) {
	data, err := c.client.Get(ctx, identityCacheKey(email)).Result()
	if err != nil {
		return nil, false
	}
	ids := &EmailIdentities{}
	if err := json.Unmarshal([]byte(data), ids); err != nil {
		return nil, false
	}
	return ids, true
}

// Set stores a snapshot for email. Marshal or transport failures are
// ignored; the cache is best-effort.
func (c *RedisCache) Set(ctx context.Context, email string, ids *EmailIdentities) {
	data, err := json.Marshal(ids)
	if err != nil {
		return
	}
	c.client.Set(ctx, identityCacheKey(email), data, c.ttl)
}

// Delete removes the snapshot for email
func (c *RedisCache) Delete(ctx context.Context, email string) {
	c.client.Del(ctx, identityCacheKey(email))
}
