package quota

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// CounterStore increments named counters that expire at a fixed deadline.
// Incr returns the counter's value after the increment. The expiry is set
// when the counter is created and never extended, so a month's counter
// vanishes at the month boundary.
type CounterStore interface {
	Incr(ctx context.Context, key string, expireAt time.Time) (int64, error)
}

type memoryEntry struct {
	count    int64
	expireAt time.Time
}

// MemoryStore is the default in-process counter store
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryEntry
	now      func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*memoryEntry), now: time.Now}
}

// Incr implements CounterStore. Expired entries are replaced in place; no
// background sweeper is needed because keys are per organization per month.
func (s *MemoryStore) Incr(_ context.Context, key string, expireAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.counters[key]
	if !ok || !s.now().Before(e.expireAt) {
		e = &memoryEntry{expireAt: expireAt}
		s.counters[key] = e
	}
	e.count++
	return e.count, nil
}

// RedisStore keeps counters in Redis so multiple instances share one
// ceiling
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed counter store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr implements CounterStore with an INCR + EXPIREAT pipeline. EXPIREAT
// is idempotent for a fixed deadline, so re-arming it on every call is
// harmless.
func (s *RedisStore) Incr(ctx context.Context, key string, expireAt time.Time) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, expireAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
