package action

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// UsageLimits caps how much a single creator may submit per UTC calendar
// day, by action count and by cumulative value. Zero means unlimited.
type UsageLimits struct {
	MaxActions int64
	MaxValue   int64
}

// UsageStore tracks per-creator daily submission usage. Counters reset at
// the UTC day boundary.
type UsageStore interface {
	// Reserve consumes one action slot and the given value for the creator
	// on the given day. Returns ErrRateLimited without consuming anything
	// when either limit would be exceeded.
	Reserve(ctx context.Context, creator, day string, value int64, limits UsageLimits) error

	// Release returns a previously reserved slot and value, for rollback
	// when a submission fails after its quota was consumed.
	Release(ctx context.Context, creator, day string, value int64) error
}

// UsageDay formats a timestamp as the UTC day key usage is bucketed by.
func UsageDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

type usageBucket struct {
	count int64
	value int64
}

// InMemoryUsageStore implements UsageStore with an in-memory map.
// Thread-safe for concurrent access.
type InMemoryUsageStore struct {
	mu      sync.Mutex
	buckets map[string]*usageBucket
}

// NewInMemoryUsageStore creates a new in-memory usage store.
func NewInMemoryUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{buckets: make(map[string]*usageBucket)}
}

// Reserve consumes usage for the creator's day bucket.
func (s *InMemoryUsageStore) Reserve(ctx context.Context, creator, day string, value int64, limits UsageLimits) error {
	key := creator + "|" + day

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &usageBucket{}
		s.buckets[key] = b
	}
	if limits.MaxActions > 0 && b.count+1 > limits.MaxActions {
		return ErrRateLimited
	}
	if limits.MaxValue > 0 && b.value+value > limits.MaxValue {
		return ErrRateLimited
	}
	b.count++
	b.value += value
	return nil
}

// Release returns previously reserved usage to the creator's day bucket.
func (s *InMemoryUsageStore) Release(ctx context.Context, creator, day string, value int64) error {
	key := creator + "|" + day

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		return nil
	}
	if b.count > 0 {
		b.count--
	}
	b.value -= value
	if b.value < 0 {
		b.value = 0
	}
	return nil
}

// Cleanup removes buckets for days other than the given day to prevent
// unbounded growth. Call periodically with the current usage day.
func (s *InMemoryUsageStore) Cleanup(day string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	suffix := "|" + day
	for key := range s.buckets {
		if len(key) < len(suffix) || key[len(key)-len(suffix):] != suffix {
			delete(s.buckets, key)
		}
	}
}

// RedisUsageStore implements UsageStore on Redis. Keys carry a TTL past the
// day boundary so stale buckets expire on their own.
type RedisUsageStore struct {
	client *redis.Client
}

// NewRedisUsageStore creates a new Redis-backed usage store.
func NewRedisUsageStore(client *redis.Client) *RedisUsageStore {
	return &RedisUsageStore{client: client}
}

const usageKeyTTL = 48 * time.Hour

// Reserve consumes usage atomically; on an exceeded limit the increments
// are rolled back so rejected submissions never consume quota.
func (s *RedisUsageStore) Reserve(ctx context.Context, creator, day string, value int64, limits UsageLimits) error {
	countKey := fmt.Sprintf("usage:%s:%s:count", creator, day)
	valueKey := fmt.Sprintf("usage:%s:%s:value", creator, day)

	count, err := s.client.Incr(ctx, countKey).Result()
	if err != nil {
		return fmt.Errorf("failed to increment usage count: %w", err)
	}
	if count == 1 {
		s.client.Expire(ctx, countKey, usageKeyTTL)
	}
	if limits.MaxActions > 0 && count > limits.MaxActions {
		s.client.Decr(ctx, countKey)
		return ErrRateLimited
	}

	total, err := s.client.IncrBy(ctx, valueKey, value).Result()
	if err != nil {
		s.client.Decr(ctx, countKey)
		return fmt.Errorf("failed to increment usage value: %w", err)
	}
	if total == value {
		s.client.Expire(ctx, valueKey, usageKeyTTL)
	}
	if limits.MaxValue > 0 && total > limits.MaxValue {
		s.client.DecrBy(ctx, valueKey, value)
		s.client.Decr(ctx, countKey)
		return ErrRateLimited
	}
	return nil
}

// Release returns previously reserved usage.
func (s *RedisUsageStore) Release(ctx context.Context, creator, day string, value int64) error {
	countKey := fmt.Sprintf("usage:%s:%s:count", creator, day)
	valueKey := fmt.Sprintf("usage:%s:%s:value", creator, day)

	if err := s.client.Decr(ctx, countKey).Err(); err != nil {
		return fmt.Errorf("failed to release usage count: %w", err)
	}
	if err := s.client.DecrBy(ctx, valueKey, value).Err(); err != nil {
		return fmt.Errorf("failed to release usage value: %w", err)
	}
	return nil
}
