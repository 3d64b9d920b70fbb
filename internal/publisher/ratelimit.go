package publisher

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"draftwire/pkg/bus"
)

// CounterStore is the atomic counter backend for rate limiting. Increment
// must bump the counter and set its expiry in one atomic step so two
// concurrent publishes cannot both slip under the limit.
type CounterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}

// Limiter enforces per-user/platform hourly and daily publish ceilings.
// Counters are only incremented after a successful publish; Allow is a
// read-only check.
type Limiter struct {
	store CounterStore
	now   func() time.Time
}

func NewLimiter(store CounterStore) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Allow returns a retryable rate_limited error when either window is
// exhausted, with the retry horizon in the error context.
func (l *Limiter) Allow(ctx context.Context, userID string, platform Platform) error {
	now := l.now().UTC()

	hourly, err := l.store.Get(ctx, hourKey(userID, platform.Name, now))
	if err != nil {
		return fmt.Errorf("read hourly counter: %w", err)
	}
	if hourly >= int64(platform.MaxPerHour) {
		return rateLimitError(platform, "hourly", nextHour(now))
	}

	daily, err := l.store.Get(ctx, dayKey(userID, platform.Name, now))
	if err != nil {
		return fmt.Errorf("read daily counter: %w", err)
	}
	if daily >= int64(platform.MaxPerDay) {
		return rateLimitError(platform, "daily", nextDay(now))
	}

	return nil
}

// RecordPublish bumps both windows. Call only after the platform
// accepted the post.
func (l *Limiter) RecordPublish(ctx context.Context, userID string, platform Platform) error {
	now := l.now().UTC()
	if _, err := l.store.Increment(ctx, hourKey(userID, platform.Name, now), time.Hour); err != nil {
		return fmt.Errorf("increment hourly counter: %w", err)
	}
	if _, err := l.store.Increment(ctx, dayKey(userID, platform.Name, now), 24*time.Hour); err != nil {
		return fmt.Errorf("increment daily counter: %w", err)
	}
	return nil
}

func rateLimitError(platform Platform, window string, retryAt time.Time) error {
	return &bus.TaskError{
		Code:      bus.CodeRateLimited,
		Message:   fmt.Sprintf("%s %s publish limit reached", platform.Name, window),
		Retryable: true,
		Context: map[string]string{
			"window":      window,
			"retry_after": retryAt.Format(time.RFC3339),
		},
	}
}

// Bucketed keys make window boundaries explicit; the TTL is cleanup.
func hourKey(userID, platform string, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:h:%s", userID, platform, now.Format("2006010215"))
}

func dayKey(userID, platform string, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:d:%s", userID, platform, now.Format("20060102"))
}

func nextHour(now time.Time) time.Time {
	return now.Truncate(time.Hour).Add(time.Hour)
}

func nextDay(now time.Time) time.Time {
	return now.Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// incrExpire bumps a counter and sets its expiry atomically. EXPIRE only
// fires on the first increment so the window does not slide.
var incrExpire = goredis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisCounterStore backs the limiter with Redis for multi-process
// deployments.
type RedisCounterStore struct {
	client goredis.UniversalClient
}

func NewRedisCounterStore(client goredis.UniversalClient) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return incrExpire.Run(ctx, s.client, []string{key}, int(ttl.Seconds())).Int64()
}

func (s *RedisCounterStore) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// MemoryCounterStore is the in-process backend for tests and single-node
// runs.
type MemoryCounterStore struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryCounterStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(key)
	s.counts[key]++
	if s.counts[key] == 1 {
		s.expires[key] = s.now().Add(ttl)
	}
	return s.counts[key], nil
}

func (s *MemoryCounterStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(key)
	return s.counts[key], nil
}

func (s *MemoryCounterStore) expire(key string) {
	if deadline, ok := s.expires[key]; ok && s.now().After(deadline) {
		delete(s.counts, key)
		delete(s.expires, key)
	}
}
