package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActivityTracker records when a session last saw participant activity.
// The durable lastActivityAt on the session document is authoritative; the
// tracker carries the reaper's first-sight grace and drop-on-reap
// bookkeeping, and with the Redis backend survives process restarts.
type ActivityTracker interface {
	Touch(ctx context.Context, token string, at time.Time) error
	LastSeen(ctx context.Context, token string) (time.Time, bool, error)
	Drop(ctx context.Context, token string) error
}

// MemoryActivityTracker is the single-process tracker.
type MemoryActivityTracker struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryActivityTracker() *MemoryActivityTracker {
	return &MemoryActivityTracker{seen: make(map[string]time.Time)}
}

func (t *MemoryActivityTracker) Touch(ctx context.Context, token string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[token] = at
	return nil
}

func (t *MemoryActivityTracker) LastSeen(ctx context.Context, token string) (time.Time, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.seen[token]
	return at, ok, nil
}

func (t *MemoryActivityTracker) Drop(ctx context.Context, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, token)
	return nil
}

// RedisActivityTracker shares activity timestamps across server instances.
// Entries expire on their own at twice the inactivity threshold, so a
// crashed sweep cannot leak keys forever.
type RedisActivityTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisActivityTracker(addr, password string, threshold time.Duration) *RedisActivityTracker {
	return &RedisActivityTracker{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		ttl:    2 * threshold,
	}
}

func activityKey(token string) string {
	return "session:activity:" + token
}

func (t *RedisActivityTracker) Touch(ctx context.Context, token string, at time.Time) error {
	return t.client.Set(ctx, activityKey(token), strconv.FormatInt(at.UnixMilli(), 10), t.ttl).Err()
}

func (t *RedisActivityTracker) LastSeen(ctx context.Context, token string) (time.Time, bool, error) {
	val, err := t.client.Get(ctx, activityKey(token)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (t *RedisActivityTracker) Drop(ctx context.Context, token string) error {
	return t.client.Del(ctx, activityKey(token)).Err()
}
