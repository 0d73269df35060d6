package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTracker is an AttemptTracker backed by Redis, for deployments
// running more than one replica. INCR keeps the count atomic per key and
// the key TTL implements window expiry; SET NX makes the lockout
// transition fire once across replicas.
type RedisTracker struct {
	client *redis.Client

	maxAttempts int
	window      time.Duration
}

// NewRedisTracker creates a Redis-backed attempt tracker.
func NewRedisTracker(client *redis.Client, maxAttempts int, window time.Duration) *RedisTracker {
	return &RedisTracker{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (t *RedisTracker) countKey(key AttemptKey) string {
	return fmt.Sprintf("loginguard:attempts:%s:%s", key.Identifier, key.SourceAddress)
}

func (t *RedisTracker) lockKey(key AttemptKey) string {
	return fmt.Sprintf("loginguard:lockout:%s:%s", key.Identifier, key.SourceAddress)
}

// recordFailureScript increments the counter and attaches the window
// TTL in one atomic step, so a crash can never strand a counter without
// an expiry. The TTL is also re-attached to any key that lost it.
var recordFailureScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RecordFailure increments the failure count, starting the window on the
// first failure.
func (t *RedisTracker) RecordFailure(ctx context.Context, key AttemptKey) (int, error) {
	count, err := recordFailureScript.Run(ctx, t.client,
		[]string{t.countKey(key)}, t.window.Milliseconds()).Int()
	if err != nil {
		return 0, err
	}
	return count, nil
}

// RecordSuccess resets the key.
func (t *RedisTracker) RecordSuccess(ctx context.Context, key AttemptKey) error {
	return t.client.Del(ctx, t.countKey(key), t.lockKey(key)).Err()
}

// IsOverLimit reports whether the key has reached the attempt limit.
func (t *RedisTracker) IsOverLimit(ctx context.Context, key AttemptKey) (bool, error) {
	count, err := t.Count(ctx, key)
	if err != nil {
		return false, err
	}
	return count >= t.maxAttempts, nil
}

// Count returns the current failure count.
func (t *RedisTracker) Count(ctx context.Context, key AttemptKey) (int, error) {
	count, err := t.client.Get(ctx, t.countKey(key)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkLockedOut wins the lockout transition via SET NX. The mark expires
// with the window so a later burst can notify again.
func (t *RedisTracker) MarkLockedOut(ctx context.Context, key AttemptKey) (bool, error) {
	return t.client.SetNX(ctx, t.lockKey(key), 1, t.window).Result()
}
