package auth

import (
	"context"
	"sync"
	"time"
)

// AttemptKey identifies a throttled caller. Counting is per
// (identifier, source address) pair so an attacker at one address does
// not lock a legitimate user out from another.
type AttemptKey struct {
	Identifier    string
	SourceAddress string
}

// AttemptTracker counts failed login attempts per key within a fixed
// window. Implementations must be safe for concurrent use; two
// simultaneous failures for the same key must both be counted.
type AttemptTracker interface {
	// RecordFailure increments the failure count and returns the new count.
	RecordFailure(ctx context.Context, key AttemptKey) (int, error)
	// RecordSuccess resets the key to zero.
	RecordSuccess(ctx context.Context, key AttemptKey) error
	// IsOverLimit reports whether the key has reached the attempt limit.
	IsOverLimit(ctx context.Context, key AttemptKey) (bool, error)
	// Count returns the current failure count.
	Count(ctx context.Context, key AttemptKey) (int, error)
	// MarkLockedOut records that a lockout notification was dispatched
	// for this key and reports whether the caller won the transition.
	// It returns true exactly once per threshold crossing.
	MarkLockedOut(ctx context.Context, key AttemptKey) (bool, error)
}

type attemptRecord struct {
	count       int
	windowStart time.Time
	notified    bool
}

// MemoryTracker is an in-process AttemptTracker backed by a mutex-guarded
// map. Records lapse lazily: any read past the window treats the key as
// zero and drops the record.
type MemoryTracker struct {
	mu       sync.Mutex
	attempts map[AttemptKey]*attemptRecord

	maxAttempts int
	window      time.Duration
}

// NewMemoryTracker creates an in-memory attempt tracker.
func NewMemoryTracker(maxAttempts int, window time.Duration) *MemoryTracker {
	return &MemoryTracker{
		attempts:    make(map[AttemptKey]*attemptRecord),
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// get returns the live record for key, expiring it first if the window
// has lapsed. Callers must hold mu.
func (t *MemoryTracker) get(key AttemptKey) *attemptRecord {
	rec, ok := t.attempts[key]
	if !ok {
		return nil
	}
	if time.Since(rec.windowStart) >= t.window {
		delete(t.attempts, key)
		return nil
	}
	return rec
}

// RecordFailure increments the failure count for a key.
func (t *MemoryTracker) RecordFailure(_ context.Context, key AttemptKey) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.get(key)
	if rec == nil {
		rec = &attemptRecord{windowStart: time.Now()}
		t.attempts[key] = rec
	}
	rec.count++
	return rec.count, nil
}

// RecordSuccess clears the failure count for a key.
func (t *MemoryTracker) RecordSuccess(_ context.Context, key AttemptKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, key)
	return nil
}

// IsOverLimit reports whether the key has reached the attempt limit.
func (t *MemoryTracker) IsOverLimit(_ context.Context, key AttemptKey) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.get(key)
	return rec != nil && rec.count >= t.maxAttempts, nil
}

// Count returns the current failure count for a key.
func (t *MemoryTracker) Count(_ context.Context, key AttemptKey) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.get(key)
	if rec == nil {
		return 0, nil
	}
	return rec.count, nil
}

// MarkLockedOut flips the notified bit and reports whether this caller
// made the transition.
func (t *MemoryTracker) MarkLockedOut(_ context.Context, key AttemptKey) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.get(key)
	if rec == nil {
		return false, nil
	}
	if rec.notified {
		return false, nil
	}
	rec.notified = true
	return true, nil
}
