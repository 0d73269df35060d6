package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"loginguard/pkg/domain"
)

// fakeStore is an in-memory credential store for policy tests.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeStore(users ...*domain.User) *fakeStore {
	s := &fakeStore{users: make(map[string]*domain.User)}
	for _, u := range users {
		s.users[u.Email] = u
	}
	return s
}

func (s *fakeStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakeStore) ClearTooManyAttempts(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		u.TooManyAttempts = false
	}
	return nil
}

func (s *fakeStore) SuspendIfFlagged(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok || !u.TooManyAttempts || u.Suspended {
		return false, nil
	}
	u.Suspended = true
	return true, nil
}

// SetTooManyAttempts stands in for the asynchronous lockout handler.
func (s *fakeStore) SetTooManyAttempts(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		u.TooManyAttempts = true
	}
	return nil
}

// fakeNotifier records published lockout events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.LockoutEvent
}

func (n *fakeNotifier) Publish(_ context.Context, event domain.LockoutEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// spyTracker counts tracker calls on top of a real MemoryTracker.
type spyTracker struct {
	*MemoryTracker
	calls int
}

func (t *spyTracker) RecordFailure(ctx context.Context, key AttemptKey) (int, error) {
	t.calls++
	return t.MemoryTracker.RecordFailure(ctx, key)
}

func (t *spyTracker) RecordSuccess(ctx context.Context, key AttemptKey) error {
	t.calls++
	return t.MemoryTracker.RecordSuccess(ctx, key)
}

func (t *spyTracker) IsOverLimit(ctx context.Context, key AttemptKey) (bool, error) {
	t.calls++
	return t.MemoryTracker.IsOverLimit(ctx, key)
}

func (t *spyTracker) Count(ctx context.Context, key AttemptKey) (int, error) {
	t.calls++
	return t.MemoryTracker.Count(ctx, key)
}

func (t *spyTracker) MarkLockedOut(ctx context.Context, key AttemptKey) (bool, error) {
	t.calls++
	return t.MemoryTracker.MarkLockedOut(ctx, key)
}

func testUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	now := time.Now()
	return &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestEvaluateLogin_SuspendedGate(t *testing.T) {
	user := testUser(t, "a@x.com", "secret")
	user.Suspended = true

	store := newFakeStore(user)
	tracker := &spyTracker{MemoryTracker: NewMemoryTracker(3, time.Minute)}
	notifier := &fakeNotifier{}
	policy := NewLockoutPolicy(store, tracker, notifier, nil)

	// Rejected even with correct credentials, and the tracker is never
	// consulted.
	result, err := policy.EvaluateLogin(context.Background(), "a@x.com", "1.2.3.4", "secret")
	if err != nil {
		t.Fatalf("EvaluateLogin failed: %v", err)
	}
	if result.Outcome != domain.OutcomeSuspended {
		t.Errorf("Outcome = %v, want %v", result.Outcome, domain.OutcomeSuspended)
	}
	if tracker.calls != 0 {
		t.Errorf("tracker touched %d times, want 0", tracker.calls)
	}
	if notifier.count() != 0 {
		t.Errorf("notifier fired %d times, want 0", notifier.count())
	}
}

func TestEvaluateLogin_SuccessFirstAttempt(t *testing.T) {
	user := testUser(t, "a@x.com", "secret")
	store := newFakeStore(user)
	tracker := NewMemoryTracker(3, time.Minute)
	policy := NewLockoutPolicy(store, tracker, &fakeNotifier{}, nil)

	result, err := policy.EvaluateLogin(context.Background(), "a@x.com", "1.2.3.4", "secret")
	if err != nil {
		t.Fatalf("EvaluateLogin failed: %v", err)
	}
	if result.Outcome != domain.OutcomeAllowed {
		t.Fatalf("Outcome = %v, want %v", result.Outcome, domain.OutcomeAllowed)
	}
	if result.User == nil || result.User.Email != "a@x.com" {
		t.Errorf("result.User = %+v, want a@x.com", result.User)
	}

	key := AttemptKey{Identifier: "a@x.com", SourceAddress: "1.2.3.4"}
	if count, _ := tracker.Count(context.Background(), key); count != 0 {
		t.Errorf("tracker count = %d, want 0", count)
	}
}

func TestEvaluateLogin_LockoutScenario(t *testing.T) {
	// Max attempts 3: two bad-credential rejections, then the third
	// failure locks the pair out and fires exactly one notification.
	// Once the flag lands, the next call escalates to suspended.
	user := testUser(t, "a@x.com", "secret")
	store := newFakeStore(user)
	tracker := NewMemoryTracker(3, time.Minute)
	notifier := &fakeNotifier{}
	policy := NewLockoutPolicy(store, tracker, notifier, nil)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		result, err := policy.EvaluateLogin(ctx, "a@x.com", "1.2.3.4", "wrong")
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		if result.Outcome != domain.OutcomeBadCredentials {
			t.Fatalf("call %d: Outcome = %v, want %v", i, result.Outcome, domain.OutcomeBadCredentials)
		}
	}

	result, err := policy.EvaluateLogin(ctx, "a@x.com", "1.2.3.4", "wrong")
	if err != nil {
		t.Fatalf("call 3 failed: %v", err)
	}
	if result.Outcome != domain.OutcomeLockedOut {
		t.Fatalf("call 3: Outcome = %v, want %v", result.Outcome, domain.OutcomeLockedOut)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifier fired %d times after crossing, want 1", notifier.count())
	}

	// Next call, before the notification lands: still locked out, no
	// duplicate notification.
	result, err = policy.EvaluateLogin(ctx, "a@x.com", "1.2.3.4", "wrong")
	if err != nil {
		t.Fatalf("call 4 failed: %v", err)
	}
	if result.Outcome != domain.OutcomeLockedOut {
		t.Fatalf("call 4: Outcome = %v, want %v", result.Outcome, domain.OutcomeLockedOut)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifier fired %d times while over limit, want 1", notifier.count())
	}

	// The asynchronous handler lands the flag.
	if err := store.SetTooManyAttempts(ctx, "a@x.com"); err != nil {
		t.Fatalf("SetTooManyAttempts failed: %v", err)
	}

	result, err = policy.EvaluateLogin(ctx, "a@x.com", "1.2.3.4", "wrong")
	if err != nil {
		t.Fatalf("call 5 failed: %v", err)
	}
	if result.Outcome != domain.OutcomeSuspended {
		t.Fatalf("call 5: Outcome = %v, want %v", result.Outcome, domain.OutcomeSuspended)
	}

	// Suspension is terminal: even correct credentials are rejected at
	// the gate from any address.
	result, err = policy.EvaluateLogin(ctx, "a@x.com", "5.6.7.8", "secret")
	if err != nil {
		t.Fatalf("post-suspension call failed: %v", err)
	}
	if result.Outcome != domain.OutcomeSuspended {
		t.Errorf("post-suspension: Outcome = %v, want %v", result.Outcome, domain.OutcomeSuspended)
	}
}

func TestEvaluateLogin_PerAddressIsolation(t *testing.T) {
	// Two failures each from two addresses never combine into a
	// lockout when neither address alone reaches the threshold.
	user := testUser(t, "a@x.com", "secret")
	store := newFakeStore(user)
	tracker := NewMemoryTracker(3, time.Minute)
	notifier := &fakeNotifier{}
	policy := NewLockoutPolicy(store, tracker, notifier, nil)
	ctx := context.Background()

	for _, addr := range []string{"1.1.1.1", "2.2.2.2"} {
		for i := 0; i < 2; i++ {
			result, err := policy.EvaluateLogin(ctx, "a@x.com", addr, "wrong")
			if err != nil {
				t.Fatalf("EvaluateLogin failed: %v", err)
			}
			if result.Outcome != domain.OutcomeBadCredentials {
				t.Fatalf("addr %s: Outcome = %v, want %v", addr, result.Outcome, domain.OutcomeBadCredentials)
			}
		}
	}

	if notifier.count() != 0 {
		t.Errorf("notifier fired %d times, want 0", notifier.count())
	}

	// The legitimate user still logs in from a clean address.
	result, err := policy.EvaluateLogin(ctx, "a@x.com", "3.3.3.3", "secret")
	if err != nil {
		t.Fatalf("EvaluateLogin failed: %v", err)
	}
	if result.Outcome != domain.OutcomeAllowed {
		t.Errorf("Outcome = %v, want %v", result.Outcome, domain.OutcomeAllowed)
	}
}

func TestEvaluateLogin_SuccessResetsTrackerAndFlag(t *testing.T) {
	user := testUser(t, "a@x.com", "secret")
	user.TooManyAttempts = true

	store := newFakeStore(user)
	tracker := NewMemoryTracker(3, time.Minute)
	policy := NewLockoutPolicy(store, tracker, &fakeNotifier{}, nil)
	ctx := context.Background()
	key := AttemptKey{Identifier: "a@x.com", SourceAddress: "1.2.3.4"}

	for i := 0; i < 2; i++ {
		if _, err := policy.EvaluateLogin(ctx, "a@x.com", "1.2.3.4", "wrong"); err != nil {
			t.Fatalf("EvaluateLogin failed: %v", err)
		}
	}
	if count, _ := tracker.Count(ctx, key); count != 2 {
		t.Fatalf("tracker count = %d, want 2", count)
	}

	result, err := policy.EvaluateLogin(ctx, "a@x.com", "1.2.3.4", "secret")
	if err != nil {
		t.Fatalf("EvaluateLogin failed: %v", err)
	}
	if result.Outcome != domain.OutcomeAllowed {
		t.Fatalf("Outcome = %v, want %v", result.Outcome, domain.OutcomeAllowed)
	}

	if count, _ := tracker.Count(ctx, key); count != 0 {
		t.Errorf("tracker count after success = %d, want 0", count)
	}
	stored, err := store.GetByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if stored.TooManyAttempts {
		t.Error("TooManyAttempts still set after successful login")
	}
}

func TestEvaluateLogin_UnknownIdentifierThrottled(t *testing.T) {
	// Probing for valid emails takes the same failure path as guessing
	// passwords.
	store := newFakeStore()
	tracker := NewMemoryTracker(3, time.Minute)
	notifier := &fakeNotifier{}
	policy := NewLockoutPolicy(store, tracker, notifier, nil)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		result, err := policy.EvaluateLogin(ctx, "ghost@x.com", "1.2.3.4", "anything")
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		if result.Outcome != domain.OutcomeBadCredentials {
			t.Fatalf("call %d: Outcome = %v, want %v", i, result.Outcome, domain.OutcomeBadCredentials)
		}
	}

	result, err := policy.EvaluateLogin(ctx, "ghost@x.com", "1.2.3.4", "anything")
	if err != nil {
		t.Fatalf("call 3 failed: %v", err)
	}
	if result.Outcome != domain.OutcomeLockedOut {
		t.Errorf("call 3: Outcome = %v, want %v", result.Outcome, domain.OutcomeLockedOut)
	}
}

func TestEvaluateLogin_FlagFromPriorCycleEscalatesOnFailure(t *testing.T) {
	// A fresh window after an old lockout: the flag is still set, so
	// the first new failure escalates straight to suspension.
	user := testUser(t, "a@x.com", "secret")
	user.TooManyAttempts = true

	store := newFakeStore(user)
	tracker := NewMemoryTracker(3, time.Minute)
	policy := NewLockoutPolicy(store, tracker, &fakeNotifier{}, nil)

	result, err := policy.EvaluateLogin(context.Background(), "a@x.com", "9.9.9.9", "wrong")
	if err != nil {
		t.Fatalf("EvaluateLogin failed: %v", err)
	}
	if result.Outcome != domain.OutcomeSuspended {
		t.Errorf("Outcome = %v, want %v", result.Outcome, domain.OutcomeSuspended)
	}

	stored, _ := store.GetByEmail(context.Background(), "a@x.com")
	if !stored.Suspended {
		t.Error("user not suspended after failure with flag set")
	}
}
