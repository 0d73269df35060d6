package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"loginguard/pkg/domain"
)

// DefaultMaxAttempts is the number of failed attempts allowed per
// (identifier, source address) pair before the throttle engages.
const DefaultMaxAttempts = 3

// CredentialStore is the slice of the users repository the lockout
// policy needs. The store is the sole writer of the account flags; the
// policy only requests conditional updates.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ClearTooManyAttempts(ctx context.Context, email string) error
	SuspendIfFlagged(ctx context.Context, email string) (bool, error)
}

// LockoutNotifier publishes lockout events off the request path.
type LockoutNotifier interface {
	Publish(ctx context.Context, event domain.LockoutEvent) error
}

// LockoutPolicy decides the outcome of each login call from the attempt
// tracker state and the account flags, and drives the side effects that
// go with each outcome.
type LockoutPolicy struct {
	store    CredentialStore
	tracker  AttemptTracker
	notifier LockoutNotifier
	logger   *slog.Logger
}

// NewLockoutPolicy creates the login decision engine.
func NewLockoutPolicy(store CredentialStore, tracker AttemptTracker, notifier LockoutNotifier, logger *slog.Logger) *LockoutPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &LockoutPolicy{
		store:    store,
		tracker:  tracker,
		notifier: notifier,
		logger:   logger,
	}
}

// EvaluateLogin runs one login attempt through the policy.
//
// Suspension is checked twice: once as a hard gate before the throttle,
// and again after a failed attempt as the escalation path. The lockout
// notifier races the synchronous counter, so the later checks catch
// accounts whose too_many_attempts flag landed after the crossing.
//
// Deterministic semantics: the failure that reaches the attempt limit
// itself returns the locked-out outcome and schedules exactly one
// notification for that crossing; the account transitions to suspended
// on the first subsequent call after the flag write has landed.
//
// A non-nil error means an infrastructure failure, never a rejection;
// all rejections come back as typed outcomes.
func (p *LockoutPolicy) EvaluateLogin(ctx context.Context, identifier, sourceAddress, secret string) (*domain.LoginResult, error) {
	user, err := p.store.GetByEmail(ctx, identifier)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	// Hard gate: a suspended account is rejected before any throttling
	// cost, with no attempt recorded and no credential check.
	if user != nil && user.Suspended {
		return &domain.LoginResult{
			Outcome: domain.OutcomeSuspended,
			Message: domain.MsgSuspended,
		}, nil
	}

	key := AttemptKey{Identifier: identifier, SourceAddress: sourceAddress}

	over, err := p.tracker.IsOverLimit(ctx, key)
	if err != nil {
		return nil, err
	}
	if over {
		p.fireLockoutEvent(ctx, key)
		return p.escalateOrLockOut(ctx, key, user)
	}

	// Unknown identifiers take the failure path too, so probing for
	// valid emails is throttled the same as guessing passwords.
	if user != nil && VerifyPassword(secret, user.PasswordHash) {
		if err := p.tracker.RecordSuccess(ctx, key); err != nil {
			return nil, err
		}
		if user.TooManyAttempts {
			if err := p.store.ClearTooManyAttempts(ctx, identifier); err != nil {
				return nil, err
			}
		}
		return &domain.LoginResult{
			Outcome: domain.OutcomeAllowed,
			User:    user,
		}, nil
	}

	if _, err := p.tracker.RecordFailure(ctx, key); err != nil {
		return nil, err
	}

	// Re-check after the failure: the flag may have been set by an
	// earlier crossing whose notification has landed by now.
	if suspended, err := p.suspendIfFlagged(ctx, key, user); err != nil {
		return nil, err
	} else if suspended {
		return &domain.LoginResult{
			Outcome: domain.OutcomeSuspended,
			Message: domain.MsgSuspended,
		}, nil
	}

	// This failure crossed the threshold: schedule the notification and
	// reject as locked out rather than bad credentials.
	crossed, err := p.tracker.IsOverLimit(ctx, key)
	if err != nil {
		return nil, err
	}
	if crossed {
		p.fireLockoutEvent(ctx, key)
		return &domain.LoginResult{
			Outcome: domain.OutcomeLockedOut,
			Message: domain.MsgLockedOut,
		}, nil
	}

	return &domain.LoginResult{
		Outcome: domain.OutcomeBadCredentials,
		Message: domain.MsgBadCredentials,
	}, nil
}

// escalateOrLockOut handles a call that arrived already over the limit:
// suspended if the asynchronous flag has landed, locked out otherwise.
func (p *LockoutPolicy) escalateOrLockOut(ctx context.Context, key AttemptKey, user *domain.User) (*domain.LoginResult, error) {
	if suspended, err := p.suspendIfFlagged(ctx, key, user); err != nil {
		return nil, err
	} else if suspended {
		return &domain.LoginResult{
			Outcome: domain.OutcomeSuspended,
			Message: domain.MsgSuspended,
		}, nil
	}
	return &domain.LoginResult{
		Outcome: domain.OutcomeLockedOut,
		Message: domain.MsgLockedOut,
	}, nil
}

func (p *LockoutPolicy) suspendIfFlagged(ctx context.Context, key AttemptKey, user *domain.User) (bool, error) {
	if user == nil {
		return false, nil
	}
	suspended, err := p.store.SuspendIfFlagged(ctx, key.Identifier)
	if err != nil {
		return false, err
	}
	if suspended {
		p.logger.Warn("account suspended after repeated lockouts",
			"identifier", key.Identifier,
			"source_address", key.SourceAddress,
		)
	}
	return suspended, nil
}

// fireLockoutEvent publishes at most one lockout event per threshold
// crossing. Publishing is fire-and-forget: a failed publish is logged,
// not surfaced, because the flag write is idempotent and a later
// crossing will retry.
func (p *LockoutPolicy) fireLockoutEvent(ctx context.Context, key AttemptKey) {
	first, err := p.tracker.MarkLockedOut(ctx, key)
	if err != nil {
		p.logger.Error("failed to mark lockout transition", "error", err, "identifier", key.Identifier)
		return
	}
	if !first {
		return
	}

	event := domain.LockoutEvent{
		Identifier:    key.Identifier,
		SourceAddress: key.SourceAddress,
		OccurredAt:    time.Now(),
	}
	if err := p.notifier.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish lockout event", "error", err, "identifier", key.Identifier)
		return
	}
	p.logger.Warn("lockout threshold crossed",
		"identifier", key.Identifier,
		"source_address", key.SourceAddress,
	)
}
