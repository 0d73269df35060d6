package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"loginguard/pkg/domain"
	"loginguard/pkg/repository"
)

const (
	sessionTokenLen = 32

	// DefaultSessionTTL is how long a web session stays valid.
	DefaultSessionTTL = 24 * time.Hour
)

// SessionService issues and revokes web sessions. Session tokens are
// opaque; only their hash is stored.
type SessionService struct {
	sessions *repository.SessionsRepository
	ttl      time.Duration
}

// NewSessionService creates a new session service.
func NewSessionService(sessions *repository.SessionsRepository, ttl time.Duration) *SessionService {
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{sessions: sessions, ttl: ttl}
}

// TTL returns the session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// IssueSession creates a session for the user and returns the opaque
// cookie token.
func (s *SessionService) IssueSession(ctx context.Context, user *domain.User, ip, userAgent string) (string, error) {
	token, err := GenerateToken(sessionTokenLen)
	if err != nil {
		return "", err
	}

	now := time.Now()
	session := &domain.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: HashToken(token),
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", err
	}

	return token, nil
}

// ValidateSession resolves a cookie token to its session.
func (s *SessionService) ValidateSession(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.sessions.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}
	if !session.IsValid() {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

// RevokeSession revokes a session by its cookie token.
func (s *SessionService) RevokeSession(ctx context.Context, token string) error {
	return s.sessions.RevokeByTokenHash(ctx, HashToken(token))
}
