package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"loginguard/pkg/domain"
)

// fakeTokenStore is an in-memory TokenStore.
type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*domain.APIToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[uuid.UUID]*domain.APIToken)}
}

func (s *fakeTokenStore) Create(_ context.Context, token *domain.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *token
	s.tokens[token.ID] = &copied
	return nil
}

func (s *fakeTokenStore) GetByID(_ context.Context, id uuid.UUID) (*domain.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	copied := *token
	return &copied, nil
}

func (s *fakeTokenStore) CountLiveByUserID(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, token := range s.tokens {
		if token.UserID == userID && token.IsLive() {
			count++
		}
	}
	return count, nil
}

func (s *fakeTokenStore) RevokeAllByUserID(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, token := range s.tokens {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
		}
	}
	return nil
}

func newTestTokenService(store TokenStore) *TokenService {
	return NewTokenService(TokenConfig{
		JWTSecret: []byte("test-secret-key-for-token-tests"),
		Issuer:    "loginguard-test",
	}, store)
}

func TestTokenService_DeviceLimit(t *testing.T) {
	store := newFakeTokenStore()
	service := newTestTokenService(store)
	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Email: "a@x.com"}

	// First and second tokens issue fine.
	for i := 1; i <= 2; i++ {
		if _, err := service.Issue(ctx, user); err != nil {
			t.Fatalf("token %d: Issue failed: %v", i, err)
		}
	}

	// Third device is rejected.
	_, err := service.Issue(ctx, user)
	if !errors.Is(err, domain.ErrTooManyActiveDevices) {
		t.Fatalf("third Issue error = %v, want ErrTooManyActiveDevices", err)
	}

	// The limit is per account, not global.
	other := &domain.User{ID: uuid.New(), Email: "b@x.com"}
	if _, err := service.Issue(ctx, other); err != nil {
		t.Errorf("Issue for other user failed: %v", err)
	}
}

func TestTokenService_ValidateRoundTrip(t *testing.T) {
	store := newFakeTokenStore()
	service := newTestTokenService(store)
	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Email: "a@x.com"}

	token, err := service.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	userID, err := service.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if userID != user.ID {
		t.Errorf("Validate user ID = %v, want %v", userID, user.ID)
	}
}

func TestTokenService_ValidateRejectsGarbage(t *testing.T) {
	service := newTestTokenService(newFakeTokenStore())

	tests := []string{
		"",
		"not-a-jwt",
		"eyJhbGciOiJIUzI1NiJ9.e30.invalid",
	}
	for _, tokenString := range tests {
		if _, err := service.Validate(context.Background(), tokenString); !errors.Is(err, domain.ErrInvalidToken) {
			t.Errorf("Validate(%q) error = %v, want ErrInvalidToken", tokenString, err)
		}
	}
}

func TestTokenService_ValidateRejectsForgedSignature(t *testing.T) {
	store := newFakeTokenStore()
	service := newTestTokenService(store)
	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Email: "a@x.com"}

	token, err := service.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Same store, different signing key: the signature check must fail
	// before the store is ever consulted.
	forger := NewTokenService(TokenConfig{
		JWTSecret: []byte("a-completely-different-secret"),
		Issuer:    "loginguard-test",
	}, store)
	if _, err := forger.Validate(ctx, token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("Validate with wrong key error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenService_RevokeAll(t *testing.T) {
	store := newFakeTokenStore()
	service := newTestTokenService(store)
	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Email: "a@x.com"}

	token, err := service.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := service.RevokeAll(ctx, user.ID); err != nil {
		t.Fatalf("RevokeAll failed: %v", err)
	}

	if _, err := service.Validate(ctx, token); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Errorf("Validate after revoke error = %v, want ErrTokenRevoked", err)
	}

	// Revocation frees the device slots.
	for i := 1; i <= 2; i++ {
		if _, err := service.Issue(ctx, user); err != nil {
			t.Errorf("Issue %d after revoke failed: %v", i, err)
		}
	}
}
