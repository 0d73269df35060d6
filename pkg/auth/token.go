package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"loginguard/pkg/domain"
)

const (
	// DefaultTokenTTL is how long an API token stays valid.
	DefaultTokenTTL = 30 * 24 * time.Hour

	// DefaultMaxActiveTokens caps concurrently live API tokens per
	// account. The limit is policy: a third device is rejected, not
	// quietly rotated in.
	DefaultMaxActiveTokens = 2
)

// TokenStore is the persistence the token issuer needs.
type TokenStore interface {
	Create(ctx context.Context, token *domain.APIToken) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.APIToken, error)
	CountLiveByUserID(ctx context.Context, userID uuid.UUID) (int, error)
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error
}

// TokenConfig holds token issuer configuration.
type TokenConfig struct {
	JWTSecret       []byte
	Issuer          string
	TokenTTL        time.Duration
	MaxActiveTokens int
}

// TokenService issues and validates bearer API tokens. Tokens are JWTs
// whose jti is a stored row, so issuance can enforce the device limit
// and logout can revoke server-side.
type TokenService struct {
	config TokenConfig
	tokens TokenStore
}

// NewTokenService creates a new token service.
func NewTokenService(config TokenConfig, tokens TokenStore) *TokenService {
	if config.TokenTTL == 0 {
		config.TokenTTL = DefaultTokenTTL
	}
	if config.MaxActiveTokens == 0 {
		config.MaxActiveTokens = DefaultMaxActiveTokens
	}
	return &TokenService{config: config, tokens: tokens}
}

// TokenClaims represents the claims in an API token.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Issue creates a bearer token for the user. An account already holding
// the maximum number of live tokens gets ErrTooManyActiveDevices; the
// check runs before anything is stored.
func (s *TokenService) Issue(ctx context.Context, user *domain.User) (string, error) {
	count, err := s.tokens.CountLiveByUserID(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if count >= s.config.MaxActiveTokens {
		return "", domain.ErrTooManyActiveDevices
	}

	now := time.Now()
	record := &domain.APIToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.TokenTTL),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return "", err
	}

	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
			Issuer:    s.config.Issuer,
			ID:        record.ID.String(),
		},
		Email: user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.config.JWTSecret)
}

// Validate verifies a bearer token's signature and checks that its
// stored record is still live, returning the owning user ID.
func (s *TokenService) Validate(ctx context.Context, tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.config.JWTSecret, nil
	})
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return uuid.Nil, domain.ErrInvalidToken
	}

	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}

	record, err := s.tokens.GetByID(ctx, jti)
	if err != nil {
		return uuid.Nil, err
	}
	if !record.IsLive() {
		return uuid.Nil, domain.ErrTokenRevoked
	}

	return record.UserID, nil
}

// RevokeAll revokes every live token for the user (API logout).
func (s *TokenService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.tokens.RevokeAllByUserID(ctx, userID)
}
