package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"loginguard/pkg/domain"
)

// TokensRepository handles API token persistence. Rows are keyed by the
// JWT jti claim so bearer tokens can be counted and revoked server-side.
type TokensRepository struct {
	db *sql.DB
}

// NewTokensRepository creates a new tokens repository.
func NewTokensRepository(db *sql.DB) *TokensRepository {
	return &TokensRepository{db: db}
}

// Create creates a new token record.
func (r *TokensRepository) Create(ctx context.Context, token *domain.APIToken) error {
	query := `
		INSERT INTO api_tokens (id, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.CreatedAt, token.ExpiresAt,
	)
	return err
}

// GetByID retrieves a token record by ID (jti).
func (r *TokensRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.APIToken, error) {
	query := `
		SELECT id, user_id, created_at, expires_at, revoked_at
		FROM api_tokens
		WHERE id = $1
	`
	token := &domain.APIToken{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&token.ID, &token.UserID, &token.CreatedAt, &token.ExpiresAt, &token.RevokedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// CountLiveByUserID counts tokens that are neither revoked nor expired.
func (r *TokensRepository) CountLiveByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM api_tokens
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&count)
	return count, err
}

// RevokeAllByUserID revokes all live tokens for a user.
func (r *TokensRepository) RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE api_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

// DeleteExpired deletes token rows expired or revoked longer ago than olderThan.
func (r *TokensRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM api_tokens
		WHERE expires_at < $1 OR (revoked_at IS NOT NULL AND revoked_at < $1)
	`
	cutoff := time.Now().Add(-olderThan)
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
