package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"loginguard/pkg/domain"
)

// UsersRepository handles user persistence. It is the sole writer of the
// suspended and too_many_attempts flags; callers request conditional
// updates through its methods and never mutate shared state directly.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create creates a new user.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, suspended, too_many_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Suspended, user.TooManyAttempts,
		user.CreatedAt, user.UpdatedAt,
	)
	return err
}

// GetByEmail retrieves a user by email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, suspended, too_many_attempts, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Suspended, &user.TooManyAttempts,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetTooManyAttempts flags the account as having exceeded its allowed
// attempts. Writing true when the flag is already true is a no-op, so
// duplicate lockout notifications are harmless.
func (r *UsersRepository) SetTooManyAttempts(ctx context.Context, email string) error {
	query := `
		UPDATE users
		SET too_many_attempts = TRUE, updated_at = NOW()
		WHERE email = $1
	`
	_, err := r.db.ExecContext(ctx, query, email)
	return err
}

// ClearTooManyAttempts clears the flag after a successful login. The WHERE
// clause keeps the update conditional so concurrent requests cannot race
// the failure path into an extra write.
func (r *UsersRepository) ClearTooManyAttempts(ctx context.Context, email string) error {
	query := `
		UPDATE users
		SET too_many_attempts = FALSE, updated_at = NOW()
		WHERE email = $1 AND too_many_attempts = TRUE
	`
	_, err := r.db.ExecContext(ctx, query, email)
	return err
}

// SuspendIfFlagged transitions the account to suspended when the
// too_many_attempts flag has already landed, and reports whether a row
// actually transitioned. Suspension is monotonic: nothing here clears it.
func (r *UsersRepository) SuspendIfFlagged(ctx context.Context, email string) (bool, error) {
	query := `
		UPDATE users
		SET suspended = TRUE, updated_at = NOW()
		WHERE email = $1 AND too_many_attempts = TRUE AND suspended = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, email)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Unsuspend lifts a suspension and clears the attempt flag. This is the
// admin escape hatch; the login path never calls it.
func (r *UsersRepository) Unsuspend(ctx context.Context, email string) error {
	query := `
		UPDATE users
		SET suspended = FALSE, too_many_attempts = FALSE, updated_at = NOW()
		WHERE email = $1 AND suspended = TRUE
	`
	result, err := r.db.ExecContext(ctx, query, email)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdatePasswordHash replaces the stored credential material.
func (r *UsersRepository) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = $3
		WHERE email = $1
	`
	result, err := r.db.ExecContext(ctx, query, email, hash, time.Now())
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
