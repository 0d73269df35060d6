package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents the account record held by the credential store.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string

	// Suspended blocks all logins until cleared by an admin. Nothing in
	// this service ever clears it.
	Suspended bool

	// TooManyAttempts is set asynchronously when a lockout event fires
	// and cleared on the next successful login.
	TooManyAttempts bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
