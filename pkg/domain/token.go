package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIToken is the stored record behind a bearer token. The ID doubles as
// the JWT "jti" claim so tokens can be counted and revoked server-side.
type APIToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// IsLive reports whether the token still counts against the device limit.
func (t *APIToken) IsLive() bool {
	if t.RevokedAt != nil {
		return false
	}
	return time.Now().Before(t.ExpiresAt)
}
