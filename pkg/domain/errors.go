package domain

import "errors"

// Authentication errors
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountSuspended     = errors.New("account suspended")
	ErrAccountLockedOut     = errors.New("too many login attempts")
	ErrTooManyActiveDevices = errors.New("too many active devices")
)

// Session and token errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrTokenNotFound   = errors.New("token not found")
	ErrTokenRevoked    = errors.New("token revoked")
	ErrInvalidToken    = errors.New("invalid token")
)
