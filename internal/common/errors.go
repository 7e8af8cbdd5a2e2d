// Package common defines shared constants and sentinel errors used across
// the layers of authkeeper. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound       = errors.New("not found")
	ErrDuplicateUser    = errors.New("user already exists")
	ErrAlreadyRevoked   = errors.New("credential already revoked")
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// Service-level errors (generic flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Token validation errors. Logged for audit, but collapsed to
	// ErrorUnauthorized at the outward boundary so callers learn nothing
	// about why a token was refused.
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenMismatch    = errors.New("token mismatch")

	// Sign-in errors.
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Password reset error. Never reveals whether the cause was expiry,
	// forgery, or a nonexistent user.
	ErrResetTokenInvalid = errors.New("invalid reset token")
)
