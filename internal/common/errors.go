// Package common defines shared constants and sentinel errors used across
// the calauth server components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenKind    = errors.New("unexpected token kind")

	// Authentication outcome. Every cause collapses into this one value.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Session lifecycle errors.
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRevoked  = errors.New("session revoked")
	ErrSessionExpired  = errors.New("session expired")

	// Password reset token lifecycle errors.
	ErrTokenNotFound    = errors.New("reset token not found")
	ErrTokenAlreadyUsed = errors.New("reset token already used")
	ErrTokenExpired     = errors.New("reset token expired")
	ErrAccountNotFound  = errors.New("no account registered for this email")

	// Input, storage and delivery failures.
	ErrValidation = errors.New("validation failure")
	ErrStorage    = errors.New("storage failure")
	ErrDelivery   = errors.New("delivery failure")
)
