package models

import "time"

// ResetToken is a single-use password reset grant. Only the SHA-256 hash of
// the secret mailed to the user is stored.
type ResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// IsUsed reports whether the token was consumed (or superseded).
func (t *ResetToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsExpired reports whether now is at or past the token expiry.
func (t *ResetToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
