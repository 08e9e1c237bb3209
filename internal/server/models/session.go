package models

import "time"

// ClientInfo describes the device a request comes from. It is recorded on
// sessions and in the login audit trail.
type ClientInfo struct {
	DeviceName string
	IPAddress  string
	UserAgent  string
}

// Session tracks one issued refresh token. ID equals the refresh token's
// jti claim. Rows are never deleted by the application; a rotation revokes
// the predecessor and inserts the successor.
type Session struct {
	ID         string
	UserID     string
	Client     ClientInfo
	CreatedAt  time.Time
	LastSeenAt *time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// IsRevoked reports whether the session reached the terminal REVOKED state.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsExpired reports whether now is at or past the session expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsActive reports whether the session can still be used at now.
func (s *Session) IsActive(now time.Time) bool {
	return !s.IsRevoked() && !s.IsExpired(now)
}
