package models

import "time"

// Failure reasons recorded in the login audit trail. They never reach the
// caller, who only ever sees invalid credentials.
const (
	LoginFailureMissingInput = "missing_input"
	LoginFailureUnknownEmail = "unknown_email"
	LoginFailureInactive     = "account_inactive"
	LoginFailureBadPassword  = "invalid_password"
	LoginFailureLookupError  = "lookup_error"
)

// LoginAttempt is one row of the authentication audit trail.
type LoginAttempt struct {
	ID            int64
	UserID        *string
	Email         string
	Client        ClientInfo
	Successful    bool
	FailureReason string
	CreatedAt     time.Time
}
