// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account record. Email is stored trimmed and lowercased and is
// unique among users that are not soft-deleted.
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	PasswordAlgorithm string
	IsActive          bool
	IsEmailVerified   bool
	Roles             []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastLoginAt       *time.Time
	DeletedAt         *time.Time
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
