// Package validate holds the stateless input predicates used before any
// credential or token work is attempted.
package validate

import (
	"net/mail"
	"strings"
	"unicode"
)

const (
	MaxEmailLength    = 320
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// NormalizeEmail trims surrounding space and lowercases the address, matching
// the lowercase constraint on users.email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Email reports whether email is a bare addr-spec with a dotted domain.
func Email(email string) bool {
	if email == "" || len(email) > MaxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}

// Password reports whether password satisfies the strength policy: length
// bounds plus at least one letter and one digit.
func Password(password string) bool {
	n := len([]rune(password))
	if n < MinPasswordLength || n > MaxPasswordLength {
		return false
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}
