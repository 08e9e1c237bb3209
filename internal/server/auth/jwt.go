// Package auth mints and parses the signed access and refresh tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims carries the standard claims plus the user id, the session id and
// the token kind. For refresh tokens the session id is also the jti.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"uid"`
	SessionID string    `json:"sid"`
	Kind      TokenKind `json:"typ"`
}

type Issuer struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func NewIssuer(secret []byte, accessTTL time.Duration) *Issuer {
	return &Issuer{secret: secret, accessTTL: accessTTL, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// AccessToken mints a short-lived token bound to the session it was issued
// under, so revoking the session can also reject it.
func (i *Issuer) AccessToken(userID, sessionID string) (string, error) {
	now := i.now()
	return i.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
		UserID:    userID,
		SessionID: sessionID,
		Kind:      KindAccess,
	})
}

// RefreshToken mints the long-lived token for a session. It expires together
// with the session row.
func (i *Issuer) RefreshToken(userID, sessionID string, expiresAt time.Time) (string, error) {
	return i.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:    userID,
		SessionID: sessionID,
		Kind:      KindRefresh,
	})
}

func (i *Issuer) sign(c Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", err
	}
	return s, nil
}

// Parse verifies signature and expiry and checks the token is of the wanted
// kind. Every failure wraps common.ErrInvalidToken.
func (i *Issuer) Parse(tokenString string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" || claims.SessionID == "" {
		return nil, common.ErrInvalidToken
	}

	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenKind)
	}

	return claims, nil
}

// IsExpired reports whether err came from an expired but otherwise valid token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
