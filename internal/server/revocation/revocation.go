// Package revocation keeps a short-lived denylist of revoked session ids.
// Access tokens are stateless, so once a session is revoked or rotated its id
// stays listed for as long as an access token minted under it can live.
package revocation

import (
	"context"
	"time"
)

type Cache interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Nop never lists anything. Used when no Redis address is configured.
type Nop struct{}

func (Nop) Revoke(context.Context, string, time.Duration) error { return nil }

func (Nop) IsRevoked(context.Context, string) (bool, error) { return false, nil }
