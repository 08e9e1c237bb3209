// Package authz resolves who is calling and decides what they may do.
//
// The transport resolves an Identity once per request from the verified
// access token and stores it in the request context. Handlers then evaluate
// a Chain of rules against that identity and the target resource.
//
// The AuthService uses RequireActive and OwnerOrRole. VerifiedEmail,
// HasAllRoles, HasAnyRole and OwnerOrParticipant complete the rule set for
// resources with several participants or role-gated routes; they are
// composed the same way by handlers that need them.
package authz

import (
	"context"
	"slices"
)

type Identity struct {
	UserID        string
	SessionID     string
	Email         string
	Roles         []string
	Active        bool
	EmailVerified bool
}

func (i *Identity) HasRole(role string) bool {
	return i != nil && slices.Contains(i.Roles, role)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
