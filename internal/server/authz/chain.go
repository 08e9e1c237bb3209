package authz

import (
	"fmt"
	"slices"

	"github.com/dmitrijs2005/calauth/internal/common"
)

type Reason string

const (
	ReasonAuthenticationRequired Reason = "authentication_required"
	ReasonAccountInactive        Reason = "account_inactive"
	ReasonEmailNotVerified       Reason = "email_not_verified"
	ReasonInsufficientPerms      Reason = "insufficient_permissions"
	ReasonAccessDenied           Reason = "access_denied"
)

var reasonMessages = map[Reason]string{
	ReasonAuthenticationRequired: "Valid access token is required",
	ReasonAccountInactive:        "Your account has been deactivated",
	ReasonEmailNotVerified:       "Please verify your email address to access this resource",
	ReasonInsufficientPerms:      "You do not have required permissions to access this resource",
	ReasonAccessDenied:           "You can only access your own resources",
}

func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return string(r)
}

type Decision struct {
	Allowed bool
	Reason  Reason
}

var Allow = Decision{Allowed: true}

func Deny(r Reason) Decision {
	return Decision{Reason: r}
}

// DeniedError is returned by Decision.Err for a deny.
type DeniedError struct {
	Reason Reason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Reason)
}

func (e *DeniedError) Unwrap() error {
	return common.ErrorUnauthorized
}

func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Reason: d.Reason}
}

// Resource is the target of an access check. Zero value means the request
// is not about a particular owned object.
type Resource struct {
	OwnerID      string
	Participants []string
}

// Rule inspects the identity (nil when unauthenticated) and the resource.
type Rule func(id *Identity, res Resource) Decision

// Chain is an ordered list of rules. The first deny wins.
type Chain []Rule

func NewChain(rules ...Rule) Chain {
	return Chain(rules)
}

// Then returns a new chain with rules appended; c is left untouched.
func (c Chain) Then(rules ...Rule) Chain {
	out := make(Chain, 0, len(c)+len(rules))
	out = append(out, c...)
	return append(out, rules...)
}

func (c Chain) Evaluate(id *Identity, res Resource) Decision {
	for _, rule := range c {
		if d := rule(id, res); !d.Allowed {
			return d
		}
	}
	return Allow
}

// Authenticated requires a resolved identity.
func Authenticated(id *Identity, _ Resource) Decision {
	if id == nil || id.UserID == "" {
		return Deny(ReasonAuthenticationRequired)
	}
	return Allow
}

func ActiveUser(id *Identity, _ Resource) Decision {
	if id == nil || !id.Active {
		return Deny(ReasonAccountInactive)
	}
	return Allow
}

func VerifiedEmail(id *Identity, _ Resource) Decision {
	if id == nil || !id.EmailVerified {
		return Deny(ReasonEmailNotVerified)
	}
	return Allow
}

func HasAllRoles(roles ...string) Rule {
	return func(id *Identity, _ Resource) Decision {
		for _, r := range roles {
			if !id.HasRole(r) {
				return Deny(ReasonInsufficientPerms)
			}
		}
		return Allow
	}
}

func HasAnyRole(roles ...string) Rule {
	return func(id *Identity, _ Resource) Decision {
		if slices.ContainsFunc(roles, id.HasRole) {
			return Allow
		}
		return Deny(ReasonInsufficientPerms)
	}
}

// OwnerOrRole allows the resource owner, or anyone holding one of roles.
// With no roles given it falls back to admin.
func OwnerOrRole(roles ...string) Rule {
	if len(roles) == 0 {
		roles = []string{common.RoleAdmin}
	}
	return func(id *Identity, res Resource) Decision {
		if id != nil && id.UserID != "" && id.UserID == res.OwnerID {
			return Allow
		}
		if slices.ContainsFunc(roles, id.HasRole) {
			return Allow
		}
		return Deny(ReasonAccessDenied)
	}
}

// OwnerOrParticipant allows the owner and anyone listed as a participant.
func OwnerOrParticipant(id *Identity, res Resource) Decision {
	if id == nil || id.UserID == "" {
		return Deny(ReasonAccessDenied)
	}
	if id.UserID == res.OwnerID || slices.Contains(res.Participants, id.UserID) {
		return Allow
	}
	return Deny(ReasonAccessDenied)
}

// Predefined chains mirroring the usual gate order.
var (
	RequireAuthenticated = NewChain(Authenticated)
	RequireActive        = RequireAuthenticated.Then(ActiveUser)
	RequireVerified      = RequireActive.Then(VerifiedEmail)
)
