// Package loginattempts persists the authentication audit trail.
package loginattempts

import (
	"context"

	"github.com/dmitrijs2005/calauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, a *models.LoginAttempt) error
}
