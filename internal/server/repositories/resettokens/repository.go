// Package resettokens stores hashed password reset tokens.
package resettokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/calauth/internal/server/models"
)

type Repository interface {
	// Create persists a token. A colliding hash yields an error wrapping
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, t *models.ResetToken) error

	FindByHash(ctx context.Context, hash string) (*models.ResetToken, error)

	// MarkUsed sets used_at only if the token is still unused and reports
	// whether this call performed the transition.
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)

	// InvalidateOutstanding marks every unused token of the user as used.
	InvalidateOutstanding(ctx context.Context, userID string, at time.Time) (int64, error)
}
