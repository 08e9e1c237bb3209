// Package sessions stores refresh-token sessions.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/calauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	Find(ctx context.Context, id string) (*models.Session, error)

	// Revoke sets revoked_at only if the session is still unrevoked and
	// reports whether this call performed the transition.
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)

	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
}
