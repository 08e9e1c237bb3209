// Package users declares the user directory repository and its PostgreSQL
// implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/calauth/internal/server/models"
)

// Repository is the persistent user directory. Lookups never return
// soft-deleted users; a miss is reported as common.ErrorNotFound.
type Repository interface {
	// Create inserts user and fills in the generated ID and timestamps.
	// A duplicate email yields an error wrapping common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// FindActiveByEmail looks a user up by normalized email.
	FindActiveByEmail(ctx context.Context, email string) (*models.User, error)

	// FindByID looks a user up by primary key.
	FindByID(ctx context.Context, id string) (*models.User, error)

	// UpdateLastLogin stamps the last successful login time.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// UpdatePassword replaces the stored hash and its algorithm tag.
	UpdatePassword(ctx context.Context, id string, hash string, algorithm string) error

	// Roles lists the role names granted to the user.
	Roles(ctx context.Context, id string) ([]string, error)

	// AssignRole grants an existing role; granting it twice is a no-op. An
	// unknown role name yields common.ErrorNotFound.
	AssignRole(ctx context.Context, id string, role string) error
}
