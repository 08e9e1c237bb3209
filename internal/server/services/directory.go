package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/dmitrijs2005/calauth/internal/dbx"
	"github.com/dmitrijs2005/calauth/internal/logging"
	"github.com/dmitrijs2005/calauth/internal/server/credentials"
	"github.com/dmitrijs2005/calauth/internal/server/models"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/calauth/internal/validate"
)

// DemoPassword is the password given to every seeded demo account.
const DemoPassword = "Demo123!"

// DemoEmails are the accounts created by SeedDemo.
var DemoEmails = []string{
	"kacper@example.com",
	"filip@example.com",
	"kuba@example.com",
	"krystian@example.com",
	"wiktor@example.com",
}

// Directory is the user lookup and provisioning service.
type Directory struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *credentials.Hasher
	logger      logging.Logger
}

func NewDirectory(db *sql.DB, m repomanager.RepositoryManager, hasher *credentials.Hasher, logger logging.Logger) *Directory {
	return &Directory{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		logger:      logger.With("module", "directory"),
	}
}

// CreateUser provisions an active account with an argon2id password and the
// given roles. A taken email is reported as common.ErrorAlreadyExists.
func (d *Directory) CreateUser(ctx context.Context, email, password string, verified bool, roles ...string) (*models.User, error) {
	email = validate.NormalizeEmail(email)
	if !validate.Email(email) || !validate.Password(password) {
		return nil, common.ErrValidation
	}

	digest, tag, err := d.hasher.Hash(password)
	if err != nil {
		d.logger.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrorInternal
	}

	user := &models.User{
		Email:             email,
		PasswordHash:      digest,
		PasswordAlgorithm: tag,
		IsActive:          true,
		IsEmailVerified:   verified,
	}

	err = dbx.WithTx(ctx, d.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := d.repomanager.Users(tx)
		if _, err := repo.Create(ctx, user); err != nil {
			return err
		}
		for _, role := range roles {
			if err := repo.AssignRole(ctx, user.ID, role); err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return &missingRoleError{role: role}
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		var roleErr *missingRoleError
		if errors.As(err, &roleErr) {
			return nil, unknownRole(roleErr.role)
		}
		return nil, storageErr(ctx, d.logger, "create user", err)
	}

	user.Roles = append([]string(nil), roles...)
	d.logger.Info(ctx, "user created", "user_id", user.ID)
	return user, nil
}

// FindActiveByEmail returns the non-deleted user with email, with roles.
func (d *Directory) FindActiveByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := d.repomanager.Users(d.db).FindActiveByEmail(ctx, validate.NormalizeEmail(email))
	return d.withRoles(ctx, user, err)
}

// FindByID returns the non-deleted user with id, with roles.
func (d *Directory) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, err := d.repomanager.Users(d.db).FindByID(ctx, id)
	return d.withRoles(ctx, user, err)
}

func (d *Directory) withRoles(ctx context.Context, user *models.User, err error) (*models.User, error) {
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, storageErr(ctx, d.logger, "find user", err)
	}
	roles, err := d.repomanager.Users(d.db).Roles(ctx, user.ID)
	if err != nil {
		return nil, storageErr(ctx, d.logger, "load roles", err)
	}
	user.Roles = roles
	return user, nil
}

// AssignRole grants role to the user. An unknown role name is a validation
// failure.
func (d *Directory) AssignRole(ctx context.Context, userID, role string) error {
	if err := d.repomanager.Users(d.db).AssignRole(ctx, userID, role); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return unknownRole(role)
		}
		return storageErr(ctx, d.logger, "assign role", err)
	}
	return nil
}

func unknownRole(role string) error {
	return fmt.Errorf("%w: unknown role %q", common.ErrValidation, role)
}

// SeedDemo creates the demo accounts as verified admins. Accounts that
// already exist are left alone, so it can run repeatedly.
func (d *Directory) SeedDemo(ctx context.Context) ([]*models.User, error) {
	var created []*models.User
	for _, email := range DemoEmails {
		u, err := d.CreateUser(ctx, email, DemoPassword, true, common.RoleAdmin)
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				d.logger.Info(ctx, "demo user exists", "email", email)
				continue
			}
			return created, err
		}
		created = append(created, u)
	}
	return created, nil
}

// missingRoleError aborts the CreateUser transaction on an unknown role.
type missingRoleError struct {
	role string
}

func (e *missingRoleError) Error() string {
	return fmt.Sprintf("role %q not found", e.role)
}
