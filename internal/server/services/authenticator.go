package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/dmitrijs2005/calauth/internal/logging"
	"github.com/dmitrijs2005/calauth/internal/server/credentials"
	"github.com/dmitrijs2005/calauth/internal/server/models"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/calauth/internal/validate"
)

type Authenticator struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *credentials.Hasher
	logger      logging.Logger
	now         clock

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthenticator(db *sql.DB, m repomanager.RepositoryManager, hasher *credentials.Hasher, logger logging.Logger) *Authenticator {
	return &Authenticator{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		logger:      logger.With("module", "authenticator"),
		now:         time.Now,
	}
}

// Authenticate returns the user owning email if password matches and the
// account is active. Unknown email, inactive account and wrong password all
// yield common.ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string, client models.ClientInfo) (*models.User, error) {
	email = validate.NormalizeEmail(email)
	if email == "" || password == "" {
		a.audit(ctx, nil, email, client, models.LoginFailureMissingInput)
		return nil, common.ErrInvalidCredentials
	}

	user, err := a.repomanager.Users(a.db).FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn comparable time so response latency does not reveal
			// whether the address is registered
			a.hasher.Verify(a.dummy(), credentials.TagArgon2id, password)
			a.audit(ctx, nil, email, client, models.LoginFailureUnknownEmail)
			return nil, common.ErrInvalidCredentials
		}
		a.audit(ctx, nil, email, client, models.LoginFailureLookupError)
		return nil, storageErr(ctx, a.logger, "find user by email", err)
	}

	if !user.IsActive {
		a.audit(ctx, &user.ID, email, client, models.LoginFailureInactive)
		return nil, common.ErrInvalidCredentials
	}

	if !a.hasher.Verify(user.PasswordHash, user.PasswordAlgorithm, password) {
		a.audit(ctx, &user.ID, email, client, models.LoginFailureBadPassword)
		return nil, common.ErrInvalidCredentials
	}

	now := a.now()
	if err := a.repomanager.Users(a.db).UpdateLastLogin(ctx, user.ID, now); err != nil {
		a.logger.Warn(ctx, "last login update failed", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = &now
	}

	if a.hasher.NeedsRehash(user.PasswordAlgorithm) {
		a.upgradeHash(ctx, user, password)
	}

	a.audit(ctx, &user.ID, email, client, "")
	return user, nil
}

// upgradeHash replaces a legacy digest with argon2id once the plaintext is
// known to be correct. Best effort.
func (a *Authenticator) upgradeHash(ctx context.Context, user *models.User, password string) {
	digest, tag, err := a.hasher.Hash(password)
	if err != nil {
		a.logger.Warn(ctx, "rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := a.repomanager.Users(a.db).UpdatePassword(ctx, user.ID, digest, tag); err != nil {
		a.logger.Warn(ctx, "rehash not persisted", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash, user.PasswordAlgorithm = digest, tag
	a.logger.Info(ctx, "password hash upgraded", "user_id", user.ID, "algorithm", tag)
}

func (a *Authenticator) dummy() string {
	a.dummyOnce.Do(func() {
		d, _, err := a.hasher.Hash("calauth-timing-equalizer")
		if err == nil {
			a.dummyDigest = d
		}
	})
	return a.dummyDigest
}

func (a *Authenticator) audit(ctx context.Context, userID *string, email string, client models.ClientInfo, reason string) {
	attempt := &models.LoginAttempt{
		UserID:        userID,
		Email:         email,
		Client:        client,
		Successful:    reason == "",
		FailureReason: reason,
		CreatedAt:     a.now(),
	}
	if err := a.repomanager.LoginAttempts(a.db).Create(ctx, attempt); err != nil {
		a.logger.Warn(ctx, "login attempt not recorded", "error", err)
	}
}
