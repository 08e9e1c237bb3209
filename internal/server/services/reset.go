package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/dmitrijs2005/calauth/internal/cryptox"
	"github.com/dmitrijs2005/calauth/internal/dbx"
	"github.com/dmitrijs2005/calauth/internal/logging"
	"github.com/dmitrijs2005/calauth/internal/server/credentials"
	"github.com/dmitrijs2005/calauth/internal/server/models"
	"github.com/dmitrijs2005/calauth/internal/server/notify"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/calauth/internal/validate"
)

// PasswordResetManager issues and consumes single-use reset tokens. Only the
// SHA-256 of a secret is stored; the raw secret exists in the mailed link.
type PasswordResetManager struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *credentials.Hasher
	notifier    notify.Notifier
	ttl         time.Duration
	linkBase    string
	logger      logging.Logger
	now         clock
	newID       idSource
	newSecret   func() (string, error)
}

func NewPasswordResetManager(db *sql.DB, m repomanager.RepositoryManager, hasher *credentials.Hasher,
	notifier notify.Notifier, ttl time.Duration, linkBase string, logger logging.Logger) *PasswordResetManager {
	return &PasswordResetManager{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		notifier:    notifier,
		ttl:         ttl,
		linkBase:    linkBase,
		logger:      logger.With("module", "password_reset"),
		now:         time.Now,
		newID:       newID,
		newSecret:   cryptox.NewSecret,
	}
}

// Request issues a reset token for email and sends the link. Earlier unused
// tokens of the same user are invalidated in the same transaction.
//
// An unknown or deactivated address yields common.ErrAccountNotFound; the
// transport is expected to answer that exactly like success. If delivery
// fails the token is already committed: the link is returned together with
// an error wrapping common.ErrDelivery.
func (r *PasswordResetManager) Request(ctx context.Context, email string, client models.ClientInfo) (string, error) {
	email = validate.NormalizeEmail(email)
	if !validate.Email(email) {
		return "", common.ErrValidation
	}

	user, err := r.repomanager.Users(r.db).FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			r.logger.Info(ctx, "reset requested for unknown email", "ip", client.IPAddress)
			return "", common.ErrAccountNotFound
		}
		return "", storageErr(ctx, r.logger, "find user by email", err)
	}
	if !user.IsActive {
		r.logger.Info(ctx, "reset requested for inactive account", "user_id", user.ID)
		return "", common.ErrAccountNotFound
	}

	secret, err := r.newSecret()
	if err != nil {
		r.logger.Error(ctx, "secret generation failed", "error", err)
		return "", common.ErrorInternal
	}

	now := r.now()
	token := &models.ResetToken{
		ID:        r.newID(),
		UserID:    user.ID,
		TokenHash: cryptox.HashSecret(secret),
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := r.repomanager.ResetTokens(tx)
		n, err := repo.InvalidateOutstanding(ctx, user.ID, now)
		if err != nil {
			return err
		}
		if n > 0 {
			r.logger.Info(ctx, "superseded outstanding reset tokens", "user_id", user.ID, "count", n)
		}
		return repo.Create(ctx, token)
	})
	if err != nil {
		return "", storageErr(ctx, r.logger, "create reset token", err)
	}

	link := r.linkBase + "?token=" + url.QueryEscape(secret)

	if err := r.notifier.SendResetLink(ctx, user.Email, link); err != nil {
		r.logger.Error(ctx, "reset link delivery failed", "user_id", user.ID, "token_id", token.ID, "error", err)
		return link, fmt.Errorf("%w: %w", common.ErrDelivery, err)
	}

	r.logger.Info(ctx, "reset token issued", "user_id", user.ID, "token_id", token.ID, "ip", client.IPAddress)
	return link, nil
}

// Consume spends a reset secret and sets a new password. Marking the token
// used and replacing the hash commit together or not at all.
func (r *PasswordResetManager) Consume(ctx context.Context, secret, newPassword string) (*models.User, error) {
	if secret == "" || !validate.Password(newPassword) {
		return nil, common.ErrValidation
	}

	token, err := r.repomanager.ResetTokens(r.db).FindByHash(ctx, cryptox.HashSecret(secret))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, storageErr(ctx, r.logger, "find reset token", err)
	}

	now := r.now()
	if token.IsUsed() {
		r.logger.Warn(ctx, "reset token replayed", "token_id", token.ID, "user_id", token.UserID)
		return nil, common.ErrTokenAlreadyUsed
	}
	if token.IsExpired(now) {
		return nil, common.ErrTokenExpired
	}

	digest, tag, err := r.hasher.Hash(newPassword)
	if err != nil {
		r.logger.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrorInternal
	}

	var user *models.User
	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		won, err := r.repomanager.ResetTokens(tx).MarkUsed(ctx, token.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return common.ErrTokenAlreadyUsed
		}

		users := r.repomanager.Users(tx)
		if err := users.UpdatePassword(ctx, token.UserID, digest, tag); err != nil {
			return err
		}
		user, err = users.FindByID(ctx, token.UserID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrTokenAlreadyUsed) {
			return nil, common.ErrTokenAlreadyUsed
		}
		return nil, storageErr(ctx, r.logger, "consume reset token", err)
	}

	r.logger.Info(ctx, "password reset", "user_id", user.ID, "token_id", token.ID)
	return user, nil
}
