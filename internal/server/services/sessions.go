package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/dmitrijs2005/calauth/internal/dbx"
	"github.com/dmitrijs2005/calauth/internal/logging"
	"github.com/dmitrijs2005/calauth/internal/server/auth"
	"github.com/dmitrijs2005/calauth/internal/server/models"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/calauth/internal/server/revocation"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and the refresh token of the
// session it was issued under.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	RefreshExpiresAt time.Time
}

// SessionManager issues, rotates and revokes sessions. A session is usable
// while revoked_at is unset and now is before expires_at; both revoked and
// expired are terminal.
type SessionManager struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	refreshTTL  time.Duration
	revoked     revocation.Cache
	logger      logging.Logger
	now         clock
	newID       idSource
}

func NewSessionManager(db *sql.DB, m repomanager.RepositoryManager, issuer *auth.Issuer, refreshTTL time.Duration,
	revoked revocation.Cache, logger logging.Logger) *SessionManager {
	return &SessionManager{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		refreshTTL:  refreshTTL,
		revoked:     revoked,
		logger:      logger.With("module", "sessions"),
		now:         time.Now,
		newID:       newID,
	}
}

func (s *SessionManager) newSession(userID string, client models.ClientInfo) *models.Session {
	now := s.now()
	return &models.Session{
		ID:         s.newID(),
		UserID:     userID,
		Client:     client,
		CreatedAt:  now,
		LastSeenAt: &now,
		ExpiresAt:  now.Add(s.refreshTTL),
	}
}

func (s *SessionManager) mint(sess *models.Session) (*TokenPair, error) {
	access, err := s.issuer.AccessToken(sess.UserID, sess.ID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.RefreshToken(sess.UserID, sess.ID, sess.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		SessionID:        sess.ID,
		RefreshExpiresAt: sess.ExpiresAt,
	}, nil
}

// Issue opens a new session for userID and returns its token pair. The
// session row is persisted before the pair is returned.
func (s *SessionManager) Issue(ctx context.Context, userID string, client models.ClientInfo) (*TokenPair, error) {
	sess := s.newSession(userID, client)

	pair, err := s.mint(sess)
	if err != nil {
		s.logger.Error(ctx, "token signing failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := s.repomanager.Sessions(s.db).Create(ctx, sess); err != nil {
		return nil, storageErr(ctx, s.logger, "create session", err)
	}

	s.logger.Info(ctx, "session issued", "user_id", userID, "session_id", sess.ID)
	return pair, nil
}

// Rotate exchanges session sessionID for a fresh one. The old session is
// revoked and the new one created in a single transaction; the revoke is a
// compare-and-set on revoked_at, so of two concurrent rotations exactly one
// succeeds and the other sees common.ErrSessionRevoked.
//
// userID, when set, must own the session. Device metadata is carried over,
// with address and user agent refreshed from client when present.
func (s *SessionManager) Rotate(ctx context.Context, sessionID, userID string, client models.ClientInfo) (*TokenPair, error) {
	if !validSessionID(sessionID) {
		return nil, common.ErrSessionNotFound
	}

	old, err := s.repomanager.Sessions(s.db).Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionNotFound
		}
		return nil, storageErr(ctx, s.logger, "find session", err)
	}

	if userID != "" && old.UserID != userID {
		return nil, common.ErrSessionNotFound
	}
	if old.IsRevoked() {
		s.logger.Warn(ctx, "revoked session presented for rotation", "user_id", old.UserID, "session_id", old.ID)
		return nil, common.ErrSessionRevoked
	}
	if old.IsExpired(s.now()) {
		return nil, common.ErrSessionExpired
	}

	next := s.newSession(old.UserID, carryClient(old.Client, client))

	pair, err := s.mint(next)
	if err != nil {
		s.logger.Error(ctx, "token signing failed", "error", err)
		return nil, common.ErrorInternal
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Sessions(tx)

		won, err := repo.Revoke(ctx, old.ID, next.CreatedAt)
		if err != nil {
			return err
		}
		if !won {
			return common.ErrSessionRevoked
		}

		return repo.Create(ctx, next)
	})
	if err != nil {
		if errors.Is(err, common.ErrSessionRevoked) {
			s.logger.Warn(ctx, "lost rotation race", "user_id", old.UserID, "session_id", old.ID)
			return nil, common.ErrSessionRevoked
		}
		return nil, storageErr(ctx, s.logger, "rotate session", err)
	}

	s.denylist(ctx, old.ID)
	s.logger.Info(ctx, "session rotated", "user_id", old.UserID, "old_session_id", old.ID, "session_id", next.ID)
	return pair, nil
}

// Revoke ends a session. Revoking an unknown or already revoked session is
// a no-op.
func (s *SessionManager) Revoke(ctx context.Context, sessionID string) error {
	if !validSessionID(sessionID) {
		return nil
	}

	won, err := s.repomanager.Sessions(s.db).Revoke(ctx, sessionID, s.now())
	if err != nil {
		return storageErr(ctx, s.logger, "revoke session", err)
	}
	if won {
		s.denylist(ctx, sessionID)
		s.logger.Info(ctx, "session revoked", "session_id", sessionID)
	}
	return nil
}

// Get returns a session regardless of its state.
func (s *SessionManager) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	if !validSessionID(sessionID) {
		return nil, common.ErrSessionNotFound
	}

	sess, err := s.repomanager.Sessions(s.db).Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionNotFound
		}
		return nil, storageErr(ctx, s.logger, "find session", err)
	}
	return sess, nil
}

// Touch records activity on a session. Failures are logged and swallowed.
func (s *SessionManager) Touch(ctx context.Context, sessionID string) {
	if !validSessionID(sessionID) {
		return
	}
	if err := s.repomanager.Sessions(s.db).Touch(ctx, sessionID, s.now()); err != nil {
		s.logger.Warn(ctx, "session touch failed", "session_id", sessionID, "error", err)
	}
}

// ListActive returns the user's usable sessions, newest first.
func (s *SessionManager) ListActive(ctx context.Context, userID string) ([]models.Session, error) {
	list, err := s.repomanager.Sessions(s.db).ListActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, storageErr(ctx, s.logger, "list sessions", err)
	}
	return list, nil
}

// IsRevoked reports whether access tokens minted under sessionID must be
// rejected. A denylist outage fails open: tokens stay short-lived anyway.
func (s *SessionManager) IsRevoked(ctx context.Context, sessionID string) bool {
	revoked, err := s.revoked.IsRevoked(ctx, sessionID)
	if err != nil {
		s.logger.Warn(ctx, "denylist lookup failed", "session_id", sessionID, "error", err)
		return false
	}
	return revoked
}

// validSessionID reports whether id can name a stored session. Session ids
// are UUIDs; anything else cannot match a row.
func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *SessionManager) denylist(ctx context.Context, sessionID string) {
	if err := s.revoked.Revoke(ctx, sessionID, s.issuer.AccessTTL()); err != nil {
		s.logger.Warn(ctx, "denylist update failed", "session_id", sessionID, "error", err)
	}
}

func carryClient(prev, cur models.ClientInfo) models.ClientInfo {
	out := prev
	if cur.DeviceName != "" && out.DeviceName == "" {
		out.DeviceName = cur.DeviceName
	}
	if cur.IPAddress != "" {
		out.IPAddress = cur.IPAddress
	}
	if cur.UserAgent != "" {
		out.UserAgent = cur.UserAgent
	}
	return out
}
