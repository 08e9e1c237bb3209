package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/dmitrijs2005/calauth/internal/logging"
	"github.com/dmitrijs2005/calauth/internal/server/auth"
	"github.com/dmitrijs2005/calauth/internal/server/models"
	"github.com/dmitrijs2005/calauth/internal/server/services"
)

var testSecret = []byte("grpc-test-secret")

type fakeAuthn struct {
	user   *models.User
	err    error
	client models.ClientInfo
}

func (f *fakeAuthn) Authenticate(_ context.Context, email, password string, client models.ClientInfo) (*models.User, error) {
	f.client = client
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type fakeSessions struct {
	issuer   *auth.Issuer
	sessions map[string]*models.Session
	revoked  map[string]bool
	issueErr error
	rotErr   error
	listErr  error
	rotated  []string
	touched  []string
}

func newFakeSessions(issuer *auth.Issuer) *fakeSessions {
	return &fakeSessions{issuer: issuer, sessions: map[string]*models.Session{}, revoked: map[string]bool{}}
}

func (f *fakeSessions) pair(userID, sid string) (*services.TokenPair, error) {
	exp := time.Now().Add(time.Hour)
	f.sessions[sid] = &models.Session{ID: sid, UserID: userID, CreatedAt: time.Now(), ExpiresAt: exp}
	at, err := f.issuer.AccessToken(userID, sid)
	if err != nil {
		return nil, err
	}
	rt, err := f.issuer.RefreshToken(userID, sid, exp)
	if err != nil {
		return nil, err
	}
	return &services.TokenPair{AccessToken: at, RefreshToken: rt, SessionID: sid, RefreshExpiresAt: exp}, nil
}

func (f *fakeSessions) Issue(_ context.Context, userID string, _ models.ClientInfo) (*services.TokenPair, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return f.pair(userID, "s-"+userID)
}

func (f *fakeSessions) Rotate(_ context.Context, sessionID, userID string, _ models.ClientInfo) (*services.TokenPair, error) {
	if f.rotErr != nil {
		return nil, f.rotErr
	}
	if f.revoked[sessionID] {
		return nil, common.ErrSessionRevoked
	}
	f.revoked[sessionID] = true
	f.rotated = append(f.rotated, sessionID)
	return f.pair(userID, sessionID+"-next")
}

func (f *fakeSessions) Revoke(_ context.Context, sessionID string) error {
	f.revoked[sessionID] = true
	return nil
}

func (f *fakeSessions) Get(_ context.Context, sessionID string) (*models.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) ListActive(_ context.Context, userID string) ([]models.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID == userID && !f.revoked[s.ID] {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessions) Touch(_ context.Context, sessionID string) {
	f.touched = append(f.touched, sessionID)
}

func (f *fakeSessions) IsRevoked(_ context.Context, sessionID string) bool {
	return f.revoked[sessionID]
}

type fakeResets struct {
	requestErr error
	consumeErr error
	requested  []string
	consumed   []string
}

func (f *fakeResets) Request(_ context.Context, email string, _ models.ClientInfo) (string, error) {
	f.requested = append(f.requested, email)
	return "https://example.com/reset?token=x", f.requestErr
}

func (f *fakeResets) Consume(_ context.Context, secret, _ string) (*models.User, error) {
	f.consumed = append(f.consumed, secret)
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	return &models.User{ID: "u1"}, nil
}

type fakeDirectory struct {
	users map[string]*models.User
	err   error
}

func (f *fakeDirectory) FindByID(_ context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fixture struct {
	srv      *GRPCServer
	issuer   *auth.Issuer
	authn    *fakeAuthn
	sessions *fakeSessions
	resets   *fakeResets
	dir      *fakeDirectory
}

func newFixture() *fixture {
	issuer := auth.NewIssuer(testSecret, 15*time.Minute)
	f := &fixture{
		issuer:   issuer,
		authn:    &fakeAuthn{user: &models.User{ID: "u1", Email: "kacper@example.com", IsActive: true, IsEmailVerified: true}},
		sessions: newFakeSessions(issuer),
		resets:   &fakeResets{},
		dir: &fakeDirectory{users: map[string]*models.User{
			"u1":    {ID: "u1", Email: "kacper@example.com", IsActive: true, Roles: []string{"user"}},
			"u2":    {ID: "u2", Email: "filip@example.com", IsActive: true, Roles: []string{"user"}},
			"admin": {ID: "admin", Email: "wiktor@example.com", IsActive: true, Roles: []string{"admin"}},
			"off":   {ID: "off", Email: "kuba@example.com", IsActive: false},
		}},
	}
	f.srv = NewGRPCServer("127.0.0.1:0", logging.Nop{}, f.authn, f.sessions, f.resets, f.dir, issuer)
	return f
}
