package services

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/dmitrijs2005/calauth/internal/cryptox"
	"github.com/dmitrijs2005/calauth/internal/dbx"
	"github.com/dmitrijs2005/calauth/internal/server/credentials"
	"github.com/dmitrijs2005/calauth/internal/server/models"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/loginattempts"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/users"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

var fastParams = cryptox.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func newTestHasher() *credentials.Hasher {
	return credentials.NewHasher(fastParams)
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func seqIDs(prefix string) idSource {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + strconv.Itoa(n)
	}
}

// seqUUIDs yields sessionUUID(1), sessionUUID(2), ...
func seqUUIDs() idSource {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return sessionUUID(n)
	}
}

func sessionUUID(n int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}

// knownRoles mirrors the roles seeded by the first migration.
var knownRoles = []string{"admin", "user"}

// --- in-memory store ---

type memStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	roles    map[string][]string
	sessions map[string]*models.Session
	tokens   map[string]*models.ResetToken
	attempts []models.LoginAttempt

	emailLookups int

	findUserErr      error
	updateLoginErr   error
	updatePassErr    error
	createSessionErr error
	revokeLoses      bool
	createTokenErr   error
	markUsedLoses    bool
	attemptErr       error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*models.User{},
		roles:    map[string][]string{},
		sessions: map[string]*models.Session{},
		tokens:   map[string]*models.ResetToken{},
	}
}

func (s *memStore) addUser(t *testing.T, id, email, password string, active bool) *models.User {
	t.Helper()
	digest, tag, err := newTestHasher().Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{ID: id, Email: email, PasswordHash: digest, PasswordAlgorithm: tag, IsActive: active}
	s.mu.Lock()
	s.users[id] = u
	s.mu.Unlock()
	return u
}

func (s *memStore) session(id string) models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sessions[id]
}

type fakeRepoManager struct {
	store *memStore
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return (*fakeUsers)(m.store) }
func (m *fakeRepoManager) Sessions(dbx.DBTX) sessions.Repository        { return (*fakeSessions)(m.store) }
func (m *fakeRepoManager) ResetTokens(dbx.DBTX) resettokens.Repository  { return (*fakeTokens)(m.store) }
func (m *fakeRepoManager) LoginAttempts(dbx.DBTX) loginattempts.Repository {
	return (*fakeAttempts)(m.store)
}

// users

type fakeUsers memStore

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email && existing.DeletedAt == nil {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.ID = "u-" + strconv.Itoa(len(f.users)+1)
	cp := *u
	f.users[u.ID] = &cp
	return u, nil
}

func (f *fakeUsers) FindActiveByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emailLookups++
	if f.findUserErr != nil {
		return nil, f.findUserErr
	}
	for _, u := range f.users {
		if u.Email == email && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findUserErr != nil {
		return nil, f.findUserErr
	}
	u, ok := f.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateLoginErr != nil {
		return f.updateLoginErr
	}
	f.users[id].LastLoginAt = &at
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash, algorithm string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updatePassErr != nil {
		return f.updatePassErr
	}
	u, ok := f.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash, u.PasswordAlgorithm = hash, algorithm
	return nil
}

func (f *fakeUsers) Roles(_ context.Context, id string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.roles[id]...)
	sort.Strings(out)
	return out, nil
}

func (f *fakeUsers) AssignRole(_ context.Context, id, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !slices.Contains(knownRoles, role) {
		return common.ErrorNotFound
	}
	if !slices.Contains(f.roles[id], role) {
		f.roles[id] = append(f.roles[id], role)
	}
	return nil
}

// sessions

type fakeSessions memStore

func (f *fakeSessions) Create(_ context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createSessionErr != nil {
		return f.createSessionErr
	}
	if _, ok := f.sessions[s.ID]; ok {
		return common.ErrorAlreadyExists
	}
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessions) Find(_ context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) Revoke(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeLoses {
		return false, nil
	}
	s, ok := f.sessions[id]
	if !ok || s.RevokedAt != nil {
		return false, nil
	}
	s.RevokedAt = &at
	return true, nil
}

func (f *fakeSessions) ListActiveByUser(_ context.Context, userID string, now time.Time) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.IsActive(now) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSessions) Touch(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.LastSeenAt = &at
	}
	return nil
}

// reset tokens

type fakeTokens memStore

func (f *fakeTokens) Create(_ context.Context, t *models.ResetToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createTokenErr != nil {
		return f.createTokenErr
	}
	for _, existing := range f.tokens {
		if existing.TokenHash == t.TokenHash {
			return common.ErrorAlreadyExists
		}
	}
	cp := *t
	f.tokens[t.ID] = &cp
	return nil
}

func (f *fakeTokens) FindByHash(_ context.Context, hash string) (*models.ResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeTokens) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markUsedLoses {
		return false, nil
	}
	t, ok := f.tokens[id]
	if !ok || t.UsedAt != nil {
		return false, nil
	}
	t.UsedAt = &at
	return true, nil
}

func (f *fakeTokens) InvalidateOutstanding(_ context.Context, userID string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.tokens {
		if t.UserID == userID && t.UsedAt == nil {
			t.UsedAt = &at
			n++
		}
	}
	return n, nil
}

// login attempts

type fakeAttempts memStore

func (f *fakeAttempts) Create(_ context.Context, a *models.LoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attemptErr != nil {
		return f.attemptErr
	}
	a.ID = int64(len(f.attempts) + 1)
	f.attempts = append(f.attempts, *a)
	return nil
}

// --- denylist and notifier ---

type fakeDenylist struct {
	mu   sync.Mutex
	ids  map[string]time.Duration
	err  error
	hits int
}

func newFakeDenylist() *fakeDenylist {
	return &fakeDenylist{ids: map[string]time.Duration{}}
}

func (f *fakeDenylist) Revoke(_ context.Context, id string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	if f.err != nil {
		return f.err
	}
	f.ids[id] = ttl
	return nil
}

func (f *fakeDenylist) IsRevoked(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.ids[id]
	return ok, nil
}

type sentLink struct {
	to, link string
}

type fakeNotifier struct {
	sent []sentLink
	err  error
}

func (f *fakeNotifier) SendResetLink(_ context.Context, to, link string) error {
	f.sent = append(f.sent, sentLink{to: to, link: link})
	return f.err
}
