package sessions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/dmitrijs2005/calauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var sessionColumns = []string{
	"id", "user_id", "device_name", "ip_address", "user_agent",
	"created_at", "last_seen_at", "expires_at", "revoked_at",
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	s := &models.Session{
		ID:        "s-1",
		UserID:    "u-1",
		Client:    models.ClientInfo{DeviceName: "laptop", IPAddress: "10.0.0.1"},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+user_sessions\s*\(id,\s*user_id,\s*device_name`).
		WithArgs("s-1", "u-1", "laptop", "10.0.0.1", nil, now, nil, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), s))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+user_sessions`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.Session{ID: "s-1"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestFind(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)SELECT\s+id,\s*user_id.*FROM\s+user_sessions\s+WHERE\s+id\s*=\s*\$1`

	mock.ExpectQuery(q).WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows(sessionColumns).
			AddRow("s-1", "u-1", "phone", nil, "ua", now, nil, now.Add(time.Hour), now))

	got, err := repo.Find(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, "phone", got.Client.DeviceName)
	assert.Equal(t, "", got.Client.IPAddress)
	assert.Nil(t, got.LastSeenAt)
	require.NotNil(t, got.RevokedAt)
	assert.True(t, got.IsRevoked())

	mock.ExpectQuery(q).WithArgs("missing").WillReturnError(sql.ErrNoRows)
	_, err = repo.Find(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectQuery(q).WithArgs("s-2").WillReturnError(errors.New("conn reset"))
	_, err = repo.Find(context.Background(), "s-2")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
}

func TestRevoke_CompareAndSet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	q := `UPDATE\s+user_sessions\s+SET\s+revoked_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL`

	mock.ExpectExec(q).WithArgs("s-1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.Revoke(context.Background(), "s-1", at)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(q).WithArgs("s-1", at).WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.Revoke(context.Background(), "s-1", at)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec(q).WillReturnError(errors.New("db down"))
	_, err = repo.Revoke(context.Background(), "s-1", at)
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+user_sessions\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*\$2`).
		WithArgs("u-1", now).
		WillReturnRows(sqlmock.NewRows(sessionColumns).
			AddRow("s-2", "u-1", "tablet", "10.0.0.2", nil, now, now, now.Add(time.Hour), nil).
			AddRow("s-1", "u-1", nil, nil, nil, now.Add(-time.Minute), nil, now.Add(time.Hour), nil))

	got, err := repo.ListActiveByUser(context.Background(), "u-1", now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s-2", got[0].ID)
	assert.Equal(t, "tablet", got[0].Client.DeviceName)
	assert.True(t, got[1].IsActive(now))
}

func TestListActiveByUser_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+user_sessions`).WillReturnError(errors.New("boom"))
	_, err := repo.ListActiveByUser(context.Background(), "u-1", time.Now())
	assert.Error(t, err)
}

func TestTouch(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`UPDATE\s+user_sessions\s+SET\s+last_seen_at\s*=\s*\$2`).
		WithArgs("s-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Touch(context.Background(), "s-1", at))
}
