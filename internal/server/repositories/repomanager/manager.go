package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/calauth/internal/dbx"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/loginattempts"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to either the pool or an
// open transaction, so services can compose several writes atomically.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	ResetTokens(db dbx.DBTX) resettokens.Repository
	LoginAttempts(db dbx.DBTX) loginattempts.Repository
}
