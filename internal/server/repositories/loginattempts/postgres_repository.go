package loginattempts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/calauth/internal/dbx"
	"github.com/dmitrijs2005/calauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (user_id, email, ip_address, user_agent, successful, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		a.UserID, nullString(a.Email), nullString(a.Client.IPAddress), nullString(a.Client.UserAgent),
		a.Successful, nullString(a.FailureReason), a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
