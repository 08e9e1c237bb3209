// Package services holds the credential and session lifecycle: login,
// session issue/rotate/revoke, password reset and the user directory.
//
// Services talk to storage only through repomanager, so every multi-row
// change can be bound to one transaction with dbx.WithTx.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/dmitrijs2005/calauth/internal/logging"
	"github.com/google/uuid"
)

// clock and id sources, replaced in tests.
type clock func() time.Time

type idSource func() string

func newID() string { return uuid.NewString() }

// storageErr logs the detail of an unexpected persistence failure and hands
// the caller only the bare ErrStorage.
func storageErr(ctx context.Context, logger logging.Logger, op string, err error) error {
	logger.Error(ctx, "storage failure", "op", op, "error", err)
	return common.ErrStorage
}
