// Package notify delivers password reset links.
package notify

import (
	"context"

	"github.com/dmitrijs2005/calauth/internal/logging"
)

type Notifier interface {
	SendResetLink(ctx context.Context, to string, link string) error
}

// LogNotifier only records that a link was issued. The link itself carries
// the reset secret and is never written out.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendResetLink(ctx context.Context, to string, link string) error {
	n.logger.Info(ctx, "reset link issued, no SMTP configured", "to", to)
	return nil
}
