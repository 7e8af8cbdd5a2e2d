// Package notify contains delivery backends for password-reset
// instructions.
package notify

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// LogNotifier writes reset instructions to the server log instead of
// sending them out. Intended for development and for deployments where an
// operator relays the token to the user through another channel. The raw
// token is emitted at debug level only.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l.With("module", "log_notifier")}
}

func (n *LogNotifier) SendResetInstructions(ctx context.Context, to string, token string, expiresAt time.Time) error {
	n.logger.Info(ctx, "password reset requested", "to", to, "expires_at", expiresAt)
	n.logger.Debug(ctx, "password reset token issued", "to", to, "token", token)
	return nil
}
