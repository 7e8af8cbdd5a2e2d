package services

import (
	"context"
	"time"
)

// Notifier delivers password-reset instructions to a user. Email transport
// lives outside this subsystem; implementations receive the raw reset
// token and its expiry and own everything from there. A delivery failure
// must not corrupt token state that was already issued.
type Notifier interface {
	SendResetInstructions(ctx context.Context, to string, token string, expiresAt time.Time) error
}
