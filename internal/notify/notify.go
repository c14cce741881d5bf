// Package notify delivers account messages to principals.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes password reset tokens to the log instead of mailing them.
// Useful for local development and operator-driven resets.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier. A nil logger discards messages.
func NewLogNotifier(l *zap.Logger) *LogNotifier {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogNotifier{logger: l}
}

// SendPasswordReset logs the reset token for email.
func (n *LogNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.logger.Warn("mail delivery not configured, password reset token logged",
		zap.String("email", email),
		zap.String("reset_token", token),
	)
	return nil
}
