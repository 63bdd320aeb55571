// Package mailx is the outbound mail capability consumed by the auth
// service. Sends are fire-and-forget from the caller's perspective:
// failures are logged, never retried, and never surfaced to the request
// that triggered them.
package mailx

import (
	"context"
	"log/slog"
)

// Mailer sends the transactional emails the auth flows need.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
	SendWelcomeEmail(ctx context.Context, to, fullName string) error
}

// LogMailer writes mail to the log instead of the wire. Used in dev and
// in tests, where a real SMTP relay is unavailable.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	m.Logger.Info("mail: verification email", "to", to, "token", token)
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	m.Logger.Info("mail: password reset email", "to", to, "token", token)
	return nil
}

func (m *LogMailer) SendWelcomeEmail(ctx context.Context, to, fullName string) error {
	m.Logger.Info("mail: welcome email", "to", to, "full_name", fullName)
	return nil
}
