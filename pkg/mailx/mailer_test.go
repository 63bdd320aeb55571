package mailx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogMailerWritesToLog(t *testing.T) {
	var buf bytes.Buffer
	m := &LogMailer{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, m.SendVerificationEmail(context.Background(), "ann@example.com", "tok-123"))
	require.Contains(t, buf.String(), "ann@example.com")
	require.Contains(t, buf.String(), "tok-123")
}

func TestSMTPMailerDialsNumericPort(t *testing.T) {
	m := &SMTPMailer{
		Host:    "127.0.0.1",
		Port:    1, // nothing listens here
		From:    "noreply@rentora.test",
		BaseURL: "https://rentora.test",
	}

	err := m.SendVerificationEmail(context.Background(), "ann@example.com", "tok-123")
	require.Error(t, err)
	require.Contains(t, err.Error(), "127.0.0.1:1")
}
