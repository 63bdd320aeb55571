package mailx

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
)

// SMTPMailer sends mail over implicit-TLS SMTP (port 465 style).
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string // public base URL used in email links
}

func (m *SMTPMailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	subject := "Verify your Rentora account"
	body := fmt.Sprintf(
		`<p>Welcome to Rentora!</p>
<p>Confirm your email address by following this link:</p>
<p><a href="%s/verify-email?token=%s">Verify my email</a></p>`,
		m.BaseURL, token,
	)
	return m.send(ctx, to, subject, body)
}

func (m *SMTPMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	subject := "Reset your Rentora password"
	body := fmt.Sprintf(
		`<p>We received a request to reset your password.</p>
<p><a href="%s/reset-password?token=%s">Choose a new password</a></p>
<p>The link expires in one hour. If you didn't ask for this, you can ignore it.</p>`,
		m.BaseURL, token,
	)
	return m.send(ctx, to, subject, body)
}

func (m *SMTPMailer) SendWelcomeEmail(ctx context.Context, to, fullName string) error {
	subject := "Welcome to Rentora"
	body := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Your email is verified. Finish setting up your profile to start using Rentora.</p>`,
		fullName,
	)
	return m.send(ctx, to, subject, body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", m.From) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: m.Host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mailx: dial %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		return fmt.Errorf("mailx: smtp client: %w", err)
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("mailx: auth: %w", err)
	}

	if err := client.Mail(m.From); err != nil {
		return fmt.Errorf("mailx: mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("mailx: rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("mailx: data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("mailx: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mailx: close body: %w", err)
	}

	return nil
}
