package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/rentora/rentora/internal/auth/domain"
	"github.com/rentora/rentora/internal/auth/store"
	"github.com/rentora/rentora/pkg/cryptox"
	"github.com/rentora/rentora/pkg/idx"
	"github.com/rentora/rentora/pkg/mailx"
	"github.com/rentora/rentora/pkg/slogx"
)

const (
	// MinPasswordLength is the floor enforced on register and reset.
	MinPasswordLength = 8

	// pendingTokenPrefix makes MFA pending tokens recognizable in logs
	// and bug reports without being guessable.
	pendingTokenPrefix = "mfa_"

	mailSendTimeout = 10 * time.Second
)

var (
	ErrEmailTaken       = errors.New("email_taken")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidRole      = errors.New("invalid_role")
	ErrWeakPassword     = errors.New("weak_password")
	ErrPasswordMismatch = errors.New("password_mismatch")
)

// AuthService orchestrates account lifecycle and login. It owns the
// MFA gate decision: password-valid logins either get tokens or a
// short-lived pending session, never both.
type AuthService struct {
	Store  store.Store
	Tokens *TokenService
	Mailer mailx.Mailer

	PendingSessionTTL time.Duration // MFA gate window, default 5m
	ResetTokenTTL     time.Duration // password reset window, default 1h
}

// Register creates a pending_verification account and emails a
// verification token. Duplicate emails map to ErrEmailTaken.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string, role domain.Role) (domain.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Profile{}, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return domain.Profile{}, ErrWeakPassword
	}

	if role == "" {
		role = domain.RoleTenant
	}
	if role != domain.RoleTenant && role != domain.RoleLandlord {
		return domain.Profile{}, ErrInvalidRole
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.Profile{}, err
	}

	verifyToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Profile{}, err
	}
	verifyHash := cryptox.FingerprintToken(verifyToken)

	u := domain.User{
		ID:              idx.New().String(),
		Email:           email,
		PasswordHash:    hash,
		FullName:        strings.TrimSpace(fullName),
		Role:            role,
		Status:          domain.StatusPendingVerification,
		VerifyTokenHash: &verifyHash,
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Profile{}, ErrEmailTaken
		}
		return domain.Profile{}, err
	}

	s.sendAsync(ctx, "verification", func(ctx context.Context) error {
		return s.Mailer.SendVerificationEmail(ctx, u.Email, verifyToken)
	})

	return u.Profile(), nil
}

// VerifyEmail consumes a verification token, moving the account from
// pending_verification to pending_profile.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (domain.Profile, error) {
	u, err := s.Store.Users().GetUserByVerifyTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Profile{}, ErrInvalidGrant
		}
		return domain.Profile{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if u.Status == domain.StatusPendingVerification {
			if err := tx.Users().UpdateStatus(ctx, u.ID, domain.StatusPendingProfile); err != nil {
				return err
			}
		}
		return tx.Users().ClearVerifyToken(ctx, u.ID)
	})
	if err != nil {
		return domain.Profile{}, err
	}

	s.sendAsync(ctx, "welcome", func(ctx context.Context) error {
		return s.Mailer.SendWelcomeEmail(ctx, u.Email, u.FullName)
	})

	u.Status = domain.StatusPendingProfile
	return u.Profile(), nil
}

// CompleteProfile finishes onboarding: sets the display name and
// activates a pending_profile account.
func (s *AuthService) CompleteProfile(ctx context.Context, userID, fullName string) (domain.Profile, error) {
	fullName = strings.TrimSpace(fullName)

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if fullName != "" {
			if err := tx.Users().UpdateFullName(ctx, u.ID, fullName); err != nil {
				return err
			}
			u.FullName = fullName
		}
		if u.Status == domain.StatusPendingProfile {
			if err := tx.Users().UpdateStatus(ctx, u.ID, domain.StatusActive); err != nil {
				return err
			}
			u.Status = domain.StatusActive
		}
		return nil
	})
	if err != nil {
		return domain.Profile{}, err
	}

	return u.Profile(), nil
}

// Login verifies the password and either issues tokens or opens an MFA
// pending session. Unknown email, wrong password and non-authenticatable
// account states all return the same ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	u, err := s.Store.Users().GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a hash comparison anyway so the timing of unknown
			// emails matches known ones.
			_ = cryptox.VerifyPassword(password, dummyPasswordHash)
			return domain.LoginResult{}, ErrInvalidCredentials
		}
		return domain.LoginResult{}, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		l.Info("login rejected", slog.String("reason", "bad_password"), slog.String("user_id", u.ID))
		return domain.LoginResult{}, ErrInvalidCredentials
	}
	if !u.CanAuthenticate() {
		l.Info("login rejected", slog.String("reason", "account_state"), slog.String("user_id", u.ID), slog.String("status", string(u.Status)))
		return domain.LoginResult{}, ErrInvalidCredentials
	}

	if u.MFAEnabled {
		// Sweep the user's stale sessions before opening a new one so
		// abandoned logins don't accumulate.
		if err := s.Store.PendingSessions().DeleteExpiredUserPendingSessions(ctx, u.ID); err != nil {
			l.Warn("pending session sweep failed", slog.Any("error", err))
		}

		opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return domain.LoginResult{}, err
		}

		session := domain.PendingSession{
			Token:     pendingTokenPrefix + opaque,
			UserID:    u.ID,
			ExpiresAt: now.Add(s.PendingSessionTTL),
		}
		if err := s.Store.PendingSessions().CreatePendingSession(ctx, session); err != nil {
			return domain.LoginResult{}, err
		}

		expiresAt := session.ExpiresAt
		return domain.LoginResult{
			MFARequired:  true,
			PendingToken: session.Token,
			ExpiresAt:    &expiresAt,
		}, nil
	}

	tokens, err := s.Tokens.Issue(ctx, u)
	if err != nil {
		return domain.LoginResult{}, err
	}

	profile := u.Profile()
	return domain.LoginResult{Tokens: tokens, User: &profile}, nil
}

// ForgotPassword always reports success to the caller. When the account
// exists and can sign in, a reset token is stored and emailed.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}
	if !u.CanAuthenticate() {
		l.Info("password reset requested for non-authenticatable account", slog.String("user_id", u.ID))
		return nil
	}

	resetToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(s.ResetTokenTTL)
	if err := s.Store.Users().SetResetToken(ctx, u.ID, cryptox.FingerprintToken(resetToken), expiresAt); err != nil {
		return err
	}

	s.sendAsync(ctx, "password_reset", func(ctx context.Context) error {
		return s.Mailer.SendPasswordResetEmail(ctx, u.Email, resetToken)
	})

	return nil
}

// ResetPassword consumes a reset token, replaces the password and
// revokes every refresh token the user holds.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}

	u, err := s.Store.Users().GetUserByResetTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidGrant
		}
		return err
	}
	if u.ResetTokenExpiresAt == nil || time.Now().After(*u.ResetTokenExpiresAt) {
		return ErrInvalidGrant
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
			return err
		}
		if err := tx.Users().ClearResetToken(ctx, u.ID); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, u.ID)
	})
}

// Me returns the sanitized profile for the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (domain.Profile, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	return u.Profile(), nil
}

// sendAsync fires a mail send in the background. Mail is best-effort:
// failures are logged and never surfaced to the triggering request.
func (s *AuthService) sendAsync(ctx context.Context, kind string, send func(ctx context.Context) error) {
	l := slogx.FromContext(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailSendTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			l.Error("mail send failed", slog.String("kind", kind), slog.Any("error", err))
		}
	}()
}

// dummyPasswordHash is verified against when the email is unknown, to
// keep login timing uniform. Any valid argon2id encoding works.
var dummyPasswordHash = func() string {
	h, err := cryptox.HashPassword("rentora-timing-equalizer")
	if err != nil {
		panic(err)
	}
	return h
}()
