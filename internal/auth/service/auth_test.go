package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rentora/rentora/internal/auth/domain"
	"github.com/rentora/rentora/internal/auth/store"
	"github.com/rentora/rentora/internal/auth/store/drivers/sqlite"
	"github.com/rentora/rentora/pkg/cryptox"
	"github.com/rentora/rentora/pkg/idx"
	"github.com/rentora/rentora/pkg/jwtx"
	"github.com/rentora/rentora/pkg/mailx"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store     store.Store
	auth      *AuthService
	tokens    *TokenService
	mfa       *MFAService
	biometric *BiometricService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	signer, err := jwtx.NewSigner("")
	require.NoError(t, err)

	cipher, err := cryptox.NewSecretCipher(cryptox.DeriveCipherKey("test-app-secret"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens := &TokenService{
		Signer:     signer,
		Store:      st,
		Issuer:     "rentora-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}

	return &testEnv{
		store:  st,
		tokens: tokens,
		auth: &AuthService{
			Store:             st,
			Tokens:            tokens,
			Mailer:            &mailx.LogMailer{Logger: logger},
			PendingSessionTTL: 5 * time.Minute,
			ResetTokenTTL:     time.Hour,
		},
		mfa: &MFAService{
			Store:  st,
			Tokens: tokens,
			Cipher: cipher,
			Issuer: "rentora-test",
		},
		biometric: &BiometricService{
			Store:        st,
			Tokens:       tokens,
			ChallengeTTL: 5 * time.Minute,
		},
	}
}

// seedUser inserts an account directly, skipping the registration flow.
func seedUser(t *testing.T, env *testEnv, email, password string, status domain.Status) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		FullName:     "Seeded User",
		Role:         domain.RoleTenant,
		Status:       status,
	}
	require.NoError(t, env.store.Users().CreateUser(context.Background(), u))
	return u
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.auth.Register(ctx, "not-an-email", "password123", "Alice", domain.RoleTenant)
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = env.auth.Register(ctx, "alice@example.com", "short", "Alice", domain.RoleTenant)
	require.ErrorIs(t, err, ErrWeakPassword)

	_, err = env.auth.Register(ctx, "alice@example.com", "password123", "Alice", domain.RoleAdmin)
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestRegisterCreatesPendingVerificationAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	profile, err := env.auth.Register(ctx, "Alice@Example.COM", "password123", "Alice", "")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPendingVerification, profile.Status)
	require.Equal(t, domain.RoleTenant, profile.Role, "empty role defaults to tenant")

	u, err := env.store.Users().GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, u.VerifyTokenHash)

	// Duplicate email conflicts regardless of case.
	_, err = env.auth.Register(ctx, "ALICE@example.com", "password123", "Alice Again", domain.RoleTenant)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestVerifyEmailTransitionsAndClearsToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	hash, err := cryptox.HashPassword("password123")
	require.NoError(t, err)
	verifyHash := cryptox.FingerprintToken("verify-token")
	u := domain.User{
		ID:              idx.New().String(),
		Email:           "bob@example.com",
		PasswordHash:    hash,
		Role:            domain.RoleTenant,
		Status:          domain.StatusPendingVerification,
		VerifyTokenHash: &verifyHash,
	}
	require.NoError(t, env.store.Users().CreateUser(ctx, u))

	profile, err := env.auth.VerifyEmail(ctx, "verify-token")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPendingProfile, profile.Status)

	// Token is single-use.
	_, err = env.auth.VerifyEmail(ctx, "verify-token")
	require.ErrorIs(t, err, ErrInvalidGrant)

	_, err = env.auth.VerifyEmail(ctx, "never-issued")
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestLoginUniformErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedUser(t, env, "carol@example.com", "password123", domain.StatusActive)
	seedUser(t, env, "suspended@example.com", "password123", domain.StatusSuspended)
	seedUser(t, env, "unverified@example.com", "password123", domain.StatusPendingVerification)

	// Unknown email, wrong password and bad account states are
	// indistinguishable from the outside.
	_, err := env.auth.Login(ctx, "nobody@example.com", "password123")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.auth.Login(ctx, "carol@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.auth.Login(ctx, "suspended@example.com", "password123")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.auth.Login(ctx, "unverified@example.com", "password123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginIssuesTokens(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "dave@example.com", "password123", domain.StatusActive)

	result, err := env.auth.Login(ctx, "DAVE@example.com", "password123")
	require.NoError(t, err)
	require.False(t, result.MFARequired)
	require.NotNil(t, result.Tokens)
	require.Equal(t, "Bearer", result.Tokens.TokenType)
	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotEmpty(t, result.Tokens.RefreshToken)
	require.NotNil(t, result.User)
	require.Equal(t, u.ID, result.User.ID)
}

func TestLoginMFAGateWithholdsTokens(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "eve@example.com", "password123", domain.StatusActive)
	require.NoError(t, env.store.Users().SetMFAEnabled(ctx, u.ID, true))

	result, err := env.auth.Login(ctx, "eve@example.com", "password123")
	require.NoError(t, err)
	require.True(t, result.MFARequired)
	require.True(t, strings.HasPrefix(result.PendingToken, "mfa_"))
	require.NotNil(t, result.ExpiresAt)
	require.Nil(t, result.Tokens, "no tokens before the second factor")
	require.Nil(t, result.User)
}

func TestForgotPasswordNeverLeaksExistence(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedUser(t, env, "frank@example.com", "password123", domain.StatusActive)

	require.NoError(t, env.auth.ForgotPassword(ctx, "frank@example.com"))
	require.NoError(t, env.auth.ForgotPassword(ctx, "nobody@example.com"))

	u, err := env.store.Users().GetUserByEmail(ctx, "frank@example.com")
	require.NoError(t, err)
	require.NotNil(t, u.ResetTokenHash)
}

func TestResetPasswordRevokesAllRefreshTokens(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "grace@example.com", "old-password", domain.StatusActive)

	// Two live sessions before the reset.
	pairA, err := env.tokens.Issue(ctx, u)
	require.NoError(t, err)
	pairB, err := env.tokens.Issue(ctx, u)
	require.NoError(t, err)

	require.NoError(t, env.store.Users().SetResetToken(ctx, u.ID,
		cryptox.FingerprintToken("reset-token"), time.Now().Add(time.Hour)))

	require.NoError(t, env.auth.ResetPassword(ctx, "reset-token", "new-password", "new-password"))

	// Both old sessions are dead.
	_, err = env.tokens.Refresh(ctx, pairA.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidGrant)
	_, err = env.tokens.Refresh(ctx, pairB.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidGrant)

	// Old password is gone, new password works.
	_, err = env.auth.Login(ctx, "grace@example.com", "old-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, "grace@example.com", "new-password")
	require.NoError(t, err)

	// The reset token is single-use.
	err = env.auth.ResetPassword(ctx, "reset-token", "another-password", "another-password")
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestResetPasswordValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	err := env.auth.ResetPassword(ctx, "token", "new-password", "different")
	require.ErrorIs(t, err, ErrPasswordMismatch)

	err = env.auth.ResetPassword(ctx, "token", "short", "short")
	require.ErrorIs(t, err, ErrWeakPassword)

	err = env.auth.ResetPassword(ctx, "never-issued", "new-password", "new-password")
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "heidi@example.com", "password123", domain.StatusActive)

	require.NoError(t, env.store.Users().SetResetToken(ctx, u.ID,
		cryptox.FingerprintToken("stale-token"), time.Now().Add(-time.Minute)))

	err := env.auth.ResetPassword(ctx, "stale-token", "new-password", "new-password")
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestCompleteProfileActivatesAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "ivan@example.com", "password123", domain.StatusPendingProfile)

	profile, err := env.auth.CompleteProfile(ctx, u.ID, "Ivan Petrov")
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, profile.Status)
	require.Equal(t, "Ivan Petrov", profile.FullName)
}

func TestRefreshRotation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "judy@example.com", "password123", domain.StatusActive)

	pair, err := env.tokens.Issue(ctx, u)
	require.NoError(t, err)

	rotated, err := env.tokens.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The old refresh token was revoked by the rotation.
	_, err = env.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidGrant)

	// The new one still works.
	_, err = env.tokens.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsUnknownAndSuspended(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "karl@example.com", "password123", domain.StatusActive)

	_, err := env.tokens.Refresh(ctx, "never-issued")
	require.ErrorIs(t, err, ErrInvalidGrant)

	pair, err := env.tokens.Issue(ctx, u)
	require.NoError(t, err)

	require.NoError(t, env.store.Users().UpdateStatus(ctx, u.ID, domain.StatusSuspended))
	_, err = env.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "liam@example.com", "password123", domain.StatusActive)

	pair, err := env.tokens.Issue(ctx, u)
	require.NoError(t, err)

	require.NoError(t, env.tokens.Logout(ctx, pair.RefreshToken))
	require.NoError(t, env.tokens.Logout(ctx, pair.RefreshToken))
	require.NoError(t, env.tokens.Logout(ctx, "never-issued"))

	_, err = env.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestAccessTokenCarriesIdentityClaims(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "mia@example.com", "password123", domain.StatusActive)

	pair, err := env.tokens.Issue(ctx, u)
	require.NoError(t, err)

	claims, err := env.tokens.Signer.Verifier("rentora-test").Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.Subject)
	require.Equal(t, u.Email, claims.Email)
	require.Equal(t, string(domain.RoleTenant), claims.Role)
	require.Equal(t, string(domain.StatusActive), claims.Status)
}
