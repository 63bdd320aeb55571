package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/rentora/rentora/internal/auth/domain"
	"github.com/rentora/rentora/internal/auth/store"
	"github.com/stretchr/testify/require"
)

// enableMFA runs the full setup flow and returns the raw seed and
// backup codes.
func enableMFA(t *testing.T, env *testEnv, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := env.mfa.Setup(ctx, userID)
	require.NoError(t, err)
	require.Len(t, setup.BackupCodes, 10)
	require.NotEmpty(t, setup.Secret)
	require.Contains(t, setup.ProvisioningURI, "otpauth://totp/")

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.mfa.VerifySetup(ctx, userID, code))

	return setup.Secret, setup.BackupCodes
}

func TestMFASetupAndVerify(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "nina@example.com", "password123", domain.StatusActive)

	setup, err := env.mfa.Setup(ctx, u.ID)
	require.NoError(t, err)

	// The seed is stored encrypted, never in the clear.
	stored, err := env.store.MfaSecrets().GetMfaSecret(ctx, u.ID)
	require.NoError(t, err)
	require.NotEqual(t, setup.Secret, stored.SecretEncrypted)
	require.NotContains(t, stored.SecretEncrypted, setup.Secret)
	require.False(t, stored.Verified)

	// A wrong code does not activate MFA.
	require.ErrorIs(t, env.mfa.VerifySetup(ctx, u.ID, "000000"), ErrInvalidCode)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.mfa.VerifySetup(ctx, u.ID, code))

	got, err := env.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.MFAEnabled)

	// Setup now conflicts; the verified secret is not replaceable.
	_, err = env.mfa.Setup(ctx, u.ID)
	require.ErrorIs(t, err, ErrMFAAlreadyEnabled)
}

func TestMFASetupSupersedesUnverifiedSecret(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "oscar@example.com", "password123", domain.StatusActive)

	first, err := env.mfa.Setup(ctx, u.ID)
	require.NoError(t, err)

	second, err := env.mfa.Setup(ctx, u.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	// Only the latest seed is accepted.
	oldCode, err := totp.GenerateCode(first.Secret, time.Now())
	require.NoError(t, err)
	require.ErrorIs(t, env.mfa.VerifySetup(ctx, u.ID, oldCode), ErrInvalidCode)

	newCode, err := totp.GenerateCode(second.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.mfa.VerifySetup(ctx, u.ID, newCode))
}

func TestMFALoginWithTOTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "peggy@example.com", "password123", domain.StatusActive)
	secret, _ := enableMFA(t, env, u.ID)

	result, err := env.auth.Login(ctx, "peggy@example.com", "password123")
	require.NoError(t, err)
	require.True(t, result.MFARequired)

	// A wrong code leaves the session open for retry.
	_, err = env.mfa.VerifyLogin(ctx, result.PendingToken, "000000")
	require.ErrorIs(t, err, ErrInvalidCode)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	verified, err := env.mfa.VerifyLogin(ctx, result.PendingToken, code)
	require.NoError(t, err)
	require.NotNil(t, verified.Tokens)
	require.Equal(t, u.ID, verified.User.ID)

	// The pending session was consumed.
	_, err = env.mfa.VerifyLogin(ctx, result.PendingToken, code)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestMFALoginWithBackupCodeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "quinn@example.com", "password123", domain.StatusActive)
	_, codes := enableMFA(t, env, u.ID)

	result, err := env.auth.Login(ctx, "quinn@example.com", "password123")
	require.NoError(t, err)

	verified, err := env.mfa.VerifyLogin(ctx, result.PendingToken, codes[0])
	require.NoError(t, err)
	require.NotNil(t, verified.Tokens)

	// The same backup code cannot be spent twice.
	again, err := env.auth.Login(ctx, "quinn@example.com", "password123")
	require.NoError(t, err)
	_, err = env.mfa.VerifyLogin(ctx, again.PendingToken, codes[0])
	require.ErrorIs(t, err, ErrInvalidCode)

	// A different code from the batch still works.
	_, err = env.mfa.VerifyLogin(ctx, again.PendingToken, codes[1])
	require.NoError(t, err)

	status, err := env.mfa.Status(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 8, status.BackupCodesRemaining)
}

func TestMFALoginExpiredPendingSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "rita@example.com", "password123", domain.StatusActive)
	secret, _ := enableMFA(t, env, u.ID)

	session := domain.PendingSession{
		Token:     "mfa_expired-session",
		UserID:    u.ID,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, env.store.PendingSessions().CreatePendingSession(ctx, session))

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	_, err = env.mfa.VerifyLogin(ctx, session.Token, code)
	require.ErrorIs(t, err, ErrInvalidGrant)

	// The expired session was cleaned up on first touch.
	_, err = env.store.PendingSessions().GetPendingSession(ctx, session.Token)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMFAStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "sam@example.com", "password123", domain.StatusActive)

	status, err := env.mfa.Status(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, status.Enabled)
	require.False(t, status.Verified)
	require.Zero(t, status.BackupCodesRemaining)

	enableMFA(t, env, u.ID)

	status, err = env.mfa.Status(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, status.Enabled)
	require.True(t, status.Verified)
	require.Equal(t, 10, status.BackupCodesRemaining)
}

func TestRegenerateBackupCodesReplacesBatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "tina@example.com", "password123", domain.StatusActive)
	secret, oldCodes := enableMFA(t, env, u.ID)

	require.ErrorIs(t, errIgnoreCodes(env.mfa.RegenerateBackupCodes(ctx, u.ID, "000000")), ErrInvalidCode)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	newCodes, err := env.mfa.RegenerateBackupCodes(ctx, u.ID, code)
	require.NoError(t, err)
	require.Len(t, newCodes, 10)
	require.NotElementsMatch(t, oldCodes, newCodes)

	// Old codes no longer authenticate.
	login, err := env.auth.Login(ctx, "tina@example.com", "password123")
	require.NoError(t, err)
	_, err = env.mfa.VerifyLogin(ctx, login.PendingToken, oldCodes[0])
	require.ErrorIs(t, err, ErrInvalidCode)
	_, err = env.mfa.VerifyLogin(ctx, login.PendingToken, newCodes[0])
	require.NoError(t, err)
}

func TestDisableMFARemovesEverything(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "ursula@example.com", "password123", domain.StatusActive)
	secret, _ := enableMFA(t, env, u.ID)

	require.ErrorIs(t, env.mfa.Disable(ctx, u.ID, "000000"), ErrInvalidCode)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.mfa.Disable(ctx, u.ID, code))

	got, err := env.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, got.MFAEnabled)

	_, err = env.store.MfaSecrets().GetMfaSecret(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// Login goes straight to tokens again.
	result, err := env.auth.Login(ctx, "ursula@example.com", "password123")
	require.NoError(t, err)
	require.False(t, result.MFARequired)
	require.NotNil(t, result.Tokens)
}

func TestMFACorruptedSeedTreatedAsInvalidCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "vic@example.com", "password123", domain.StatusActive)
	secret, _ := enableMFA(t, env, u.ID)

	// Clobber the stored seed, then restore the verified flag the
	// upsert reset.
	require.NoError(t, env.store.MfaSecrets().UpsertMfaSecret(ctx, u.ID, "not:a:ciphertext"))
	require.NoError(t, env.store.MfaSecrets().MarkMfaSecretVerified(ctx, u.ID))

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	// An undecryptable seed fails closed as a bad code, never as an
	// internal error.
	login, err := env.auth.Login(ctx, "vic@example.com", "password123")
	require.NoError(t, err)
	_, err = env.mfa.VerifyLogin(ctx, login.PendingToken, code)
	require.ErrorIs(t, err, ErrInvalidCode)

	require.ErrorIs(t, env.mfa.Disable(ctx, u.ID, code), ErrInvalidCode)

	// Same for the setup-verification path with an unverified secret.
	other := seedUser(t, env, "wes@example.com", "password123", domain.StatusActive)
	_, err = env.mfa.Setup(ctx, other.ID)
	require.NoError(t, err)
	require.NoError(t, env.store.MfaSecrets().UpsertMfaSecret(ctx, other.ID, "not:a:ciphertext"))
	require.ErrorIs(t, env.mfa.VerifySetup(ctx, other.ID, "123456"), ErrInvalidCode)
}

func errIgnoreCodes(_ []string, err error) error { return err }
