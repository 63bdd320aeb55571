package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rentora/rentora/internal/auth/domain"
	"github.com/rentora/rentora/internal/auth/store"
	"github.com/rentora/rentora/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func createTestUser(t *testing.T, st store.Store) domain.User {
	t.Helper()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        "tenant@example.com",
		PasswordHash: "$argon2id$fake",
		FullName:     "Test Tenant",
		Role:         domain.RoleTenant,
		Status:       domain.StatusActive,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := createTestUser(t, st)

	dup := u
	dup.ID = idx.New().String()
	dup.Email = "Tenant@Example.COM" // NOCASE collation catches this too
	err := st.Users().CreateUser(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestGetUserByEmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := createTestUser(t, st)

	got, err := st.Users().GetUserByEmail(ctx, "TENANT@EXAMPLE.COM")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestConsumeBackupCodeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := createTestUser(t, st)

	require.NoError(t, st.BackupCodes().CreateBackupCode(ctx, idx.New().String(), u.ID, "code-hash"))

	require.NoError(t, st.BackupCodes().ConsumeBackupCode(ctx, u.ID, "code-hash"))

	// The second spend finds no unused row.
	err := st.BackupCodes().ConsumeBackupCode(ctx, u.ID, "code-hash")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConsumeChallengeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	ch := domain.BiometricChallenge{
		Challenge: "challenge-value",
		DeviceID:  "device-1",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	require.NoError(t, st.BiometricChallenges().CreateChallenge(ctx, ch))

	require.NoError(t, st.BiometricChallenges().ConsumeChallenge(ctx, "challenge-value"))
	err := st.BiometricChallenges().ConsumeChallenge(ctx, "challenge-value")
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := st.BiometricChallenges().GetChallenge(ctx, "challenge-value")
	require.NoError(t, err)
	require.NotNil(t, got.UsedAt)
}

func TestRevokeRefreshTokenConditional(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := createTestUser(t, st)

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: "refresh-hash",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, rt))

	require.NoError(t, st.RefreshTokens().RevokeRefreshToken(ctx, "refresh-hash"))
	err := st.RefreshTokens().RevokeRefreshToken(ctx, "refresh-hash")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBiometricCredentialUniquePerUserDevice(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := createTestUser(t, st)

	cred := domain.BiometricCredential{
		ID:           idx.New().String(),
		UserID:       u.ID,
		DeviceID:     "device-1",
		PublicKey:    "cHVibGljLWtleQ==",
		CredentialID: "cred-1",
		Active:       true,
		EnrolledAt:   time.Now().UTC(),
	}
	require.NoError(t, st.BiometricCredentials().CreateBiometricCredential(ctx, cred))

	dup := cred
	dup.ID = idx.New().String()
	dup.CredentialID = "cred-2"
	err := st.BiometricCredentials().CreateBiometricCredential(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	u := domain.User{
		ID:           idx.New().String(),
		Email:        "rollback@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleTenant,
		Status:       domain.StatusActive,
	}

	sentinel := context.Canceled
	err := st.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Users().CreateUser(ctx, u))
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	_, err = st.Users().GetUserByEmail(ctx, u.Email)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteExpiredPendingSessions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := createTestUser(t, st)

	expired := domain.PendingSession{Token: "mfa_expired", UserID: u.ID, ExpiresAt: time.Now().Add(-time.Minute)}
	live := domain.PendingSession{Token: "mfa_live", UserID: u.ID, ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, st.PendingSessions().CreatePendingSession(ctx, expired))
	require.NoError(t, st.PendingSessions().CreatePendingSession(ctx, live))

	require.NoError(t, st.PendingSessions().DeleteExpiredPendingSessions(ctx))

	_, err := st.PendingSessions().GetPendingSession(ctx, "mfa_expired")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.PendingSessions().GetPendingSession(ctx, "mfa_live")
	require.NoError(t, err)
}
