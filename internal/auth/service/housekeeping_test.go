package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rentora/rentora/internal/auth/domain"
	"github.com/rentora/rentora/internal/auth/store"
	"github.com/rentora/rentora/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingSweepRemovesExpiredRows(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := seedUser(t, env, "sweep@example.com", "password123", domain.StatusActive)

	expiredRT := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: "expired-rt",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	liveRT := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: "live-rt",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, env.store.RefreshTokens().CreateRefreshToken(ctx, expiredRT))
	require.NoError(t, env.store.RefreshTokens().CreateRefreshToken(ctx, liveRT))

	require.NoError(t, env.store.PendingSessions().CreatePendingSession(ctx, domain.PendingSession{
		Token: "mfa_gone", UserID: u.ID, ExpiresAt: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, env.store.BiometricChallenges().CreateChallenge(ctx, domain.BiometricChallenge{
		Challenge: "gone-challenge", DeviceID: "d1", ExpiresAt: time.Now().Add(-time.Minute),
	}))

	hk := NewHousekeepingService(env.store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)
	hk.sweep()

	_, err := env.store.RefreshTokens().GetRefreshTokenByHash(ctx, "expired-rt")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = env.store.RefreshTokens().GetRefreshTokenByHash(ctx, "live-rt")
	require.NoError(t, err)

	_, err = env.store.PendingSessions().GetPendingSession(ctx, "mfa_gone")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = env.store.BiometricChallenges().GetChallenge(ctx, "gone-challenge")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestHousekeepingStartStop(t *testing.T) {
	env := newTestEnv(t)

	hk := NewHousekeepingService(env.store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)
	hk.Start()
	hk.Stop()
}
