package sqlite

import (
	"context"
	"time"

	"github.com/rentora/rentora/internal/auth/domain"
)

type pendingSessionsRepo struct {
	db dbtx
}

func (r *pendingSessionsRepo) CreatePendingSession(ctx context.Context, s domain.PendingSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_pending_sessions (token, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		s.Token, s.UserID, s.ExpiresAt.UTC(), time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *pendingSessionsRepo) GetPendingSession(ctx context.Context, token string) (domain.PendingSession, error) {
	var s domain.PendingSession
	err := r.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, created_at
		FROM mfa_pending_sessions WHERE token = ?`, token,
	).Scan(&s.Token, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return domain.PendingSession{}, mapNotFound(err)
	}
	return s, nil
}

func (r *pendingSessionsRepo) DeletePendingSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_pending_sessions WHERE token = ?`, token)
	return err
}

func (r *pendingSessionsRepo) DeleteExpiredUserPendingSessions(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM mfa_pending_sessions WHERE user_id = ? AND expires_at < ?`,
		userID, time.Now().UTC())
	return err
}

func (r *pendingSessionsRepo) DeleteExpiredPendingSessions(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_pending_sessions WHERE expires_at < ?`, time.Now().UTC())
	return err
}
