package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/rentora/rentora/internal/auth/domain"
)

type biometricChallengesRepo struct {
	db dbtx
}

func (r *biometricChallengesRepo) CreateChallenge(ctx context.Context, c domain.BiometricChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO biometric_challenges (challenge, device_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		c.Challenge, c.DeviceID, c.ExpiresAt.UTC(), time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *biometricChallengesRepo) GetChallenge(ctx context.Context, challenge string) (domain.BiometricChallenge, error) {
	var (
		c      domain.BiometricChallenge
		usedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT challenge, device_id, expires_at, used_at, created_at
		FROM biometric_challenges WHERE challenge = ?`, challenge,
	).Scan(&c.Challenge, &c.DeviceID, &c.ExpiresAt, &usedAt, &c.CreatedAt)
	if err != nil {
		return domain.BiometricChallenge{}, mapNotFound(err)
	}
	c.UsedAt = mapNullTimePtr(usedAt)
	return c, nil
}

// ConsumeChallenge is conditional on the challenge being unused so a
// replayed signature cannot succeed twice.
func (r *biometricChallengesRepo) ConsumeChallenge(ctx context.Context, challenge string) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE biometric_challenges SET used_at = ?
		WHERE challenge = ? AND used_at IS NULL`,
		time.Now().UTC(), challenge))
}

func (r *biometricChallengesRepo) DeleteExpiredChallenges(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM biometric_challenges WHERE expires_at < ?`, time.Now().UTC())
	return err
}
