package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/rentora/rentora/internal/auth/domain"
)

type mfaSecretsRepo struct {
	db dbtx
}

func (r *mfaSecretsRepo) UpsertMfaSecret(ctx context.Context, userID string, secretEncrypted string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_secrets (user_id, secret_encrypted, verified, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			secret_encrypted = excluded.secret_encrypted,
			verified = 0,
			enabled_at = NULL,
			updated_at = excluded.updated_at`,
		userID, secretEncrypted, now, now,
	)
	return err
}

func (r *mfaSecretsRepo) GetMfaSecret(ctx context.Context, userID string) (domain.MfaSecret, error) {
	var (
		s         domain.MfaSecret
		enabledAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, secret_encrypted, verified, enabled_at, created_at, updated_at
		FROM mfa_secrets WHERE user_id = ?`, userID,
	).Scan(&s.UserID, &s.SecretEncrypted, &s.Verified, &enabledAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.MfaSecret{}, mapNotFound(err)
	}
	s.EnabledAt = mapNullTimePtr(enabledAt)
	return s, nil
}

func (r *mfaSecretsRepo) MarkMfaSecretVerified(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE mfa_secrets SET verified = 1, enabled_at = ?, updated_at = ?
		WHERE user_id = ? AND verified = 0`,
		now, now, userID))
}

func (r *mfaSecretsRepo) DeleteMfaSecret(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_secrets WHERE user_id = ?`, userID)
	return err
}
