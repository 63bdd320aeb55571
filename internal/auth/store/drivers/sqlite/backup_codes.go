package sqlite

import (
	"context"
	"time"
)

type backupCodesRepo struct {
	db dbtx
}

func (r *backupCodesRepo) CreateBackupCode(ctx context.Context, id, userID, codeHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_backup_codes (id, user_id, code_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		id, userID, codeHash, time.Now().UTC(),
	)
	return err
}

// ConsumeBackupCode is a conditional update so two concurrent
// presentations of the same code cannot both succeed.
func (r *backupCodesRepo) ConsumeBackupCode(ctx context.Context, userID, codeHash string) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE mfa_backup_codes SET used_at = ?
		WHERE user_id = ? AND code_hash = ? AND used_at IS NULL`,
		time.Now().UTC(), userID, codeHash))
}

func (r *backupCodesRepo) DeleteAllBackupCodes(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_backup_codes WHERE user_id = ?`, userID)
	return err
}

func (r *backupCodesRepo) CountUnusedBackupCodes(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mfa_backup_codes
		WHERE user_id = ? AND used_at IS NULL`, userID,
	).Scan(&count)
	return count, err
}
