package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/rentora/rentora/internal/auth/domain"
)

type biometricCredentialsRepo struct {
	db dbtx
}

const credentialColumns = `id, user_id, device_id, device_name, device_type,
	public_key, credential_id, active, enrolled_at, last_used_at`

func scanCredential(scan func(dest ...any) error) (domain.BiometricCredential, error) {
	var (
		c          domain.BiometricCredential
		deviceName sql.NullString
		deviceType sql.NullString
		lastUsedAt sql.NullTime
	)
	err := scan(
		&c.ID, &c.UserID, &c.DeviceID, &deviceName, &deviceType,
		&c.PublicKey, &c.CredentialID, &c.Active, &c.EnrolledAt, &lastUsedAt,
	)
	if err != nil {
		return domain.BiometricCredential{}, err
	}
	c.DeviceName = deviceName.String
	c.DeviceType = deviceType.String
	c.LastUsedAt = mapNullTimePtr(lastUsedAt)
	return c, nil
}

func (r *biometricCredentialsRepo) CreateBiometricCredential(ctx context.Context, c domain.BiometricCredential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO biometric_credentials (
			id, user_id, device_id, device_name, device_type,
			public_key, credential_id, active, enrolled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.DeviceID, c.DeviceName, c.DeviceType,
		c.PublicKey, c.CredentialID, c.Active, c.EnrolledAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *biometricCredentialsRepo) GetActiveCredentialByDevice(ctx context.Context, deviceID string) (domain.BiometricCredential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+credentialColumns+` FROM biometric_credentials
		WHERE device_id = ? AND active = 1`, deviceID)
	c, err := scanCredential(row.Scan)
	if err != nil {
		return domain.BiometricCredential{}, mapNotFound(err)
	}
	return c, nil
}

func (r *biometricCredentialsRepo) GetActiveCredential(ctx context.Context, deviceID, credentialID string) (domain.BiometricCredential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+credentialColumns+` FROM biometric_credentials
		WHERE device_id = ? AND credential_id = ? AND active = 1`,
		deviceID, credentialID)
	c, err := scanCredential(row.Scan)
	if err != nil {
		return domain.BiometricCredential{}, mapNotFound(err)
	}
	return c, nil
}

func (r *biometricCredentialsRepo) GetUserCredential(ctx context.Context, userID, id string) (domain.BiometricCredential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+credentialColumns+` FROM biometric_credentials
		WHERE user_id = ? AND id = ?`, userID, id)
	c, err := scanCredential(row.Scan)
	if err != nil {
		return domain.BiometricCredential{}, mapNotFound(err)
	}
	return c, nil
}

func (r *biometricCredentialsRepo) ListUserCredentials(ctx context.Context, userID string) ([]domain.BiometricCredential, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+credentialColumns+` FROM biometric_credentials
		WHERE user_id = ? ORDER BY enrolled_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []domain.BiometricCredential
	for rows.Next() {
		c, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (r *biometricCredentialsRepo) UpdateCredentialName(ctx context.Context, userID, id, name string) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE biometric_credentials SET device_name = ?
		WHERE user_id = ? AND id = ?`, name, userID, id))
}

func (r *biometricCredentialsRepo) UpdateCredentialActive(ctx context.Context, userID, id string, active bool) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE biometric_credentials SET active = ?
		WHERE user_id = ? AND id = ?`, active, userID, id))
}

func (r *biometricCredentialsRepo) UpdateCredentialLastUsed(ctx context.Context, id string, at time.Time) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE biometric_credentials SET last_used_at = ? WHERE id = ?`,
		at.UTC(), id))
}

func (r *biometricCredentialsRepo) DeleteCredential(ctx context.Context, userID, id string) error {
	return requireRow(r.db.ExecContext(ctx, `
		DELETE FROM biometric_credentials WHERE user_id = ? AND id = ?`,
		userID, id))
}

func (r *biometricCredentialsRepo) CountUserCredentials(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM biometric_credentials WHERE user_id = ?`, userID,
	).Scan(&count)
	return count, err
}
