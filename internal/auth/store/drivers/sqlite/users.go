package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rentora/rentora/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, password_hash, full_name, role, status,
	mfa_enabled, biometric_enabled, verify_token_hash,
	reset_token_hash, reset_token_expires_at, created_at, updated_at`

func (r *usersRepo) scanUser(row *sql.Row) (domain.User, error) {
	var (
		u               domain.User
		role, status    string
		verifyTokenHash sql.NullString
		resetTokenHash  sql.NullString
		resetExpiresAt  sql.NullTime
	)

	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &role, &status,
		&u.MFAEnabled, &u.BiometricEnabled, &verifyTokenHash,
		&resetTokenHash, &resetExpiresAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.Role = domain.Role(role)
	u.Status = domain.Status(status)
	u.VerifyTokenHash = mapNullStringPtr(verifyTokenHash)
	u.ResetTokenHash = mapNullStringPtr(resetTokenHash)
	u.ResetTokenExpiresAt = mapNullTimePtr(resetExpiresAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	// email is declared COLLATE NOCASE, so equality is case-insensitive.
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email)))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, password_hash, full_name, role, status,
			mfa_enabled, biometric_enabled, verify_token_hash, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash,
		u.FullName, string(u.Role), string(u.Status),
		u.MFAEnabled, u.BiometricEnabled, mapOptionalString(u.VerifyTokenHash),
		now, now,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdateStatus(ctx context.Context, userID string, status domain.Status) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), userID))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID))
}

func (r *usersRepo) UpdateFullName(ctx context.Context, userID string, fullName string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET full_name = ?, updated_at = ? WHERE id = ?`,
		fullName, time.Now().UTC(), userID))
}

func (r *usersRepo) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET mfa_enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), userID))
}

func (r *usersRepo) SetBiometricEnabled(ctx context.Context, userID string, enabled bool) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET biometric_enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), userID))
}

func (r *usersRepo) GetUserByVerifyTokenHash(ctx context.Context, hash string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE verify_token_hash = ?`, hash))
}

func (r *usersRepo) ClearVerifyToken(ctx context.Context, userID string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET verify_token_hash = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID))
}

func (r *usersRepo) SetResetToken(ctx context.Context, userID string, hash string, expiresAt time.Time) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE users
		SET reset_token_hash = ?, reset_token_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		hash, expiresAt.UTC(), time.Now().UTC(), userID))
}

func (r *usersRepo) GetUserByResetTokenHash(ctx context.Context, hash string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE reset_token_hash = ?`, hash))
}

func (r *usersRepo) ClearResetToken(ctx context.Context, userID string) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE users
		SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), userID))
}
