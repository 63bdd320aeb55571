package store

import (
	"context"
	"errors"
	"time"

	"github.com/rentora/rentora/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable.
//
// Correctness of the single-use flows relies on the driver enforcing the
// schema's uniqueness constraints and implementing the Consume*/Revoke
// operations as conditional updates: they must return ErrNotFound when
// the row was already spent, so two concurrent presentations of the same
// challenge, backup code or refresh token cannot both succeed.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	MfaSecrets() MfaSecrets
	BackupCodes() BackupCodes
	PendingSessions() PendingSessions
	BiometricCredentials() BiometricCredentials
	BiometricChallenges() BiometricChallenges

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing on nil and
	// rolling back on error. Preferred over Tx for multi-step writes.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user; ErrAlreadyExists on duplicate email.
	CreateUser(ctx context.Context, u domain.User) error

	UpdateStatus(ctx context.Context, userID string, status domain.Status) error
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
	UpdateFullName(ctx context.Context, userID string, fullName string) error

	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error
	SetBiometricEnabled(ctx context.Context, userID string, enabled bool) error

	GetUserByVerifyTokenHash(ctx context.Context, hash string) (domain.User, error)
	ClearVerifyToken(ctx context.Context, userID string) error

	SetResetToken(ctx context.Context, userID string, hash string, expiresAt time.Time) error
	GetUserByResetTokenHash(ctx context.Context, hash string) (domain.User, error)
	ClearResetToken(ctx context.Context, userID string) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken sets revoked_at, conditioned on the token not
	// being revoked yet; ErrNotFound when no unrevoked row matched.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeAllUserRefreshTokens is the password-reset blast radius:
	// every non-revoked token of the user is revoked.
	RevokeAllUserRefreshTokens(ctx context.Context, userID string) error

	DeleteExpiredRefreshTokens(ctx context.Context) error
}

type MfaSecrets interface {
	// UpsertMfaSecret inserts or replaces the user's secret. Callers must
	// only replace unverified secrets; a verified one is deleted through
	// DeleteMfaSecret first (the disable flow).
	UpsertMfaSecret(ctx context.Context, userID string, secretEncrypted string) error

	GetMfaSecret(ctx context.Context, userID string) (domain.MfaSecret, error)

	// MarkMfaSecretVerified flips verified and stamps enabled_at.
	MarkMfaSecretVerified(ctx context.Context, userID string) error

	DeleteMfaSecret(ctx context.Context, userID string) error
}

type BackupCodes interface {
	CreateBackupCode(ctx context.Context, id, userID, codeHash string) error

	// ConsumeBackupCode marks the matching unused code as used.
	// Conditional on used_at IS NULL; ErrNotFound if no unused code
	// matches, including the already-spent case.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) error

	DeleteAllBackupCodes(ctx context.Context, userID string) error

	CountUnusedBackupCodes(ctx context.Context, userID string) (int, error)
}

type PendingSessions interface {
	CreatePendingSession(ctx context.Context, s domain.PendingSession) error

	GetPendingSession(ctx context.Context, token string) (domain.PendingSession, error)

	DeletePendingSession(ctx context.Context, token string) error

	// DeleteExpiredUserPendingSessions is the pre-create housekeeping:
	// drop the user's stale sessions before inserting a fresh one.
	DeleteExpiredUserPendingSessions(ctx context.Context, userID string) error

	DeleteExpiredPendingSessions(ctx context.Context) error
}

type BiometricCredentials interface {
	// CreateBiometricCredential inserts a credential; ErrAlreadyExists on
	// a duplicate (user, device) pair.
	CreateBiometricCredential(ctx context.Context, c domain.BiometricCredential) error

	// GetActiveCredentialByDevice looks up by device only. The device
	// presents itself before any identity is established.
	GetActiveCredentialByDevice(ctx context.Context, deviceID string) (domain.BiometricCredential, error)

	GetActiveCredential(ctx context.Context, deviceID, credentialID string) (domain.BiometricCredential, error)

	GetUserCredential(ctx context.Context, userID, id string) (domain.BiometricCredential, error)

	ListUserCredentials(ctx context.Context, userID string) ([]domain.BiometricCredential, error)

	UpdateCredentialName(ctx context.Context, userID, id, name string) error
	UpdateCredentialActive(ctx context.Context, userID, id string, active bool) error
	UpdateCredentialLastUsed(ctx context.Context, id string, at time.Time) error

	DeleteCredential(ctx context.Context, userID, id string) error

	CountUserCredentials(ctx context.Context, userID string) (int, error)
}

type BiometricChallenges interface {
	CreateChallenge(ctx context.Context, c domain.BiometricChallenge) error

	GetChallenge(ctx context.Context, challenge string) (domain.BiometricChallenge, error)

	// ConsumeChallenge marks the challenge used, conditioned on it being
	// unused; ErrNotFound when it was already consumed.
	ConsumeChallenge(ctx context.Context, challenge string) error

	DeleteExpiredChallenges(ctx context.Context) error
}
