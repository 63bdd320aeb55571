package sqlite

import (
	"context"
	"database/sql"

	"github.com/rentora/rentora/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // outer DB stays open

// Ping is a no-op inside a transaction; the connection already exists.
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed.
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) ApplyMigrations() error { return nil } // applied before any tx starts

func (t *txStore) Users() store.Users                 { return &usersRepo{db: t.tx} }
func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{db: t.tx} }
func (t *txStore) MfaSecrets() store.MfaSecrets       { return &mfaSecretsRepo{db: t.tx} }
func (t *txStore) BackupCodes() store.BackupCodes     { return &backupCodesRepo{db: t.tx} }
func (t *txStore) PendingSessions() store.PendingSessions {
	return &pendingSessionsRepo{db: t.tx}
}
func (t *txStore) BiometricCredentials() store.BiometricCredentials {
	return &biometricCredentialsRepo{db: t.tx}
}
func (t *txStore) BiometricChallenges() store.BiometricChallenges {
	return &biometricChallengesRepo{db: t.tx}
}
