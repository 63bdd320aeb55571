package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rentora/rentora/internal/auth/domain"
	"github.com/rentora/rentora/internal/auth/store"
	"github.com/rentora/rentora/pkg/cryptox"
	"github.com/rentora/rentora/pkg/idx"
	"github.com/rentora/rentora/pkg/slogx"
)

const backupCodeCount = 10

var (
	ErrMFAAlreadyEnabled = errors.New("mfa_already_enabled")
	ErrMFANotEnabled     = errors.New("mfa_not_enabled")
	ErrInvalidCode       = errors.New("invalid_code")
)

// MFAService manages TOTP enrollment, the login-time second factor and
// backup codes. TOTP seeds are encrypted at rest with the secret cipher.
type MFAService struct {
	Store  store.Store
	Tokens *TokenService
	Cipher *cryptox.SecretCipher
	Issuer string // issuer label shown in authenticator apps
}

// Setup starts TOTP enrollment: a fresh seed, provisioning URI and a new
// batch of backup codes. MFA is not active until VerifySetup succeeds. A
// previous unverified secret is superseded; a verified one conflicts.
func (s *MFAService) Setup(ctx context.Context, userID string) (domain.MFASetupResponse, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.MFASetupResponse{}, err
	}

	existing, err := s.Store.MfaSecrets().GetMfaSecret(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.MFASetupResponse{}, err
	}
	if err == nil && existing.Verified {
		return domain.MFASetupResponse{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFASetupResponse{}, err
	}

	sealed, err := s.Cipher.Encrypt(key.Secret())
	if err != nil {
		return domain.MFASetupResponse{}, err
	}

	codes := make([]string, backupCodeCount)
	for i := range codes {
		code, err := cryptox.GenerateBackupCode()
		if err != nil {
			return domain.MFASetupResponse{}, err
		}
		codes[i] = code
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MfaSecrets().UpsertMfaSecret(ctx, userID, sealed); err != nil {
			return err
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return err
		}
		for _, code := range codes {
			hash := cryptox.FingerprintToken(code)
			if err := tx.BackupCodes().CreateBackupCode(ctx, idx.New().String(), userID, hash); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.MFASetupResponse{}, err
	}

	return domain.MFASetupResponse{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		BackupCodes:     codes,
	}, nil
}

// VerifySetup proves seed possession and activates MFA. Backup codes are
// not accepted here, only a current TOTP code.
func (s *MFAService) VerifySetup(ctx context.Context, userID, code string) error {
	secret, err := s.Store.MfaSecrets().GetMfaSecret(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMFANotEnabled
		}
		return err
	}
	if secret.Verified {
		return ErrMFAAlreadyEnabled
	}

	seed, err := s.openSeed(ctx, secret)
	if err != nil {
		return err
	}
	if !validTOTP(code, seed) {
		return ErrInvalidCode
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MfaSecrets().MarkMfaSecretVerified(ctx, userID); err != nil {
			return err
		}
		return tx.Users().SetMFAEnabled(ctx, userID, true)
	})
}

// VerifyLogin completes an MFA-gated login: the pending session token
// plus a TOTP code or an unused backup code. A wrong code leaves the
// session valid for another attempt within its window.
func (s *MFAService) VerifyLogin(ctx context.Context, pendingToken, code string) (domain.LoginResult, error) {
	now := time.Now()

	session, err := s.Store.PendingSessions().GetPendingSession(ctx, pendingToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResult{}, ErrInvalidGrant
		}
		return domain.LoginResult{}, err
	}
	if session.Expired(now) {
		_ = s.Store.PendingSessions().DeletePendingSession(ctx, pendingToken)
		return domain.LoginResult{}, ErrInvalidGrant
	}

	u, err := s.Store.Users().GetUserByID(ctx, session.UserID)
	if err != nil {
		return domain.LoginResult{}, err
	}
	if !u.CanAuthenticate() || !u.MFAEnabled {
		return domain.LoginResult{}, ErrInvalidGrant
	}

	if err := s.verifySecondFactor(ctx, u.ID, code); err != nil {
		return domain.LoginResult{}, err
	}

	if err := s.Store.PendingSessions().DeletePendingSession(ctx, pendingToken); err != nil {
		return domain.LoginResult{}, err
	}

	tokens, err := s.Tokens.Issue(ctx, u)
	if err != nil {
		return domain.LoginResult{}, err
	}

	profile := u.Profile()
	return domain.LoginResult{Tokens: tokens, User: &profile}, nil
}

// verifySecondFactor accepts a current TOTP code first, then falls back
// to consuming an unused backup code. The consume is a conditional
// update, so a spent code cannot pass twice.
func (s *MFAService) verifySecondFactor(ctx context.Context, userID, code string) error {
	secret, err := s.Store.MfaSecrets().GetMfaSecret(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMFANotEnabled
		}
		return err
	}
	if !secret.Verified {
		return ErrMFANotEnabled
	}

	seed, err := s.openSeed(ctx, secret)
	if err != nil {
		return err
	}
	if validTOTP(code, seed) {
		return nil
	}

	err = s.Store.BackupCodes().ConsumeBackupCode(ctx, userID, cryptox.FingerprintToken(code))
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCode
	}
	return err
}

// Status reports the user's second-factor state.
func (s *MFAService) Status(ctx context.Context, userID string) (domain.MFAStatus, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.MFAStatus{}, err
	}

	var verified bool
	secret, err := s.Store.MfaSecrets().GetMfaSecret(ctx, userID)
	switch {
	case err == nil:
		verified = secret.Verified
	case errors.Is(err, store.ErrNotFound):
	default:
		return domain.MFAStatus{}, err
	}

	remaining, err := s.Store.BackupCodes().CountUnusedBackupCodes(ctx, userID)
	if err != nil {
		return domain.MFAStatus{}, err
	}

	return domain.MFAStatus{
		Enabled:              u.MFAEnabled,
		Verified:             verified,
		BackupCodesRemaining: remaining,
	}, nil
}

// RegenerateBackupCodes replaces the whole batch after a valid TOTP
// code. Old codes, used or not, stop working.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	if err := s.requireVerifiedTOTP(ctx, userID, code); err != nil {
		return nil, err
	}

	codes := make([]string, backupCodeCount)
	for i := range codes {
		c, err := cryptox.GenerateBackupCode()
		if err != nil {
			return nil, err
		}
		codes[i] = c
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return err
		}
		for _, c := range codes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, idx.New().String(), userID, cryptox.FingerprintToken(c)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return codes, nil
}

// Disable turns MFA off after a valid TOTP code: secret and backup codes
// are deleted and the user flag cleared.
func (s *MFAService) Disable(ctx context.Context, userID, code string) error {
	if err := s.requireVerifiedTOTP(ctx, userID, code); err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MfaSecrets().DeleteMfaSecret(ctx, userID); err != nil {
			return err
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return err
		}
		return tx.Users().SetMFAEnabled(ctx, userID, false)
	})
}

func (s *MFAService) requireVerifiedTOTP(ctx context.Context, userID, code string) error {
	secret, err := s.Store.MfaSecrets().GetMfaSecret(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMFANotEnabled
		}
		return err
	}
	if !secret.Verified {
		return ErrMFANotEnabled
	}

	seed, err := s.openSeed(ctx, secret)
	if err != nil {
		return err
	}
	if !validTOTP(code, seed) {
		return ErrInvalidCode
	}
	return nil
}

// openSeed decrypts the stored TOTP seed. A seed that fails
// authenticated decryption can never validate a code, so the caller
// sees an invalid code, not an internal error. The real cause is
// logged for the operator.
func (s *MFAService) openSeed(ctx context.Context, secret domain.MfaSecret) (string, error) {
	seed, err := s.Cipher.Decrypt(secret.SecretEncrypted)
	if err != nil {
		if errors.Is(err, cryptox.ErrCipherInvalid) {
			slogx.FromContext(ctx).Error("stored mfa seed failed decryption",
				slog.String("user_id", secret.UserID), slog.Any("error", err))
			return "", ErrInvalidCode
		}
		return "", err
	}
	return seed, nil
}

// validTOTP validates with one period of skew either side, tolerating
// clock drift between server and authenticator.
func validTOTP(code, seed string) bool {
	ok, err := totp.ValidateCustom(code, seed, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
