package service

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"github.com/rentora/rentora/internal/auth/domain"
	"github.com/rentora/rentora/internal/auth/store"
	"github.com/rentora/rentora/pkg/cryptox"
	"github.com/rentora/rentora/pkg/idx"
	"github.com/rentora/rentora/pkg/slogx"
)

var (
	ErrDeviceAlreadyEnrolled = errors.New("device_already_enrolled")
	ErrDeviceNotFound        = errors.New("device_not_found")
	ErrInvalidPublicKey      = errors.New("invalid_public_key")
	ErrNoCredentials         = errors.New("no_biometric_credentials")

	// ErrBiometricVerification is the single outward error for every
	// authenticate/reverify failure. The specific reason is logged, never
	// returned, so a probing client learns nothing from the response.
	ErrBiometricVerification = errors.New("biometric_verification_failed")
)

// BiometricService implements device enrollment and the signed-challenge
// login flow. Devices hold an RSA keypair; the server stores only the
// public key and verifies SHA-256 signatures over single-use challenges.
type BiometricService struct {
	Store        store.Store
	Tokens       *TokenService
	ChallengeTTL time.Duration // default 5m
}

// Enroll registers a device public key for the user. One credential per
// (user, device); re-enrolling an enrolled device conflicts.
func (s *BiometricService) Enroll(ctx context.Context, userID, deviceID, deviceName, deviceType, publicKey string) (domain.BiometricCredential, error) {
	if _, err := base64.StdEncoding.DecodeString(publicKey); err != nil {
		return domain.BiometricCredential{}, ErrInvalidPublicKey
	}

	credentialID, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return domain.BiometricCredential{}, err
	}

	cred := domain.BiometricCredential{
		ID:           idx.New().String(),
		UserID:       userID,
		DeviceID:     deviceID,
		DeviceName:   deviceName,
		DeviceType:   deviceType,
		PublicKey:    publicKey,
		CredentialID: credentialID,
		Active:       true,
		EnrolledAt:   time.Now().UTC(),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BiometricCredentials().CreateBiometricCredential(ctx, cred); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrDeviceAlreadyEnrolled
			}
			return err
		}
		return tx.Users().SetBiometricEnabled(ctx, userID, true)
	})
	if err != nil {
		return domain.BiometricCredential{}, err
	}

	return cred, nil
}

// Challenge issues a single-use random challenge for the device. The
// device is identified before any user identity is established.
func (s *BiometricService) Challenge(ctx context.Context, deviceID string) (domain.BiometricChallengeResponse, error) {
	l := slogx.FromContext(ctx)

	if _, err := s.Store.BiometricCredentials().GetActiveCredentialByDevice(ctx, deviceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("biometric challenge refused", slog.String("reason", "unknown_device"))
			return domain.BiometricChallengeResponse{}, ErrBiometricVerification
		}
		return domain.BiometricChallengeResponse{}, err
	}

	value, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.BiometricChallengeResponse{}, err
	}

	ch := domain.BiometricChallenge{
		Challenge: value,
		DeviceID:  deviceID,
		ExpiresAt: time.Now().Add(s.ChallengeTTL),
	}
	if err := s.Store.BiometricChallenges().CreateChallenge(ctx, ch); err != nil {
		return domain.BiometricChallengeResponse{}, err
	}

	// Best-effort prune of expired challenges, off the request path.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Store.BiometricChallenges().DeleteExpiredChallenges(ctx); err != nil {
			l.Warn("challenge prune failed", slog.Any("error", err))
		}
	}()

	return domain.BiometricChallengeResponse{
		Challenge: ch.Challenge,
		ExpiresAt: ch.ExpiresAt,
	}, nil
}

// Authenticate verifies a signed challenge and issues tokens. Every
// failure path collapses to ErrBiometricVerification.
func (s *BiometricService) Authenticate(ctx context.Context, deviceID, credentialID, challenge, signature string) (domain.LoginResult, error) {
	u, cred, err := s.verifySignedChallenge(ctx, deviceID, credentialID, challenge, signature)
	if err != nil {
		return domain.LoginResult{}, err
	}

	if err := s.Store.BiometricCredentials().UpdateCredentialLastUsed(ctx, cred.ID, time.Now().UTC()); err != nil {
		slogx.FromContext(ctx).Warn("credential last-used update failed", slog.Any("error", err))
	}

	tokens, err := s.Tokens.Issue(ctx, u)
	if err != nil {
		return domain.LoginResult{}, err
	}

	profile := u.Profile()
	return domain.LoginResult{Tokens: tokens, User: &profile}, nil
}

// Reverify re-proves device possession before a sensitive action. Users
// without biometrics enabled pass trivially; there is nothing to prove.
func (s *BiometricService) Reverify(ctx context.Context, userID, deviceID, credentialID, challenge, signature string) error {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.BiometricEnabled {
		return nil
	}

	owner, cred, err := s.verifySignedChallenge(ctx, deviceID, credentialID, challenge, signature)
	if err != nil {
		return err
	}
	if owner.ID != userID {
		slogx.FromContext(ctx).Info("biometric reverify refused", slog.String("reason", "credential_owner_mismatch"), slog.String("user_id", userID))
		return ErrBiometricVerification
	}

	if err := s.Store.BiometricCredentials().UpdateCredentialLastUsed(ctx, cred.ID, time.Now().UTC()); err != nil {
		slogx.FromContext(ctx).Warn("credential last-used update failed", slog.Any("error", err))
	}
	return nil
}

// verifySignedChallenge runs the shared checks: active credential, owner
// state, challenge freshness and binding, signature, then the
// conditional consume that defeats replays.
func (s *BiometricService) verifySignedChallenge(ctx context.Context, deviceID, credentialID, challenge, signature string) (domain.User, domain.BiometricCredential, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	fail := func(reason string) (domain.User, domain.BiometricCredential, error) {
		l.Info("biometric verification failed", slog.String("reason", reason), slog.String("device_id", deviceID))
		return domain.User{}, domain.BiometricCredential{}, ErrBiometricVerification
	}

	cred, err := s.Store.BiometricCredentials().GetActiveCredential(ctx, deviceID, credentialID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail("unknown_credential")
		}
		return domain.User{}, domain.BiometricCredential{}, err
	}

	u, err := s.Store.Users().GetUserByID(ctx, cred.UserID)
	if err != nil {
		return domain.User{}, domain.BiometricCredential{}, err
	}
	if !u.BiometricEnabled {
		return fail("biometrics_disabled")
	}
	if !u.CanAuthenticate() {
		return fail("account_state")
	}

	ch, err := s.Store.BiometricChallenges().GetChallenge(ctx, challenge)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail("unknown_challenge")
		}
		return domain.User{}, domain.BiometricCredential{}, err
	}
	if ch.UsedAt != nil {
		return fail("challenge_used")
	}
	if ch.Expired(now) {
		return fail("challenge_expired")
	}
	if ch.DeviceID != deviceID {
		return fail("challenge_device_mismatch")
	}

	if err := cryptox.VerifyRSASignature(cred.PublicKey, challenge, signature); err != nil {
		return fail("bad_signature")
	}

	// Conditional mark-used: a concurrent replay of the same challenge
	// loses this race and fails.
	if err := s.Store.BiometricChallenges().ConsumeChallenge(ctx, challenge); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail("challenge_used")
		}
		return domain.User{}, domain.BiometricCredential{}, err
	}

	return u, cred, nil
}

// ListDevices returns the user's enrolled credentials.
func (s *BiometricService) ListDevices(ctx context.Context, userID string) ([]domain.BiometricCredential, error) {
	return s.Store.BiometricCredentials().ListUserCredentials(ctx, userID)
}

// UpdateDevice renames or (de)activates one of the user's credentials.
func (s *BiometricService) UpdateDevice(ctx context.Context, userID, id string, name *string, active *bool) (domain.BiometricCredential, error) {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if name != nil {
			if err := tx.BiometricCredentials().UpdateCredentialName(ctx, userID, id, *name); err != nil {
				return err
			}
		}
		if active != nil {
			if err := tx.BiometricCredentials().UpdateCredentialActive(ctx, userID, id, *active); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.BiometricCredential{}, ErrDeviceNotFound
		}
		return domain.BiometricCredential{}, err
	}

	cred, err := s.Store.BiometricCredentials().GetUserCredential(ctx, userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.BiometricCredential{}, ErrDeviceNotFound
		}
		return domain.BiometricCredential{}, err
	}
	return cred, nil
}

// RemoveDevice deletes a credential. Removing the last one clears the
// user's biometric flag, so the next challenge request is refused.
func (s *BiometricService) RemoveDevice(ctx context.Context, userID, id string) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BiometricCredentials().DeleteCredential(ctx, userID, id); err != nil {
			return err
		}
		remaining, err := tx.BiometricCredentials().CountUserCredentials(ctx, userID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return tx.Users().SetBiometricEnabled(ctx, userID, false)
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrDeviceNotFound
	}
	return err
}

// SetEnabled toggles biometric login. Enabling requires at least one
// enrolled credential.
func (s *BiometricService) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	if enabled {
		count, err := s.Store.BiometricCredentials().CountUserCredentials(ctx, userID)
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNoCredentials
		}
	}
	return s.Store.Users().SetBiometricEnabled(ctx, userID, enabled)
}
