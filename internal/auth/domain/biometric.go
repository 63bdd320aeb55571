package domain

import "time"

// BiometricCredential is one enrolled device key per user. At most one
// credential exists per (user, device) pair.
type BiometricCredential struct {
	ID           string     `json:"id"`
	UserID       string     `json:"-"`
	DeviceID     string     `json:"device_id"`
	DeviceName   string     `json:"device_name,omitempty"`
	DeviceType   string     `json:"device_type,omitempty"`
	PublicKey    string     `json:"-"` // base64 DER, PKIX or PKCS#1
	CredentialID string     `json:"credential_id"`
	Active       bool       `json:"active"`
	EnrolledAt   time.Time  `json:"enrolled_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

// BiometricChallenge is a single-use, time-limited random value bound to
// the device it was issued for.
type BiometricChallenge struct {
	Challenge string // base64 of 32 random bytes, unique
	DeviceID  string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (c BiometricChallenge) Expired(now time.Time) bool { return now.After(c.ExpiresAt) }

// BiometricChallengeResponse is returned to the device requesting a
// challenge.
type BiometricChallengeResponse struct {
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}
