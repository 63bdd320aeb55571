package domain

import "time"

// MfaSecret holds a user's TOTP seed, encrypted at rest. Verified stays
// false until the user proves possession with a valid code; an unverified
// secret may be replaced by restarting setup.
type MfaSecret struct {
	UserID          string
	SecretEncrypted string // nonce:tag:ciphertext, hex segments
	Verified        bool
	EnabledAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BackupCode is a single one-time recovery code, stored only as a hash.
type BackupCode struct {
	ID        string
	UserID    string
	CodeHash  string
	UsedAt    *time.Time
	CreatedAt time.Time
}

// PendingSession represents "password verified, second factor required".
// Single-use and short-lived.
type PendingSession struct {
	Token     string // opaque, "mfa_"-prefixed for recognizability
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (s PendingSession) Expired(now time.Time) bool { return now.After(s.ExpiresAt) }

// MFASetupResponse carries the material shown to the user exactly once
// at setup: the raw seed, the otpauth:// URI, and the plaintext backup
// codes. None of it is ever stored in this form.
type MFASetupResponse struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	BackupCodes     []string `json:"backup_codes"`
}

// MFAStatus summarizes a user's second-factor state.
type MFAStatus struct {
	Enabled              bool `json:"enabled"`
	Verified             bool `json:"verified"`
	BackupCodesRemaining int  `json:"backup_codes_remaining"`
}

// LoginResult is either an issued token pair or an MFA gate.
type LoginResult struct {
	MFARequired  bool       `json:"mfa_required"`
	PendingToken string     `json:"pending_token,omitempty"`
	ExpiresAt    *time.Time `json:"pending_expires_at,omitempty"`
	Tokens       *TokenPair `json:"tokens,omitempty"`
	User         *Profile   `json:"user,omitempty"`
}
