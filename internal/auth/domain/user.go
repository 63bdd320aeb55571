package domain

import "time"

type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
	RoleAdmin    Role = "admin"
)

// Status is the account lifecycle state. Accounts are never deleted by
// the auth core, only transitioned.
type Status string

const (
	StatusPendingVerification Status = "pending_verification"
	StatusPendingProfile      Status = "pending_profile"
	StatusActive              Status = "active"
	StatusSuspended           Status = "suspended"
	StatusDeleted             Status = "deleted"
)

type User struct {
	ID               string
	Email            string // stored lowercase
	PasswordHash     string // argon2id PHC encoded
	FullName         string
	Role             Role
	Status           Status
	MFAEnabled       bool
	BiometricEnabled bool

	// Hashed single-purpose tokens for the email verification and
	// password reset flows. Nil when no token is outstanding.
	VerifyTokenHash     *string
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanAuthenticate reports whether the account may complete a login.
// Pending-profile users can sign in (to finish onboarding); accounts
// pending email verification, suspended or deleted cannot.
func (u User) CanAuthenticate() bool {
	return u.Status == StatusActive || u.Status == StatusPendingProfile
}

// Profile is the sanitized client-facing view of a user. No secrets,
// empty fields omitted.
type Profile struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FullName         string    `json:"full_name,omitempty"`
	Role             Role      `json:"role"`
	Status           Status    `json:"status"`
	MFAEnabled       bool      `json:"mfa_enabled"`
	BiometricEnabled bool      `json:"biometric_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:               u.ID,
		Email:            u.Email,
		FullName:         u.FullName,
		Role:             u.Role,
		Status:           u.Status,
		MFAEnabled:       u.MFAEnabled,
		BiometricEnabled: u.BiometricEnabled,
		CreatedAt:        u.CreatedAt,
	}
}
