package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
)

// Signer signs access tokens with a single Ed25519 key.
type Signer struct {
	key ed25519.PrivateKey
}

// Verifier validates tokens signed by the matching Signer.
type Verifier struct {
	pub    ed25519.PublicKey
	issuer string // empty means "don't enforce"
}

// NewSigner creates a signer from a base64url-encoded 32-byte Ed25519 seed.
// An empty seed generates an ephemeral key: fine for a single instance,
// tokens won't survive a restart.
func NewSigner(seedB64 string) (*Signer, error) {
	if seedB64 == "" {
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate ephemeral key: %w", err)
		}
		return &Signer{key: key}, nil
	}

	seed, err := base64.RawURLEncoding.DecodeString(seedB64)
	if err != nil {
		return nil, fmt.Errorf("jwtx: decode signing seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwtx: signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Sign produces a compact EdDSA-signed JWT for the given claims.
func (s *Signer) Sign(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, c).SignedString(s.key)
}

// Verifier returns a Verifier bound to this signer's public key.
func (s *Signer) Verifier(issuer string) *Verifier {
	return &Verifier{
		pub:    s.key.Public().(ed25519.PublicKey),
		issuer: issuer,
	}
}

// Verify parses and validates a compact token, returning its claims.
func (v *Verifier) Verify(token string) (Claims, error) {
	var claims Claims

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodEdDSA.Alg() {
			return nil, ErrAlgMismatch
		}
		return v.pub, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrInvalidSig
	case errors.Is(err, ErrAlgMismatch):
		return Claims{}, ErrAlgMismatch
	default:
		return Claims{}, ErrMalformed
	}

	if !parsed.Valid {
		return Claims{}, ErrInvalidSig
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return Claims{}, ErrIssuer
	}
	return claims, nil
}
