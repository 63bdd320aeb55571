package cryptox

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
)

// ErrSignatureInvalid is the single failure mode for challenge signature
// verification. Decode errors, unsupported keys and bad signatures all
// collapse into it so callers cannot distinguish which check failed.
var ErrSignatureInvalid = errors.New("cryptox: signature verification failed")

// VerifyRSASignature checks that sigB64 is a valid RSA-SHA256 (PKCS#1 v1.5)
// signature over message, using the base64-encoded DER public key pubB64.
// Keys are accepted in PKIX (SubjectPublicKeyInfo) form, or in bare PKCS#1
// form which gets coerced through the standard wrapper.
func VerifyRSASignature(pubB64, message, sigB64 string) error {
	der, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return ErrSignatureInvalid
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return ErrSignatureInvalid
	}

	pub, err := parseRSAPublicKey(der)
	if err != nil {
		return ErrSignatureInvalid
	}

	digest := sha256.Sum256([]byte(message))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

func parseRSAPublicKey(der []byte) (*rsa.PublicKey, error) {
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		if pub, ok := key.(*rsa.PublicKey); ok {
			return pub, nil
		}
		return nil, errors.New("cryptox: not an RSA public key")
	}
	// Bare PKCS#1 keys lack the SubjectPublicKeyInfo wrapper.
	return x509.ParsePKCS1PublicKey(der)
}
