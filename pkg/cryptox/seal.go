package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrCipherInvalid is returned for any malformed, tampered or
// wrong-key ciphertext. Callers must treat it as a verification
// failure, never as a server fault.
var ErrCipherInvalid = errors.New("cryptox: invalid ciphertext")

const (
	cipherKeyLength = 32 // AES-256
	gcmTagLength    = 16

	// cipherKeySalt is a fixed application salt for the derived-key
	// fallback. Fixed on purpose: the same app secret must always derive
	// the same key without storing anything alongside it.
	cipherKeySalt = "rentora-auth-secret-seal-v1"
)

// SecretCipher provides authenticated encryption for secrets at rest
// (the TOTP seed). Stored values are self-contained:
// hex(nonce):hex(tag):hex(ciphertext).
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher builds a cipher from an explicit 32-byte key.
func NewSecretCipher(key []byte) (*SecretCipher, error) {
	if len(key) != cipherKeyLength {
		return nil, fmt.Errorf("cryptox: cipher key must be %d bytes, got %d", cipherKeyLength, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create gcm: %w", err)
	}
	return &SecretCipher{aead: aead}, nil
}

// DeriveCipherKey derives a 32-byte cipher key from an application secret
// using Argon2id with a fixed salt. This is the fallback for deployments
// without a dedicated encryption key; a dedicated random key is preferred.
func DeriveCipherKey(appSecret string) []byte {
	return argon2.IDKey([]byte(appSecret), []byte(cipherKeySalt), iterations, memory, parallelism, cipherKeyLength)
}

// Encrypt seals plaintext with a fresh random nonce and returns the
// colon-delimited hex form nonce:tag:ciphertext.
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("cryptox: generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// gcm.Seal appends the tag after the ciphertext; split them so the
	// stored form matches nonce:tag:ciphertext.
	ct := sealed[:len(sealed)-gcmTagLength]
	tag := sealed[len(sealed)-gcmTagLength:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt opens a value produced by Encrypt. Any parse failure or
// authentication-tag mismatch yields ErrCipherInvalid.
func (c *SecretCipher) Decrypt(stored string) (string, error) {
	parts := strings.Split(stored, ":")
	if len(parts) != 3 {
		return "", ErrCipherInvalid
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrCipherInvalid
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != gcmTagLength {
		return "", ErrCipherInvalid
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrCipherInvalid
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", ErrCipherInvalid
	}
	return string(plaintext), nil
}
