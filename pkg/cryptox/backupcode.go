package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// BackupCodeLength is the fixed length of recovery codes.
const BackupCodeLength = 8

// backupCodeCharset excludes the visually ambiguous characters
// 0, O, 1, I and l so codes survive being read aloud or hand-typed.
const backupCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// GenerateBackupCode creates a single human-typable one-time recovery code.
func GenerateBackupCode() (string, error) {
	code := make([]byte, BackupCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(backupCodeCharset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate backup code: %w", err)
		}
		code[i] = backupCodeCharset[n.Int64()]
	}
	return string(code), nil
}
