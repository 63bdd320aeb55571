package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateBackupCodeShape(t *testing.T) {
	t.Parallel()

	for range 100 {
		code, err := GenerateBackupCode()
		require.NoError(t, err)
		require.Len(t, code, BackupCodeLength)

		// Ambiguous characters are excluded from the charset.
		for _, c := range "0O1Il" {
			require.NotContains(t, code, string(c))
		}
		for _, c := range code {
			require.True(t, strings.ContainsRune(backupCodeCharset, c), "unexpected char %q", c)
		}
	}
}

func TestGenerateBackupCodeVaries(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 50 {
		code, err := GenerateBackupCode()
		require.NoError(t, err)
		seen[code] = true
	}
	require.Greater(t, len(seen), 45, "codes should be effectively unique")
}
