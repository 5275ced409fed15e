package invites

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken_FormatAndLength(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)

	require.Len(t, token, TokenLength)
	require.True(t, ValidateTokenFormat(token))
}

func TestGenerateToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateToken()
		require.NoError(t, err)
		require.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
}

func TestTokenFragment_FixedWidth(t *testing.T) {
	for i := 0; i < 100; i++ {
		frag, err := tokenFragment()
		require.NoError(t, err)
		require.Len(t, frag, tokenFragmentChars)
	}
}

func TestValidateTokenFormat_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"too short", "abc123"},
		{"too long", "0123456789abcdef0123456789abcdef"},
		{"uppercase", "ABCDEFGHIJKLMABCDEFGHIJKLM"},
		{"punctuation", "abcdefghijklm-bcdefghijklm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.False(t, ValidateTokenFormat(tt.token))
		})
	}
}
