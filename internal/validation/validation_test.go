package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	require.NoError(t, ValidateName("Iron Temple"))
	require.ErrorIs(t, ValidateName(""), ErrNameRequired)
	require.ErrorIs(t, ValidateName("   "), ErrNameRequired)
	require.ErrorIs(t, ValidateName(strings.Repeat("x", 201)), ErrNameTooLong)
}

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  manager@example.com ")
	require.NoError(t, err)
	require.Equal(t, "manager@example.com", email)

	_, err = NormalizeEmail("")
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NormalizeEmail("not-an-email")
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NormalizeEmail(strings.Repeat("x", 315) + "@ex.com")
	require.ErrorIs(t, err, ErrEmailTooLong)
}

func TestNormalizeCurrency(t *testing.T) {
	code, err := NormalizeCurrency(" usd ")
	require.NoError(t, err)
	require.Equal(t, "USD", code)

	_, err = NormalizeCurrency("dollars")
	require.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = NormalizeCurrency("")
	require.ErrorIs(t, err, ErrInvalidCurrency)
}
