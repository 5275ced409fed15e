package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCreateToken_AndValidateToken(t *testing.T) {
	userID := uuid.New()
	secret := "gymdesk-test-secret"

	token, err := CreateToken(userID, secret, 7)
	require.NoError(t, err)

	claims, err := ValidateToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, userID.String(), claims.Subject)
}

func TestCreateToken_ExpiryFollowsSessionDays(t *testing.T) {
	for _, sessionDays := range []int{1, 7, 30} {
		token, err := CreateToken(uuid.New(), "gymdesk-test-secret", sessionDays)
		require.NoError(t, err)

		claims, err := ValidateToken(token, "gymdesk-test-secret")
		require.NoError(t, err)
		require.NotNil(t, claims.ExpiresAt)

		want := time.Now().Add(time.Duration(sessionDays) * 24 * time.Hour)
		require.WithinDuration(t, want, claims.ExpiresAt.Time, time.Minute)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := CreateToken(uuid.New(), "secret-a", 7)
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret-b")
	require.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := CreateToken(uuid.New(), "gymdesk-test-secret", -1)
	require.NoError(t, err)

	_, err = ValidateToken(token, "gymdesk-test-secret")
	require.Error(t, err)
}
