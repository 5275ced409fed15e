package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSessionCookie_RoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := CreateToken(userID, "gymdesk-test-secret", 7)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	SetSessionCookie(rec, token, 7, false)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	require.Equal(t, SessionCookieName, cookie.Name)
	require.True(t, cookie.HttpOnly)
	require.False(t, cookie.Secure)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, 7*24*60*60, cookie.MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	require.Equal(t, token, GetSessionCookie(req))

	claims, err := ValidateToken(GetSessionCookie(req), "gymdesk-test-secret")
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
}

func TestSessionCookie_SecureInProduction(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "token", 7, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.True(t, cookies[0].Secure)
}

func TestClearSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearSessionCookie(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookieName, cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.Negative(t, cookies[0].MaxAge)
}

func TestGetSessionCookie_Absent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	require.Empty(t, GetSessionCookie(req))
}
