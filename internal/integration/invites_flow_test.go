package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/gymdesk/gymdesk/internal/app"
	"github.com/gymdesk/gymdesk/internal/auth"
	"github.com/gymdesk/gymdesk/internal/config"
	"github.com/gymdesk/gymdesk/internal/invites"
	"github.com/gymdesk/gymdesk/internal/tenant"
	"github.com/stretchr/testify/require"
)

type envelopeResponse struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func testConfig() *config.Config {
	return &config.Config{
		Env:           "dev",
		HTTPAddr:      ":0",
		BaseURL:       "http://localhost",
		DBDSN:         "unused",
		JWTSecret:     "test-secret",
		LogLevel:      "error",
		RateLimitRPM:  1000,
		SessionDays:   7,
		InviteTTLDays: 7,
	}
}

func TestE2E_InviteLifecycle_SelectGymRouting_Audit(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := httptest.NewServer(app.NewRouter(pool, testConfig()))
	t.Cleanup(srv.Close)

	ownerClient, ownerCSRF := newCSRFClient(t, srv.URL)
	managerClient, managerCSRF := newCSRFClient(t, srv.URL)
	strangerClient, strangerCSRF := newCSRFClient(t, srv.URL)

	ownerEmail := "owner@example.com"
	managerEmail := "manager@example.com"
	strangerEmail := "stranger@example.com"
	password := "password123"

	ownerUserID := signupAndLogin(t, ownerClient, srv.URL, ownerCSRF, ownerEmail, "Olive Owner", password)
	managerUserID := signupAndLogin(t, managerClient, srv.URL, managerCSRF, managerEmail, "Mani Manager", password)
	signupAndLogin(t, strangerClient, srv.URL, strangerCSRF, strangerEmail, "Sam Stranger", password)

	accountID, subaccountID := createGym(t, ownerClient, srv.URL, ownerCSRF, "Iron Temple")

	// A fresh user with no invitations and no gyms is routed to gym creation.
	onboarding := getOnboarding(t, managerClient, srv.URL, "")
	require.Equal(t, "create_account", onboarding.Next)

	inviteToken, acceptURL := createInvite(t, ownerClient, srv.URL, ownerCSRF, accountID, subaccountID, managerEmail, tenant.RoleManager)
	require.Len(t, inviteToken, invites.TokenLength)
	require.Equal(t, "/select-gym?token="+inviteToken, acceptURL)

	// Only one pending invitation per email and franchise.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/accounts/"+accountID.String()+"/invites", ownerCSRF, http.StatusConflict, map[string]any{
			"email":         managerEmail,
			"subaccount_id": subaccountID,
			"role":          string(tenant.RoleManager),
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
		require.Equal(t, "An invitation is already pending for this email and franchise", errEnv.Error.Message)
	}

	// A pending invitation routes the invitee to the gym selection screen.
	onboarding = getOnboarding(t, managerClient, srv.URL, inviteToken)
	require.Equal(t, "select_gym", onboarding.Next)
	require.Len(t, onboarding.Invitations, 1)
	require.Equal(t, "Iron Temple", onboarding.Invitations[0].AccountName)
	require.Equal(t, tenant.RoleManager, onboarding.Invitations[0].Role)

	// The invitee starting their own gym leaves the invitation pending.
	managerOwnGymID, _ := createGym(t, managerClient, srv.URL, managerCSRF, "Side Hustle Fitness")
	cards := listMyInvites(t, managerClient, srv.URL, "")
	require.Len(t, cards, 1)
	require.Equal(t, inviteToken, cards[0].Token)

	// The token belongs to the manager's email only.
	{
		errEnv := doJSONExpectError(t, strangerClient, http.MethodPost, srv.URL+"/api/v1/invitations/accept", strangerCSRF, http.StatusForbidden, map[string]any{
			"token": inviteToken,
		})
		require.Equal(t, "forbidden", errEnv.Error.Code)
	}

	acceptInvite(t, managerClient, srv.URL, managerCSRF, inviteToken)

	// Accepting is exactly-once.
	{
		errEnv := doJSONExpectError(t, managerClient, http.MethodPost, srv.URL+"/api/v1/invitations/accept", managerCSRF, http.StatusConflict, map[string]any{
			"token": inviteToken,
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	members := listMembers(t, ownerClient, srv.URL, accountID)
	require.Len(t, members, 2)
	byUser := make(map[uuid.UUID]tenant.MemberInfo)
	for _, m := range members {
		byUser[m.UserID] = m
	}
	require.Equal(t, tenant.RoleOwner, byUser[ownerUserID].Role)
	require.Equal(t, tenant.RoleManager, byUser[managerUserID].Role)
	require.False(t, byUser[managerUserID].IsOwner)

	// The manager's own gym is untouched by the acceptance.
	managerGyms := listAccounts(t, managerClient, srv.URL)
	require.Len(t, managerGyms, 2)
	gymIDs := []uuid.UUID{managerGyms[0].ID, managerGyms[1].ID}
	require.Contains(t, gymIDs, accountID)
	require.Contains(t, gymIDs, managerOwnGymID)

	// Managers may not grant the manager role.
	{
		errEnv := doJSONExpectError(t, managerClient, http.MethodPost, srv.URL+"/api/v1/accounts/"+accountID.String()+"/invites", managerCSRF, http.StatusForbidden, map[string]any{
			"email":         strangerEmail,
			"subaccount_id": subaccountID,
			"role":          string(tenant.RoleManager),
		})
		require.Equal(t, "forbidden", errEnv.Error.Code)
	}

	// A revoked invitation is no longer acceptable.
	strangerToken, _ := createInvite(t, ownerClient, srv.URL, ownerCSRF, accountID, subaccountID, strangerEmail, tenant.RoleTrainer)
	strangerInviteID := listOpenInvites(t, ownerClient, srv.URL, accountID)[0].ID
	doJSONExpectSuccess(t, ownerClient, http.MethodDelete, srv.URL+"/api/v1/accounts/"+accountID.String()+"/invites/"+strangerInviteID.String(), ownerCSRF, http.StatusOK, nil)
	{
		errEnv := doJSONExpectError(t, strangerClient, http.MethodPost, srv.URL+"/api/v1/invitations/accept", strangerCSRF, http.StatusConflict, map[string]any{
			"token": strangerToken,
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	// Last-owner guardrails.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPut, srv.URL+"/api/v1/accounts/"+accountID.String()+"/members/"+ownerUserID.String(), ownerCSRF, http.StatusConflict, map[string]any{
			"role": string(tenant.RoleTrainer),
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
	}
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodDelete, srv.URL+"/api/v1/accounts/"+accountID.String()+"/members/"+ownerUserID.String(), ownerCSRF, http.StatusConflict, nil)
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	removeMember(t, ownerClient, srv.URL, ownerCSRF, accountID, managerUserID)

	events := listAudit(t, ownerClient, srv.URL, accountID, 50)
	actions := make(map[string]bool)
	for _, ev := range events {
		actions[ev.Action] = true
	}
	require.True(t, actions["account.created"], "missing account.created audit event")
	require.True(t, actions["invite.created"], "missing invite.created audit event")
	require.True(t, actions["invite.accepted"], "missing invite.accepted audit event")
	require.True(t, actions["invite.revoked"], "missing invite.revoked audit event")
	require.True(t, actions["member.removed"], "missing member.removed audit event")
}

func newCSRFClient(t *testing.T, serverURL string) (*http.Client, string) {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	baseURL, err := url.Parse(serverURL)
	require.NoError(t, err)

	csrfToken, err := auth.GenerateCSRFToken()
	require.NoError(t, err)
	jar.SetCookies(baseURL, []*http.Cookie{{
		Name:  auth.CSRFCookieName,
		Value: csrfToken,
		Path:  "/",
	}})

	return client, csrfToken
}

func signupAndLogin(t *testing.T, client *http.Client, baseURL, csrfToken, email, name, password string) uuid.UUID {
	t.Helper()

	signupResp := doJSONExpectSuccess(t, client, http.MethodPost, baseURL+"/api/v1/auth/signup", csrfToken, http.StatusCreated, map[string]any{
		"email":    email,
		"name":     name,
		"password": password,
	})

	var signup struct {
		User struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(signupResp.Data, &signup))
	require.NotEqual(t, uuid.Nil, signup.User.ID)

	doJSONExpectSuccess(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", csrfToken, http.StatusOK, map[string]any{
		"email":    email,
		"password": password,
	})

	return signup.User.ID
}

func createGym(t *testing.T, client *http.Client, baseURL, csrfToken, name string) (accountID, subaccountID uuid.UUID) {
	t.Helper()

	resp := doJSONExpectSuccess(t, client, http.MethodPost, baseURL+"/api/v1/accounts/", csrfToken, http.StatusCreated, map[string]any{
		"name": name,
	})

	var parsed struct {
		Account struct {
			ID uuid.UUID `json:"id"`
		} `json:"account"`
		Subaccount struct {
			ID uuid.UUID `json:"id"`
		} `json:"subaccount"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &parsed))
	require.NotEqual(t, uuid.Nil, parsed.Account.ID)
	require.NotEqual(t, uuid.Nil, parsed.Subaccount.ID)

	return parsed.Account.ID, parsed.Subaccount.ID
}

func createInvite(t *testing.T, client *http.Client, baseURL, csrfToken string, accountID, subaccountID uuid.UUID, email string, role tenant.Role) (token, acceptURL string) {
	t.Helper()

	resp := doJSONExpectSuccess(t, client, http.MethodPost, baseURL+"/api/v1/accounts/"+accountID.String()+"/invites", csrfToken, http.StatusCreated, map[string]any{
		"email":         email,
		"subaccount_id": subaccountID,
		"role":          string(role),
	})

	var parsed struct {
		Invite struct {
			Token     string `json:"token"`
			AcceptURL string `json:"accept_url"`
		} `json:"invite"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &parsed))
	require.NotEmpty(t, parsed.Invite.Token)

	return parsed.Invite.Token, parsed.Invite.AcceptURL
}

func acceptInvite(t *testing.T, client *http.Client, baseURL, csrfToken, token string) {
	t.Helper()

	doJSONExpectSuccess(t, client, http.MethodPost, baseURL+"/api/v1/invitations/accept", csrfToken, http.StatusOK, map[string]any{
		"token": token,
	})
}

type onboardingState struct {
	Invitations []invites.Card `json:"invitations"`
	Next        string         `json:"next"`
}

func getOnboarding(t *testing.T, client *http.Client, baseURL, token string) onboardingState {
	t.Helper()

	u := baseURL + "/api/v1/onboarding/"
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	resp := getJSONExpectSuccess(t, client, u)

	var state onboardingState
	require.NoError(t, json.Unmarshal(resp.Data, &state))
	return state
}

func listMyInvites(t *testing.T, client *http.Client, baseURL, token string) []invites.Card {
	t.Helper()

	u := baseURL + "/api/v1/invitations/"
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	resp := getJSONExpectSuccess(t, client, u)

	var parsed struct {
		Invitations []invites.Card `json:"invitations"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &parsed))
	return parsed.Invitations
}

func listOpenInvites(t *testing.T, client *http.Client, baseURL string, accountID uuid.UUID) []invites.ListItem {
	t.Helper()

	resp := getJSONExpectSuccess(t, client, baseURL+"/api/v1/accounts/"+accountID.String()+"/invites")

	var parsed struct {
		Invites []invites.ListItem `json:"invites"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &parsed))
	return parsed.Invites
}

func listAccounts(t *testing.T, client *http.Client, baseURL string) []tenant.AccountWithRole {
	t.Helper()

	resp := getJSONExpectSuccess(t, client, baseURL+"/api/v1/accounts/")

	var parsed struct {
		Accounts []tenant.AccountWithRole `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &parsed))
	return parsed.Accounts
}

func listMembers(t *testing.T, client *http.Client, baseURL string, accountID uuid.UUID) []tenant.MemberInfo {
	t.Helper()

	resp := getJSONExpectSuccess(t, client, baseURL+"/api/v1/accounts/"+accountID.String()+"/members")

	var parsed struct {
		Members []tenant.MemberInfo `json:"members"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &parsed))
	return parsed.Members
}

func removeMember(t *testing.T, client *http.Client, baseURL, csrfToken string, accountID, userID uuid.UUID) {
	t.Helper()

	doJSONExpectSuccess(t, client, http.MethodDelete, baseURL+"/api/v1/accounts/"+accountID.String()+"/members/"+userID.String(), csrfToken, http.StatusOK, nil)
}

func listAudit(t *testing.T, client *http.Client, baseURL string, accountID uuid.UUID, limit int) []struct {
	Action string `json:"action"`
} {
	t.Helper()

	resp := getJSONExpectSuccess(t, client, baseURL+"/api/v1/accounts/"+accountID.String()+"/audit?limit="+strconv.Itoa(limit))

	var parsed struct {
		Events []struct {
			Action string `json:"action"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &parsed))
	return parsed.Events
}

func getJSONExpectSuccess(t *testing.T, client *http.Client, urlStr string) envelopeResponse {
	t.Helper()

	resp, err := client.Get(urlStr)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", string(body))

	var env envelopeResponse
	require.NoError(t, json.Unmarshal(body, &env))
	require.NotEmpty(t, env.RequestID)

	return env
}

func doJSONExpectSuccess(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) envelopeResponse {
	t.Helper()

	respBody := doJSONExpectStatus(t, client, method, urlStr, csrfToken, wantStatus, payload)

	var env envelopeResponse
	require.NoError(t, json.Unmarshal(respBody, &env))
	require.NotEmpty(t, env.RequestID)

	return env
}

func doJSONExpectError(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) errorEnvelope {
	t.Helper()

	respBody := doJSONExpectStatus(t, client, method, urlStr, csrfToken, wantStatus, payload)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(respBody, &env))
	require.NotEmpty(t, env.Error.RequestID)

	return env
}

func doJSONExpectStatus(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) []byte {
	t.Helper()

	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, urlStr, bodyReader)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		req.Header.Set(auth.CSRFHeaderName, csrfToken)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "body: %s", string(body))

	return body
}
