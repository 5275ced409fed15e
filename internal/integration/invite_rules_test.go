package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gymdesk/gymdesk/internal/app"
	"github.com/gymdesk/gymdesk/internal/tenant"
	"github.com/stretchr/testify/require"
)

func TestE2E_ExpiredPendingInviteRemainsAcceptable(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := httptest.NewServer(app.NewRouter(pool, testConfig()))
	t.Cleanup(srv.Close)

	ownerClient, ownerCSRF := newCSRFClient(t, srv.URL)
	trainerClient, trainerCSRF := newCSRFClient(t, srv.URL)

	trainerEmail := "trainer@example.com"
	ownerUserID := signupAndLogin(t, ownerClient, srv.URL, ownerCSRF, "owner@example.com", "Olive Owner", "password123")
	trainerUserID := signupAndLogin(t, trainerClient, srv.URL, trainerCSRF, trainerEmail, "Tina Trainer", "password123")

	accountID, subaccountID := createGym(t, ownerClient, srv.URL, ownerCSRF, "Lift Lab")

	token, _ := createInvite(t, ownerClient, srv.URL, ownerCSRF, accountID, subaccountID, trainerEmail, tenant.RoleTrainer)

	// Push the invitation well past its advertised expiry window.
	tag, err := pool.Exec(context.Background(), `
		UPDATE invitations
		SET created_at = NOW() - INTERVAL '30 days',
		    expires_at = NOW() - INTERVAL '23 days'
		WHERE token = $1
	`, token)
	require.NoError(t, err)
	require.EqualValues(t, 1, tag.RowsAffected())

	// The expiry date is informational. A pending invitation stays on the
	// invitee's list and stays acceptable until someone revokes it.
	cards := listMyInvites(t, trainerClient, srv.URL, "")
	require.Len(t, cards, 1)
	require.Equal(t, token, cards[0].Token)

	acceptInvite(t, trainerClient, srv.URL, trainerCSRF, token)

	members := listMembers(t, ownerClient, srv.URL, accountID)
	require.Len(t, members, 2)
	byUser := make(map[uuid.UUID]tenant.MemberInfo)
	for _, m := range members {
		byUser[m.UserID] = m
	}
	require.Equal(t, tenant.RoleOwner, byUser[ownerUserID].Role)
	require.Equal(t, tenant.RoleTrainer, byUser[trainerUserID].Role)
}

func TestE2E_InviteCreationRules(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := httptest.NewServer(app.NewRouter(pool, testConfig()))
	t.Cleanup(srv.Close)

	ownerClient, ownerCSRF := newCSRFClient(t, srv.URL)
	signupAndLogin(t, ownerClient, srv.URL, ownerCSRF, "owner@example.com", "Olive Owner", "password123")

	accountID, subaccountID := createGym(t, ownerClient, srv.URL, ownerCSRF, "Lift Lab")
	invitesURL := srv.URL + "/api/v1/accounts/" + accountID.String() + "/invites"

	// Ownership is granted at gym creation only, never by invitation.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPost, invitesURL, ownerCSRF, http.StatusBadRequest, map[string]any{
			"email":         "second-owner@example.com",
			"subaccount_id": subaccountID,
			"role":          string(tenant.RoleOwner),
		})
		require.Equal(t, "bad_request", errEnv.Error.Code)
	}

	// Made-up roles are rejected the same way.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPost, invitesURL, ownerCSRF, http.StatusBadRequest, map[string]any{
			"email":         "janitor@example.com",
			"subaccount_id": subaccountID,
			"role":          "JANITOR",
		})
		require.Equal(t, "bad_request", errEnv.Error.Code)
	}

	// The franchise must belong to the caller's gym.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPost, invitesURL, ownerCSRF, http.StatusNotFound, map[string]any{
			"email":         "trainer@example.com",
			"subaccount_id": uuid.New(),
			"role":          string(tenant.RoleTrainer),
		})
		require.Equal(t, "not_found", errEnv.Error.Code)
	}

	// Nothing above left an invitation behind.
	require.Empty(t, listOpenInvites(t, ownerClient, srv.URL, accountID))
}
