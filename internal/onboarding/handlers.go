// Package onboarding decides where a freshly authenticated user lands.
package onboarding

import (
	"net/http"
	"strings"
	"time"

	"github.com/gymdesk/gymdesk/internal/apperrors"
	"github.com/gymdesk/gymdesk/internal/auth"
	"github.com/gymdesk/gymdesk/internal/invites"
	"github.com/gymdesk/gymdesk/internal/tenant"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Next destinations returned by the onboarding endpoint.
const (
	NextSelectGym     = "select_gym"
	NextDashboard     = "dashboard"
	NextCreateAccount = "create_account"
)

// State is what the frontend needs right after login: the user's pending
// invitations, the accounts they already belong to, and which screen to
// show next.
type State struct {
	Invitations []invites.Card           `json:"invitations"`
	Accounts    []tenant.AccountWithRole `json:"accounts"`
	Next        string                   `json:"next"`
}

// HandleState handles GET /api/v1/onboarding
//
// The routing rule: any pending invitation sends the user to the select-gym
// screen, an existing membership sends them to the dashboard, and a user
// with neither is sent to create a new gym.
func HandleState(pool *pgxpool.Pool, inviteTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var email string
		if err := pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email); err != nil {
			log.Error().Err(err).Msg("Failed to load user")
			apperrors.WriteInternalError(w, r, "Failed to load onboarding state")
			return
		}

		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token != "" && !invites.ValidateTokenFormat(token) {
			token = ""
		}

		cards, err := invites.NewService(pool, inviteTTL).ListPendingForEmail(ctx, email, token)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list invitations")
			apperrors.WriteInternalError(w, r, "Failed to load onboarding state")
			return
		}

		accounts, err := tenant.NewService(pool).ListUserAccounts(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list accounts")
			apperrors.WriteInternalError(w, r, "Failed to load onboarding state")
			return
		}

		state := State{
			Invitations: cards,
			Accounts:    accounts,
			Next:        NextCreateAccount,
		}
		switch {
		case len(cards) > 0:
			state.Next = NextSelectGym
		case len(accounts) > 0:
			state.Next = NextDashboard
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, state)
	}
}
