package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gymdesk/gymdesk/internal/auth"
	"github.com/gymdesk/gymdesk/internal/invites"
	"github.com/gymdesk/gymdesk/internal/tenant"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// HandleSignupPage renders the signup page
func HandleSignupPage(isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Check if user is already logged in
		userID := auth.GetUserID(r.Context())
		if userID != uuid.Nil {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}

		// Generate CSRF token
		csrfToken, err := auth.GenerateCSRFToken()
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// Set CSRF cookie
		auth.SetCSRFCookie(w, csrfToken, isProduction)

		data := &TemplateData{
			Title:           "Sign Up",
			IsAuthenticated: false,
			CSRFToken:       csrfToken,
			Next:            r.URL.Query().Get("next"),
		}
		RenderTemplate(w, r, "signup.html", data)
	}
}

// HandleLoginPage renders the login page
func HandleLoginPage(isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Check if user is already logged in
		userID := auth.GetUserID(r.Context())
		if userID != uuid.Nil {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}

		// Generate CSRF token
		csrfToken, err := auth.GenerateCSRFToken()
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// Set CSRF cookie
		auth.SetCSRFCookie(w, csrfToken, isProduction)

		data := &TemplateData{
			Title:           "Log In",
			IsAuthenticated: false,
			CSRFToken:       csrfToken,
			Next:            r.URL.Query().Get("next"),
		}
		RenderTemplate(w, r, "login.html", data)
	}
}

// HandleSelectGymPage renders the gym selection screen shown right after
// login. It lists the pending invitations addressed to the user, optionally
// narrowed by a deep-link token, plus the gyms the user already belongs to.
// A user with no invitations and no memberships is sent straight to the
// gym creation page.
func HandleSelectGymPage(pool *pgxpool.Pool, inviteTTL time.Duration, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		csrfToken, err := auth.GenerateCSRFToken()
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		auth.SetCSRFCookie(w, csrfToken, isProduction)

		var email string
		if err := pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email); err != nil {
			log.Error().Err(err).Msg("Failed to load user")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token != "" && !invites.ValidateTokenFormat(token) {
			token = ""
		}

		cards, err := invites.NewService(pool, inviteTTL).ListPendingForEmail(ctx, email, token)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list invitations")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		accounts, err := tenant.NewService(pool).ListUserAccounts(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list accounts")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// Nothing to pick from: the user starts a new gym.
		if len(cards) == 0 && len(accounts) == 0 {
			http.Redirect(w, r, "/gyms/new", http.StatusSeeOther)
			return
		}

		data := &TemplateData{
			Title:           "Select Gym",
			UserID:          userID,
			IsAuthenticated: true,
			CSRFToken:       csrfToken,
			Data: map[string]interface{}{
				"Invitations": cards,
				"Accounts":    accounts,
			},
		}
		RenderTemplate(w, r, "select_gym.html", data)
	}
}

// HandleDashboardPage renders the dashboard listing the user's gyms
func HandleDashboardPage(pool *pgxpool.Pool, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		csrfToken, err := auth.GenerateCSRFToken()
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		auth.SetCSRFCookie(w, csrfToken, isProduction)

		accounts, err := tenant.NewService(pool).ListUserAccounts(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list accounts")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if len(accounts) == 0 {
			http.Redirect(w, r, "/select-gym", http.StatusSeeOther)
			return
		}

		data := &TemplateData{
			Title:           "Dashboard",
			UserID:          userID,
			IsAuthenticated: true,
			CSRFToken:       csrfToken,
			Data: map[string]interface{}{
				"Accounts": accounts,
			},
		}
		RenderTemplate(w, r, "dashboard.html", data)
	}
}

// HandleGymCreatePage renders the gym creation page
func HandleGymCreatePage(isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.GetUserID(r.Context())

		csrfToken, err := auth.GenerateCSRFToken()
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		auth.SetCSRFCookie(w, csrfToken, isProduction)

		data := &TemplateData{
			Title:           "Create Gym",
			UserID:          userID,
			IsAuthenticated: true,
			CSRFToken:       csrfToken,
		}
		RenderTemplate(w, r, "gym_create.html", data)
	}
}

// HandleGymSettingsPage renders the gym settings page with franchises,
// staff members and open invitations. The invitation form is only shown
// to owners and managers.
func HandleGymSettingsPage(pool *pgxpool.Pool, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		accountID, err := uuid.Parse(chi.URLParam(r, "account_id"))
		if err != nil {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}

		csrfToken, err := auth.GenerateCSRFToken()
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		auth.SetCSRFCookie(w, csrfToken, isProduction)

		service := tenant.NewService(pool)
		tc, err := service.LoadContext(ctx, userID, accountID)
		if err != nil {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}

		acct, err := service.GetAccount(ctx, accountID)
		if err != nil {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}

		subaccounts, err := service.ListSubaccounts(ctx, *tc)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list subaccounts")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		pageData := map[string]interface{}{
			"Account":        acct,
			"Role":           tc.Role,
			"IsOwner":        tc.IsOwner,
			"CanManageStaff": tc.Role.CanManageStaff(),
			"Subaccounts":    subaccounts,
		}

		if tc.Role.CanManageStaff() {
			members, err := service.ListMembers(ctx, *tc)
			if err != nil {
				log.Error().Err(err).Msg("Failed to list members")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			pageData["Members"] = members

			// TTL is only used for display on new invitations here.
			openInvites, err := invites.NewService(pool, 0).ListForAccount(ctx, *tc)
			if err != nil {
				log.Error().Err(err).Msg("Failed to list invitations")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			pageData["Invites"] = openInvites
		}

		data := &TemplateData{
			Title:           acct.Name,
			UserID:          userID,
			IsAuthenticated: true,
			CSRFToken:       csrfToken,
			Data:            pageData,
		}
		RenderTemplate(w, r, "gym_settings.html", data)
	}
}
