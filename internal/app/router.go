package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gymdesk/gymdesk/internal/apperrors"
	"github.com/gymdesk/gymdesk/internal/audit"
	"github.com/gymdesk/gymdesk/internal/auth"
	"github.com/gymdesk/gymdesk/internal/config"
	"github.com/gymdesk/gymdesk/internal/invites"
	"github.com/gymdesk/gymdesk/internal/onboarding"
	"github.com/gymdesk/gymdesk/internal/tenant"
	"github.com/gymdesk/gymdesk/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	isProduction := !cfg.IsDev()
	inviteTTL := time.Duration(cfg.InviteTTLDays) * 24 * time.Hour

	// Middleware stack
	r.Use(middleware.RealIP)              // Set RemoteAddr to real IP
	r.Use(apperrors.RequestIDMiddleware)  // Add request ID to context
	r.Use(LoggingMiddleware)              // Structured request logging
	r.Use(MetricsMiddleware)              // Prometheus request metrics
	r.Use(RecoveryMiddleware)             // Recover from panics
	r.Use(cors.Handler(cors.Options{     // CORS (pinned dep)
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.AuthMiddleware(cfg.JWTSecret, isProduction)) // Validate session cookies

	// Audit writer (shared across API routes)
	auditor := audit.NewWriter(pool)

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))
	r.Handle("/metrics", MetricsHandler())

	// Static assets
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))

	// Public routes - HTML pages
	r.Group(func(r chi.Router) {
		r.Use(NoCacheMiddleware) // Prevent caching of auth pages
		r.Get("/signup", web.HandleSignupPage(isProduction))
		r.Get("/login", web.HandleLoginPage(isProduction))
	})

	// API routes - Authentication
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)              // Set Content-Type to application/json
		r.Use(CSRFMiddleware(isProduction)) // Validate CSRF tokens

		r.Post("/signup", auth.HandleSignup(pool, auditor, cfg.JWTSecret, cfg.SessionDays, isProduction))

		// Login with rate limiting (10 requests per minute)
		r.With(LoginRateLimitMiddleware()).Post("/login", auth.HandleLogin(pool, auditor, cfg.JWTSecret, cfg.SessionDays, isProduction))

		r.With(auth.RequireAuth).Post("/logout", auth.HandleLogout())
		r.With(auth.RequireAuth).Get("/me", auth.HandleMe(pool))
	})

	// API routes - Accounts (require authentication)
	r.Route("/api/v1/accounts", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware(isProduction))
		r.Use(auth.RequireAuth)
		r.Use(APIRateLimitMiddleware(cfg.RateLimitRPM))

		// Account CRUD
		r.Post("/", tenant.HandleCreateAccount(pool, auditor))
		r.Get("/", tenant.HandleListAccounts(pool))
		r.Get("/{account_id}", tenant.HandleGetAccount(pool))
		r.Patch("/{account_id}", tenant.HandleUpdateAccount(pool, auditor))

		// Subaccounts (franchises)
		r.Post("/{account_id}/subaccounts", tenant.HandleCreateSubaccount(pool, auditor))
		r.Get("/{account_id}/subaccounts", tenant.HandleListSubaccounts(pool))

		// Staff members
		r.Get("/{account_id}/members", tenant.HandleListMembers(pool))
		r.Put("/{account_id}/members/{user_id}", tenant.HandleUpdateMemberRole(pool, auditor))
		r.Delete("/{account_id}/members/{user_id}", tenant.HandleRemoveMember(pool, auditor))

		// Staff invitations
		r.Post("/{account_id}/invites", invites.HandleCreate(pool, auditor, inviteTTL))
		r.Get("/{account_id}/invites", invites.HandleList(pool, inviteTTL))
		r.Delete("/{account_id}/invites/{invite_id}", invites.HandleRevoke(pool, auditor, inviteTTL))

		// Audit log (owner only)
		r.Get("/{account_id}/audit", tenant.HandleListAudit(pool))
	})

	// API routes - Invitations addressed to the session user
	r.Route("/api/v1/invitations", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware(isProduction))
		r.Use(auth.RequireAuth)

		r.Get("/", invites.HandleListMine(pool, inviteTTL))
		r.Post("/accept", invites.HandleAccept(pool, auditor, inviteTTL))
	})

	// API routes - Onboarding state
	r.Route("/api/v1/onboarding", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(auth.RequireAuth)

		r.Get("/", onboarding.HandleState(pool, inviteTTL))
	})

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuthPage)
		r.Use(NoCacheMiddleware)

		r.Get("/select-gym", web.HandleSelectGymPage(pool, inviteTTL, isProduction))
		r.Get("/dashboard", web.HandleDashboardPage(pool, isProduction))
		r.Get("/gyms/new", web.HandleGymCreatePage(isProduction))
		r.Get("/gyms/{account_id}/settings", web.HandleGymSettingsPage(pool, isProduction))
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
