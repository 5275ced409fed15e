package invites

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gymdesk/gymdesk/internal/apperrors"
	"github.com/gymdesk/gymdesk/internal/audit"
	"github.com/gymdesk/gymdesk/internal/auth"
	"github.com/gymdesk/gymdesk/internal/tenant"
	"github.com/gymdesk/gymdesk/internal/validation"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type CreateRequest struct {
	Email        string      `json:"email"`
	SubaccountID uuid.UUID   `json:"subaccount_id"`
	Role         tenant.Role `json:"role"`
}

type CreateResponse struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	SubaccountID uuid.UUID   `json:"subaccount_id"`
	Role         tenant.Role `json:"role"`
	ExpiresAt    string      `json:"expires_at"`
	Token        string      `json:"token"`
	AcceptURL    string      `json:"accept_url"`
}

type AcceptRequest struct {
	Token string `json:"token"`
}

// loadTenantContext resolves the caller's membership for account-scoped
// invitation routes, writing the error response itself on failure.
func loadTenantContext(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool) *tenant.Context {
	userID := auth.GetUserID(r.Context())

	accountID, err := uuid.Parse(chi.URLParam(r, "account_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid account ID")
		return nil
	}

	tc, err := tenant.NewService(pool).LoadContext(r.Context(), userID, accountID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotMember) {
			apperrors.WriteNotFound(w, r, "Account not found")
			return nil
		}
		log.Error().Err(err).Msg("Failed to load tenant context")
		apperrors.WriteInternalError(w, r, "Failed to load account")
		return nil
	}

	return tc
}

// HandleCreate handles POST /api/v1/accounts/{account_id}/invites
func HandleCreate(pool *pgxpool.Pool, auditor *audit.Writer, inviteTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tc := loadTenantContext(w, r, pool)
		if tc == nil {
			return
		}

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		email, err := validation.NormalizeEmail(req.Email)
		if err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}
		if req.SubaccountID == uuid.Nil {
			apperrors.WriteBadRequest(w, r, "Subaccount is required")
			return
		}
		if req.Role == "" {
			req.Role = tenant.RoleTrainer
		}

		service := NewService(pool, inviteTTL)
		invite, err := service.Create(ctx, *tc, req.SubaccountID, email, req.Role)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInviteRole), errors.Is(err, ErrCannotInviteOwner):
				apperrors.WriteBadRequest(w, r, err.Error())
			case errors.Is(err, tenant.ErrInsufficientPermissions):
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
			case errors.Is(err, tenant.ErrSubaccountNotFound):
				apperrors.WriteNotFound(w, r, "Subaccount not found")
			case errors.Is(err, ErrAlreadyPending):
				apperrors.WriteConflict(w, r, "An invitation is already pending for this email and franchise")
			default:
				log.Error().Err(err).Msg("Failed to create invitation")
				apperrors.WriteInternalError(w, r, "Failed to create invitation")
			}
			return
		}

		if err := auditor.LogInviteCreated(ctx, tc.AccountID, invite.SubaccountID, tc.UserID, invite.ID, invite.Email, string(invite.Role)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		// No email is dispatched; the owner relays this link manually.
		acceptURL := "/select-gym?token=" + url.QueryEscape(invite.Token)
		resp := CreateResponse{
			ID:           invite.ID,
			Email:        invite.Email,
			SubaccountID: invite.SubaccountID,
			Role:         invite.Role,
			ExpiresAt:    invite.ExpiresAt.Format(time.RFC3339),
			Token:        invite.Token,
			AcceptURL:    acceptURL,
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"invite": resp,
		})
	}
}

// HandleList handles GET /api/v1/accounts/{account_id}/invites
func HandleList(pool *pgxpool.Pool, inviteTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc := loadTenantContext(w, r, pool)
		if tc == nil {
			return
		}

		service := NewService(pool, inviteTTL)
		items, err := service.ListForAccount(r.Context(), *tc)
		if err != nil {
			if errors.Is(err, tenant.ErrInsufficientPermissions) {
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
				return
			}
			log.Error().Err(err).Msg("Failed to list invitations")
			apperrors.WriteInternalError(w, r, "Failed to list invitations")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invites": items,
		})
	}
}

// HandleRevoke handles DELETE /api/v1/accounts/{account_id}/invites/{invite_id}
func HandleRevoke(pool *pgxpool.Pool, auditor *audit.Writer, inviteTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc := loadTenantContext(w, r, pool)
		if tc == nil {
			return
		}

		inviteID, err := uuid.Parse(chi.URLParam(r, "invite_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invitation ID")
			return
		}

		service := NewService(pool, inviteTTL)
		if err := service.Revoke(r.Context(), *tc, inviteID); err != nil {
			switch {
			case errors.Is(err, tenant.ErrInsufficientPermissions):
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
			case errors.Is(err, ErrInviteNotFound):
				apperrors.WriteNotFound(w, r, "Invitation not found")
			default:
				log.Error().Err(err).Msg("Failed to revoke invitation")
				apperrors.WriteInternalError(w, r, "Failed to revoke invitation")
			}
			return
		}

		if err := auditor.LogInviteRevoked(r.Context(), tc.AccountID, tc.UserID, inviteID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"revoked": true,
		})
	}
}

// HandleListMine handles GET /api/v1/invitations
//
// Returns the pending invitations addressed to the session user's email,
// narrowed by ?token= when the user followed a deep link.
func HandleListMine(pool *pgxpool.Pool, inviteTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var email string
		if err := pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email); err != nil {
			log.Error().Err(err).Msg("Failed to load user")
			apperrors.WriteInternalError(w, r, "Failed to load invitations")
			return
		}

		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token != "" && !ValidateTokenFormat(token) {
			apperrors.WriteBadRequest(w, r, "Invalid invitation token")
			return
		}

		service := NewService(pool, inviteTTL)
		cards, err := service.ListPendingForEmail(ctx, email, token)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list invitations")
			apperrors.WriteInternalError(w, r, "Failed to list invitations")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invitations": cards,
		})
	}
}

// HandleAccept handles POST /api/v1/invitations/accept
func HandleAccept(pool *pgxpool.Pool, auditor *audit.Writer, inviteTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req AcceptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Token = strings.TrimSpace(req.Token)
		if req.Token == "" {
			apperrors.WriteBadRequest(w, r, "Invitation token is required")
			return
		}

		service := NewService(pool, inviteTTL)
		invite, role, err := service.Accept(ctx, req.Token, userID)
		if err != nil {
			switch {
			case errors.Is(err, ErrInviteNotFound):
				apperrors.WriteNotFound(w, r, "Invitation not found")
			case errors.Is(err, ErrInviteNotActive):
				apperrors.WriteConflict(w, r, "Invitation already used or revoked")
			case errors.Is(err, ErrInviteEmailMismatch):
				apperrors.WriteForbidden(w, r, "Invitation email does not match your account")
			default:
				log.Error().Err(err).Msg("Failed to accept invitation")
				apperrors.WriteInternalError(w, r, "Failed to accept invitation")
			}
			return
		}

		if err := auditor.LogInviteAccepted(ctx, invite.AccountID, userID, invite.ID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"accepted":   true,
			"invite_id":  invite.ID,
			"account_id": invite.AccountID,
			"role":       role,
		})
	}
}
