package tenant

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gymdesk/gymdesk/internal/apperrors"
	"github.com/gymdesk/gymdesk/internal/audit"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type MemberRoleUpdateRequest struct {
	Role Role `json:"role"`
}

// HandleListMembers handles GET /api/v1/accounts/{account_id}/members
func HandleListMembers(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := NewService(pool)
		tc := loadContext(w, r, service)
		if tc == nil {
			return
		}

		members, err := service.ListMembers(r.Context(), *tc)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list members")
			apperrors.WriteInternalError(w, r, "Failed to list members")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"members": members,
		})
	}
}

// HandleUpdateMemberRole handles PUT /api/v1/accounts/{account_id}/members/{user_id}
func HandleUpdateMemberRole(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := NewService(pool)
		tc := loadContext(w, r, service)
		if tc == nil {
			return
		}

		targetUserID, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid user ID")
			return
		}

		var req MemberRoleUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		previousRole, err := service.UpdateMemberRole(r.Context(), *tc, targetUserID, req.Role)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidRole):
				apperrors.WriteBadRequest(w, r, "Invalid role")
			case errors.Is(err, ErrInsufficientPermissions):
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
			case errors.Is(err, ErrMemberNotFound):
				apperrors.WriteNotFound(w, r, "Member not found")
			case errors.Is(err, ErrCannotDemoteLastOwner):
				apperrors.WriteConflict(w, r, "Cannot demote the last owner")
			default:
				log.Error().Err(err).Msg("Failed to update member role")
				apperrors.WriteInternalError(w, r, "Failed to update member role")
			}
			return
		}

		if err := auditor.LogMemberRoleUpdated(r.Context(), tc.AccountID, tc.UserID, targetUserID, string(previousRole), string(req.Role)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user_id":       targetUserID,
			"previous_role": previousRole,
			"role":          req.Role,
		})
	}
}

// HandleRemoveMember handles DELETE /api/v1/accounts/{account_id}/members/{user_id}
func HandleRemoveMember(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := NewService(pool)
		tc := loadContext(w, r, service)
		if tc == nil {
			return
		}

		targetUserID, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid user ID")
			return
		}

		removedRole, err := service.RemoveMember(r.Context(), *tc, targetUserID)
		if err != nil {
			switch {
			case errors.Is(err, ErrInsufficientPermissions):
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
			case errors.Is(err, ErrMemberNotFound):
				apperrors.WriteNotFound(w, r, "Member not found")
			case errors.Is(err, ErrCannotRemoveLastOwner):
				apperrors.WriteConflict(w, r, "Cannot remove the last owner")
			default:
				log.Error().Err(err).Msg("Failed to remove member")
				apperrors.WriteInternalError(w, r, "Failed to remove member")
			}
			return
		}

		if err := auditor.LogMemberRemoved(r.Context(), tc.AccountID, tc.UserID, targetUserID, string(removedRole)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"removed": true,
			"user_id": targetUserID,
		})
	}
}

// HandleListAudit handles GET /api/v1/accounts/{account_id}/audit
func HandleListAudit(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := NewService(pool)
		tc := loadContext(w, r, service)
		if tc == nil {
			return
		}

		if !tc.IsOwner {
			apperrors.WriteForbidden(w, r, "Only owners may read the audit log")
			return
		}

		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				apperrors.WriteBadRequest(w, r, "Invalid limit")
				return
			}
			limit = parsed
		}

		reader := audit.NewReader(pool)
		events, err := reader.ListForAccount(r.Context(), tc.AccountID, limit)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list audit events")
			apperrors.WriteInternalError(w, r, "Failed to list audit events")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"events": events,
		})
	}
}
