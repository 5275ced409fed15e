package tenant

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gymdesk/gymdesk/internal/apperrors"
	"github.com/gymdesk/gymdesk/internal/audit"
	"github.com/gymdesk/gymdesk/internal/auth"
	"github.com/gymdesk/gymdesk/internal/validation"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type AccountCreateRequest struct {
	Name           string `json:"name"`
	ContactEmail   string `json:"contact_email"`
	ContactPhone   string `json:"contact_phone"`
	Currency       string `json:"currency"`
	SubaccountName string `json:"subaccount_name"`
	Location       string `json:"location"`
}

type AccountUpdateRequest struct {
	Name                *string `json:"name"`
	ContactEmail        *string `json:"contact_email"`
	ContactPhone        *string `json:"contact_phone"`
	Currency            *string `json:"currency"`
	OnboardingCompleted *bool   `json:"onboarding_completed"`
}

type SubaccountCreateRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// parseAccountID extracts and parses the account_id URL parameter.
func parseAccountID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "account_id"))
}

// loadContext resolves the caller's tenant context or writes the
// appropriate error response. Returns nil if a response was written.
func loadContext(w http.ResponseWriter, r *http.Request, service *Service) *Context {
	userID := auth.GetUserID(r.Context())

	accountID, err := parseAccountID(r)
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid account ID")
		return nil
	}

	tc, err := service.LoadContext(r.Context(), userID, accountID)
	if err != nil {
		if errors.Is(err, ErrNotMember) {
			apperrors.WriteNotFound(w, r, "Account not found")
			return nil
		}
		log.Error().Err(err).Msg("Failed to load tenant context")
		apperrors.WriteInternalError(w, r, "Failed to load account")
		return nil
	}

	return tc
}

// HandleCreateAccount handles POST /api/v1/accounts
func HandleCreateAccount(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req AccountCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if err := validation.ValidateName(req.Name); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}
		if req.Currency != "" {
			currency, err := validation.NormalizeCurrency(req.Currency)
			if err != nil {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
			req.Currency = currency
		}
		if req.ContactEmail != "" {
			email, err := validation.NormalizeEmail(req.ContactEmail)
			if err != nil {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
			req.ContactEmail = email
		}

		service := NewService(pool)
		acct, sub, err := service.CreateAccount(ctx, userID, CreateAccountParams{
			Name:           req.Name,
			ContactEmail:   req.ContactEmail,
			ContactPhone:   strings.TrimSpace(req.ContactPhone),
			Currency:       req.Currency,
			SubaccountName: req.SubaccountName,
			Location:       strings.TrimSpace(req.Location),
		})
		if err != nil {
			if errors.Is(err, ErrAccountExists) {
				apperrors.WriteConflict(w, r, "An account already exists for this email")
				return
			}
			log.Error().Err(err).Msg("Failed to create account")
			apperrors.WriteInternalError(w, r, "Failed to create account")
			return
		}

		if err := auditor.LogAccountCreated(ctx, acct.ID, userID, acct.Name); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"account":    acct,
			"subaccount": sub,
		})
	}
}

// HandleListAccounts handles GET /api/v1/accounts
func HandleListAccounts(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		service := NewService(pool)
		accounts, err := service.ListUserAccounts(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list accounts")
			apperrors.WriteInternalError(w, r, "Failed to list accounts")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"accounts": accounts,
		})
	}
}

// HandleGetAccount handles GET /api/v1/accounts/{account_id}
func HandleGetAccount(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := NewService(pool)
		tc := loadContext(w, r, service)
		if tc == nil {
			return
		}

		acct, err := service.GetAccount(r.Context(), tc.AccountID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				apperrors.WriteNotFound(w, r, "Account not found")
				return
			}
			log.Error().Err(err).Msg("Failed to get account")
			apperrors.WriteInternalError(w, r, "Failed to get account")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"account":  acct,
			"role":     tc.Role,
			"is_owner": tc.IsOwner,
		})
	}
}

// HandleUpdateAccount handles PATCH /api/v1/accounts/{account_id}
func HandleUpdateAccount(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := NewService(pool)
		tc := loadContext(w, r, service)
		if tc == nil {
			return
		}

		var req AccountUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		if req.Name != nil {
			if err := validation.ValidateName(*req.Name); err != nil {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
		}
		if req.Currency != nil {
			currency, err := validation.NormalizeCurrency(*req.Currency)
			if err != nil {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
			req.Currency = &currency
		}
		if req.ContactEmail != nil {
			email, err := validation.NormalizeEmail(*req.ContactEmail)
			if err != nil {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
			req.ContactEmail = &email
		}

		acct, err := service.UpdateAccount(r.Context(), *tc, UpdateAccountParams{
			Name:                req.Name,
			ContactEmail:        req.ContactEmail,
			ContactPhone:        req.ContactPhone,
			Currency:            req.Currency,
			OnboardingCompleted: req.OnboardingCompleted,
		})
		if err != nil {
			if errors.Is(err, ErrInsufficientPermissions) {
				apperrors.WriteForbidden(w, r, "Only owners may update account settings")
				return
			}
			if errors.Is(err, ErrAccountNotFound) {
				apperrors.WriteNotFound(w, r, "Account not found")
				return
			}
			log.Error().Err(err).Msg("Failed to update account")
			apperrors.WriteInternalError(w, r, "Failed to update account")
			return
		}

		if err := auditor.LogAccountUpdated(r.Context(), tc.AccountID, tc.UserID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"account": acct,
		})
	}
}

// HandleCreateSubaccount handles POST /api/v1/accounts/{account_id}/subaccounts
func HandleCreateSubaccount(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := NewService(pool)
		tc := loadContext(w, r, service)
		if tc == nil {
			return
		}

		var req SubaccountCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if err := validation.ValidateName(req.Name); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		sub, err := service.CreateSubaccount(r.Context(), *tc, req.Name, strings.TrimSpace(req.Location))
		if err != nil {
			if errors.Is(err, ErrInsufficientPermissions) {
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
				return
			}
			if errors.Is(err, ErrSubaccountNameTaken) {
				apperrors.WriteConflict(w, r, err.Error())
				return
			}
			log.Error().Err(err).Msg("Failed to create subaccount")
			apperrors.WriteInternalError(w, r, "Failed to create subaccount")
			return
		}

		if err := auditor.LogSubaccountCreated(r.Context(), tc.AccountID, sub.ID, tc.UserID, sub.Name); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"subaccount": sub,
		})
	}
}

// HandleListSubaccounts handles GET /api/v1/accounts/{account_id}/subaccounts
func HandleListSubaccounts(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := NewService(pool)
		tc := loadContext(w, r, service)
		if tc == nil {
			return
		}

		subs, err := service.ListSubaccounts(r.Context(), *tc)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list subaccounts")
			apperrors.WriteInternalError(w, r, "Failed to list subaccounts")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"subaccounts": subs,
		})
	}
}
