package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/gymdesk/gymdesk/internal/apperrors"
	"github.com/gymdesk/gymdesk/internal/audit"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// UserResponse is the public shape of a user record.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignup handles POST /api/v1/auth/signup
func HandleSignup(pool *pgxpool.Pool, auditor *audit.Writer, jwtSecret string, sessionDays int, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Email = strings.TrimSpace(req.Email)
		req.Name = strings.TrimSpace(req.Name)

		if _, err := mail.ParseAddress(req.Email); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid email address")
			return
		}
		if len(req.Password) < 8 {
			apperrors.WriteBadRequest(w, r, "Password must be at least 8 characters")
			return
		}
		if len(req.Name) > 200 {
			apperrors.WriteBadRequest(w, r, "Name is too long")
			return
		}

		passwordHash, err := HashPassword(req.Password)
		if err != nil {
			log.Error().Err(err).Msg("Failed to hash password")
			apperrors.WriteInternalError(w, r, "Failed to create account")
			return
		}

		var user UserResponse
		err = pool.QueryRow(r.Context(), `
			INSERT INTO users (email, name, password_hash)
			VALUES ($1, $2, $3)
			RETURNING id, email, name
		`, req.Email, req.Name, passwordHash).Scan(&user.ID, &user.Email, &user.Name)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
				apperrors.WriteConflict(w, r, "Email address already registered")
				return
			}

			log.Error().Err(err).Str("email", req.Email).Msg("Failed to insert user")
			apperrors.WriteInternalError(w, r, "Failed to create account")
			return
		}

		if err := auditor.LogUserSignup(r.Context(), user.ID, user.Email); err != nil {
			log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to write audit log")
		}

		token, err := CreateToken(user.ID, jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create session token")
			apperrors.WriteInternalError(w, r, "Failed to create session")
			return
		}
		SetSessionCookie(w, token, sessionDays, isProduction)

		log.Info().
			Str("user_id", user.ID.String()).
			Str("email", user.Email).
			Msg("User signed up")

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"user": user,
		})
	}
}

// HandleLogin handles POST /api/v1/auth/login
func HandleLogin(pool *pgxpool.Pool, auditor *audit.Writer, jwtSecret string, sessionDays int, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			apperrors.WriteUnauthorized(w, r, "Invalid credentials")
			return
		}

		var user UserResponse
		var passwordHash string
		var isActive bool
		err := pool.QueryRow(r.Context(), `
			SELECT id, email, name, password_hash, is_active
			FROM users
			WHERE LOWER(email) = LOWER($1)
		`, req.Email).Scan(&user.ID, &user.Email, &user.Name, &passwordHash, &isActive)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				log.Debug().Str("email", req.Email).Msg("Login failed: user not found")
				if auditErr := auditor.LogLoginFailed(r.Context(), req.Email, r.RemoteAddr); auditErr != nil {
					log.Error().Err(auditErr).Msg("Failed to write audit log")
				}
				apperrors.WriteUnauthorized(w, r, "Invalid credentials")
				return
			}
			log.Error().Err(err).Str("email", req.Email).Msg("Failed to query user")
			apperrors.WriteInternalError(w, r, "Login failed")
			return
		}

		if err := VerifyPassword(passwordHash, req.Password); err != nil {
			log.Debug().Str("email", req.Email).Msg("Login failed: wrong password")
			if auditErr := auditor.LogLoginFailed(r.Context(), req.Email, r.RemoteAddr); auditErr != nil {
				log.Error().Err(auditErr).Msg("Failed to write audit log")
			}
			apperrors.WriteUnauthorized(w, r, "Invalid credentials")
			return
		}

		if !isActive {
			apperrors.WriteForbidden(w, r, "Account is deactivated")
			return
		}

		token, err := CreateToken(user.ID, jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create session token")
			apperrors.WriteInternalError(w, r, "Failed to create session")
			return
		}
		SetSessionCookie(w, token, sessionDays, isProduction)

		log.Info().
			Str("user_id", user.ID.String()).
			Str("email", user.Email).
			Msg("User logged in")

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user": user,
		})
	}
}

// HandleLogout handles POST /api/v1/auth/logout
func HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ClearSessionCookie(w)

		if userID := GetUserID(r.Context()); userID != uuid.Nil {
			log.Info().Str("user_id", userID.String()).Msg("User logged out")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"logged_out": true,
		})
	}
}

// HandleMe handles GET /api/v1/auth/me
func HandleMe(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := GetUserID(r.Context())

		var user UserResponse
		err := pool.QueryRow(r.Context(), `
			SELECT id, email, name
			FROM users
			WHERE id = $1
		`, userID).Scan(&user.ID, &user.Email, &user.Name)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Session outlived the user row.
				ClearSessionCookie(w)
				apperrors.WriteUnauthorized(w, r, "Session is no longer valid")
				return
			}
			log.Error().Err(err).Msg("Failed to load user")
			apperrors.WriteInternalError(w, r, "Failed to load user")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user": user,
		})
	}
}
