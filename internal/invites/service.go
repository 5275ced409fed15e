package invites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gymdesk/gymdesk/internal/tenant"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service provides invitation operations.
type Service struct {
	pool    *pgxpool.Pool
	tenants *tenant.Service
	ttl     time.Duration
}

// NewService creates a new invitation service. ttl controls the advertised
// expiry window on new invitations.
func NewService(pool *pgxpool.Pool, ttl time.Duration) *Service {
	return &Service{pool: pool, tenants: tenant.NewService(pool), ttl: ttl}
}

// Create issues a new invitation for email at the given subaccount. The
// caller must be allowed to grant the role, and only one pending invitation
// may exist per (email, subaccount) pair.
func (s *Service) Create(ctx context.Context, tc tenant.Context, subaccountID uuid.UUID, email string, role tenant.Role) (*Invitation, error) {
	if !role.IsValid() {
		return nil, ErrInvalidInviteRole
	}
	if role == tenant.RoleOwner {
		return nil, ErrCannotInviteOwner
	}
	if !tc.Role.CanAssign(role) {
		return nil, tenant.ErrInsufficientPermissions
	}

	// The subaccount must belong to the caller's account.
	if _, err := s.tenants.GetSubaccount(ctx, tc, subaccountID); err != nil {
		return nil, err
	}

	var pendingExists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invitations
			WHERE subaccount_id = $1
			  AND LOWER(email) = LOWER($2)
			  AND status = $3
		)
	`, subaccountID, email, StatusPending).Scan(&pendingExists)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending invitations: %w", err)
	}
	if pendingExists {
		return nil, ErrAlreadyPending
	}

	expiresAt := time.Now().UTC().Add(s.ttl)

	var invite Invitation
	for attempt := 0; attempt < 3; attempt++ {
		token, err := GenerateToken()
		if err != nil {
			return nil, err
		}

		err = s.pool.QueryRow(ctx, `
			INSERT INTO invitations (
			  account_id, subaccount_id, email, role, token, invited_by_user_id, expires_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, account_id, subaccount_id, email, role, token, status,
			          invited_by_user_id, created_at, expires_at
		`, tc.AccountID, subaccountID, email, role, token, tc.UserID, expiresAt).Scan(
			&invite.ID,
			&invite.AccountID,
			&invite.SubaccountID,
			&invite.Email,
			&invite.Role,
			&invite.Token,
			&invite.Status,
			&invite.InvitedByUserID,
			&invite.CreatedAt,
			&invite.ExpiresAt,
		)
		if err == nil {
			return &invite, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "invitations_pending_key" {
				// Lost a race with a concurrent issuer.
				return nil, ErrAlreadyPending
			}
			// Token collision (extremely unlikely); retry.
			continue
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	return nil, fmt.Errorf("failed to create invitation: token collision retry exhausted")
}

// ListForAccount returns the open invitations of the caller's account.
func (s *Service) ListForAccount(ctx context.Context, tc tenant.Context) ([]ListItem, error) {
	if !tc.Role.CanManageStaff() {
		return nil, tenant.ErrInsufficientPermissions
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
		  i.id,
		  i.email,
		  i.role,
		  s.name AS subaccount_name,
		  i.created_at,
		  i.expires_at,
		  u.email AS invited_by_email
		FROM invitations i
		INNER JOIN subaccounts s ON s.id = i.subaccount_id
		INNER JOIN users u ON u.id = i.invited_by_user_id
		WHERE i.account_id = $1
		  AND i.status = $2
		ORDER BY i.created_at DESC
	`, tc.AccountID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var item ListItem
		if err := rows.Scan(&item.ID, &item.Email, &item.Role, &item.SubaccountName, &item.CreatedAt, &item.ExpiresAt, &item.InvitedByEmail); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invitations: %w", err)
	}

	return items, nil
}

// ListPendingForEmail returns the pending invitations addressed to email,
// narrowed to a single invitation when a deep-link token is supplied. This
// backs the select-gym screen.
func (s *Service) ListPendingForEmail(ctx context.Context, email, token string) ([]Card, error) {
	query := `
		SELECT
		  i.id,
		  i.account_id,
		  a.name AS account_name,
		  s.name AS subaccount_name,
		  i.role,
		  i.token,
		  i.expires_at
		FROM invitations i
		INNER JOIN accounts a ON a.id = i.account_id
		INNER JOIN subaccounts s ON s.id = i.subaccount_id
		WHERE LOWER(i.email) = LOWER($1)
		  AND i.status = $2
	`
	args := []any{email, StatusPending}
	if token != "" {
		query += ` AND i.token = $3`
		args = append(args, token)
	}
	query += ` ORDER BY i.created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		var card Card
		if err := rows.Scan(&card.ID, &card.AccountID, &card.AccountName, &card.SubaccountName, &card.Role, &card.Token, &card.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invitations: %w", err)
	}

	return cards, nil
}

// Accept consumes a pending invitation in one transaction: verify the
// invitation is still pending and addressed to the caller, create the
// membership (never duplicating an existing one), and flip the status.
// Accepting is exactly-once; a second call fails with ErrInviteNotActive.
//
// The displayed expiry window is intentionally not enforced here: a pending
// invitation stays acceptable until it is revoked.
func (s *Service) Accept(ctx context.Context, token string, userID uuid.UUID) (*Invitation, tenant.Role, error) {
	if !ValidateTokenFormat(token) {
		return nil, "", ErrInviteNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var invite Invitation
	err = tx.QueryRow(ctx, `
		SELECT id, account_id, subaccount_id, email, role, token, status,
		       invited_by_user_id, created_at, expires_at, responded_at
		FROM invitations
		WHERE token = $1
		FOR UPDATE
	`, token).Scan(
		&invite.ID,
		&invite.AccountID,
		&invite.SubaccountID,
		&invite.Email,
		&invite.Role,
		&invite.Token,
		&invite.Status,
		&invite.InvitedByUserID,
		&invite.CreatedAt,
		&invite.ExpiresAt,
		&invite.RespondedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrInviteNotFound
		}
		return nil, "", fmt.Errorf("failed to load invitation: %w", err)
	}

	if invite.Status != StatusPending {
		return nil, "", ErrInviteNotActive
	}

	var userEmail string
	err = tx.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&userEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", fmt.Errorf("user not found")
		}
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}
	if !strings.EqualFold(userEmail, invite.Email) {
		return nil, "", ErrInviteEmailMismatch
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_accounts (account_id, user_id, subaccount_id, role, is_owner)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (account_id, user_id) DO NOTHING
	`, invite.AccountID, userID, invite.SubaccountID, invite.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create membership: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE invitations
		SET status = $2, responded_at = NOW()
		WHERE id = $1
		  AND status = $3
	`, invite.ID, StatusAccepted, StatusPending)
	if err != nil {
		return nil, "", fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, "", ErrInviteNotActive
	}

	var finalRole tenant.Role
	if err := tx.QueryRow(ctx, `
		SELECT role
		FROM user_accounts
		WHERE account_id = $1 AND user_id = $2
	`, invite.AccountID, userID).Scan(&finalRole); err != nil {
		return nil, "", fmt.Errorf("failed to load membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	invite.Status = StatusAccepted
	return &invite, finalRole, nil
}

// Revoke withdraws a pending invitation issued within the caller's account.
func (s *Service) Revoke(ctx context.Context, tc tenant.Context, inviteID uuid.UUID) error {
	if !tc.Role.CanManageStaff() {
		return tenant.ErrInsufficientPermissions
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE invitations
		SET status = $3, responded_at = NOW()
		WHERE id = $1
		  AND account_id = $2
		  AND status = $4
	`, inviteID, tc.AccountID, StatusRevoked, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}

	return nil
}
