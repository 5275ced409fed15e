package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAccountNotFound is returned when an account is not found
	ErrAccountNotFound = errors.New("account not found")

	// ErrSubaccountNotFound is returned when a subaccount is not found
	ErrSubaccountNotFound = errors.New("subaccount not found")

	// ErrAccountExists is returned when the caller already has an account
	// registered under the same contact email
	ErrAccountExists = errors.New("an account already exists for this email")

	// ErrNotMember is returned when a user is not a member of an account
	ErrNotMember = errors.New("user is not a member of this account")

	// ErrInsufficientPermissions is returned when a user lacks required permissions
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

// Service provides tenant-related operations.
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates a new tenant service
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// LoadContext resolves the caller's membership in an account. The returned
// Context is threaded through every tenant-scoped operation.
func (s *Service) LoadContext(ctx context.Context, userID, accountID uuid.UUID) (*Context, error) {
	tc := &Context{UserID: userID, AccountID: accountID}

	err := s.pool.QueryRow(ctx, `
		SELECT subaccount_id, role, is_owner
		FROM user_accounts
		WHERE account_id = $1 AND user_id = $2
	`, accountID, userID).Scan(&tc.SubaccountID, &tc.Role, &tc.IsOwner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debug().
				Str("user_id", userID.String()).
				Str("account_id", accountID.String()).
				Msg("RBAC: user is not a member of account")
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("failed to load tenant context: %w", err)
	}

	return tc, nil
}

// GetAccount retrieves an account by ID.
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	var acct Account

	err := s.pool.QueryRow(ctx, `
		SELECT id, name, contact_email, contact_phone, currency,
		       onboarding_completed, created_by_user_id, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(
		&acct.ID,
		&acct.Name,
		&acct.ContactEmail,
		&acct.ContactPhone,
		&acct.Currency,
		&acct.OnboardingCompleted,
		&acct.CreatedByUserID,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &acct, nil
}

// ListUserAccounts retrieves all accounts the user belongs to, with roles.
func (s *Service) ListUserAccounts(ctx context.Context, userID uuid.UUID) ([]AccountWithRole, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.name, a.contact_email, a.contact_phone, a.currency,
		       a.onboarding_completed, a.created_by_user_id, a.created_at, a.updated_at,
		       m.role, m.is_owner
		FROM accounts a
		INNER JOIN user_accounts m ON a.id = m.account_id
		WHERE m.user_id = $1
		ORDER BY a.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user accounts: %w", err)
	}
	defer rows.Close()

	var accounts []AccountWithRole
	for rows.Next() {
		var acct AccountWithRole
		err := rows.Scan(
			&acct.ID,
			&acct.Name,
			&acct.ContactEmail,
			&acct.ContactPhone,
			&acct.Currency,
			&acct.OnboardingCompleted,
			&acct.CreatedByUserID,
			&acct.CreatedAt,
			&acct.UpdatedAt,
			&acct.Role,
			&acct.IsOwner,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}

	return accounts, nil
}

// CreateAccountParams holds the input for creating a new tenant.
type CreateAccountParams struct {
	Name           string
	ContactEmail   string
	ContactPhone   string
	Currency       string
	SubaccountName string
	Location       string
}

// CreateAccount creates a new tenant in a single transaction: the account
// (onboarding not yet completed), its first subaccount, and an owner
// membership for the creating user. Pending invitations addressed to the
// user are deliberately left untouched.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID, params CreateAccountParams) (*Account, *Subaccount, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var userEmail string
	if err := tx.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&userEmail); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("user not found")
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	contactEmail := strings.TrimSpace(params.ContactEmail)
	if contactEmail == "" {
		contactEmail = userEmail
	}

	// Defensive duplicate check: one account per contact email.
	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM accounts WHERE LOWER(contact_email) = LOWER($1)
		)
	`, contactEmail).Scan(&exists); err != nil {
		return nil, nil, fmt.Errorf("failed to check existing accounts: %w", err)
	}
	if exists {
		return nil, nil, ErrAccountExists
	}

	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "USD"
	}

	var acct Account
	err = tx.QueryRow(ctx, `
		INSERT INTO accounts (name, contact_email, contact_phone, currency, created_by_user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, contact_email, contact_phone, currency,
		          onboarding_completed, created_by_user_id, created_at, updated_at
	`, params.Name, contactEmail, params.ContactPhone, currency, userID).Scan(
		&acct.ID,
		&acct.Name,
		&acct.ContactEmail,
		&acct.ContactPhone,
		&acct.Currency,
		&acct.OnboardingCompleted,
		&acct.CreatedByUserID,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create account: %w", err)
	}

	subName := strings.TrimSpace(params.SubaccountName)
	if subName == "" {
		subName = "Main"
	}

	var sub Subaccount
	err = tx.QueryRow(ctx, `
		INSERT INTO subaccounts (account_id, name, location)
		VALUES ($1, $2, $3)
		RETURNING id, account_id, name, location, created_at, updated_at
	`, acct.ID, subName, params.Location).Scan(
		&sub.ID,
		&sub.AccountID,
		&sub.Name,
		&sub.Location,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create subaccount: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_accounts (account_id, user_id, subaccount_id, role, is_owner)
		VALUES ($1, $2, $3, $4, TRUE)
	`, acct.ID, userID, sub.ID, RoleOwner)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &acct, &sub, nil
}

// UpdateAccountParams holds optional account settings updates. Nil fields
// are left unchanged.
type UpdateAccountParams struct {
	Name                *string
	ContactEmail        *string
	ContactPhone        *string
	Currency            *string
	OnboardingCompleted *bool
}

// UpdateAccount applies account settings changes. Only owners may update
// account settings.
func (s *Service) UpdateAccount(ctx context.Context, tc Context, params UpdateAccountParams) (*Account, error) {
	if !tc.IsOwner {
		return nil, ErrInsufficientPermissions
	}

	var acct Account
	err := s.pool.QueryRow(ctx, `
		UPDATE accounts
		SET name = COALESCE($2, name),
		    contact_email = COALESCE($3, contact_email),
		    contact_phone = COALESCE($4, contact_phone),
		    currency = COALESCE($5, currency),
		    onboarding_completed = COALESCE($6, onboarding_completed),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, contact_email, contact_phone, currency,
		          onboarding_completed, created_by_user_id, created_at, updated_at
	`, tc.AccountID, params.Name, params.ContactEmail, params.ContactPhone, params.Currency, params.OnboardingCompleted).Scan(
		&acct.ID,
		&acct.Name,
		&acct.ContactEmail,
		&acct.ContactPhone,
		&acct.Currency,
		&acct.OnboardingCompleted,
		&acct.CreatedByUserID,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	return &acct, nil
}
