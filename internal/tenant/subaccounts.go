package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSubaccountNameTaken is returned when a subaccount name already exists
// within the account.
var ErrSubaccountNameTaken = errors.New("a franchise with this name already exists")

// CreateSubaccount adds a new location to the account. Requires a
// staff-managing role.
func (s *Service) CreateSubaccount(ctx context.Context, tc Context, name, location string) (*Subaccount, error) {
	if !tc.Role.CanManageStaff() {
		return nil, ErrInsufficientPermissions
	}

	var sub Subaccount
	err := s.pool.QueryRow(ctx, `
		INSERT INTO subaccounts (account_id, name, location)
		VALUES ($1, $2, $3)
		RETURNING id, account_id, name, location, created_at, updated_at
	`, tc.AccountID, name, location).Scan(
		&sub.ID,
		&sub.AccountID,
		&sub.Name,
		&sub.Location,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrSubaccountNameTaken
		}
		return nil, fmt.Errorf("failed to create subaccount: %w", err)
	}

	return &sub, nil
}

// ListSubaccounts retrieves all locations of the account.
func (s *Service) ListSubaccounts(ctx context.Context, tc Context) ([]Subaccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, name, location, created_at, updated_at
		FROM subaccounts
		WHERE account_id = $1
		ORDER BY created_at ASC
	`, tc.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subaccounts: %w", err)
	}
	defer rows.Close()

	var subs []Subaccount
	for rows.Next() {
		var sub Subaccount
		if err := rows.Scan(&sub.ID, &sub.AccountID, &sub.Name, &sub.Location, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subaccount: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subaccount rows: %w", err)
	}

	return subs, nil
}

// GetSubaccount retrieves one location, scoped to the caller's account.
func (s *Service) GetSubaccount(ctx context.Context, tc Context, subaccountID uuid.UUID) (*Subaccount, error) {
	var sub Subaccount
	err := s.pool.QueryRow(ctx, `
		SELECT id, account_id, name, location, created_at, updated_at
		FROM subaccounts
		WHERE id = $1 AND account_id = $2
	`, subaccountID, tc.AccountID).Scan(
		&sub.ID,
		&sub.AccountID,
		&sub.Name,
		&sub.Location,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubaccountNotFound
		}
		return nil, fmt.Errorf("failed to get subaccount: %w", err)
	}

	return &sub, nil
}
