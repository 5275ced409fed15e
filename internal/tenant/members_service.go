package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListMembers retrieves all members of the caller's account.
func (s *Service) ListMembers(ctx context.Context, tc Context) ([]MemberInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.user_id, u.email, u.name, m.role, m.is_owner, m.subaccount_id, m.created_at
		FROM user_accounts m
		INNER JOIN users u ON m.user_id = u.id
		WHERE m.account_id = $1
		ORDER BY m.created_at ASC
	`, tc.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []MemberInfo
	for rows.Next() {
		var member MemberInfo
		err := rows.Scan(
			&member.UserID,
			&member.Email,
			&member.Name,
			&member.Role,
			&member.IsOwner,
			&member.SubaccountID,
			&member.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}

	return members, nil
}

// UpdateMemberRole changes a member's role within the account. Owner rows
// keep their is_owner flag only while the role stays OWNER, and the last
// owner can never be demoted.
func (s *Service) UpdateMemberRole(ctx context.Context, tc Context, targetUserID uuid.UUID, newRole Role) (previousRole Role, err error) {
	if !newRole.IsValid() {
		return "", ErrInvalidRole
	}
	if !tc.Role.CanManageStaff() {
		return "", ErrInsufficientPermissions
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var currentRole Role
	if err := tx.QueryRow(ctx, `
		SELECT role
		FROM user_accounts
		WHERE account_id = $1 AND user_id = $2
		FOR UPDATE
	`, tc.AccountID, targetUserID).Scan(&currentRole); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrMemberNotFound
		}
		return "", fmt.Errorf("failed to load member role: %w", err)
	}

	if tc.Role == RoleManager {
		// Managers may only shuffle trainer and front-desk staff.
		if !tc.Role.CanAssign(currentRole) && targetUserID != tc.UserID {
			return "", ErrInsufficientPermissions
		}
		if !tc.Role.CanAssign(newRole) {
			return "", ErrInsufficientPermissions
		}
	}

	if currentRole == RoleOwner && newRole != RoleOwner {
		owners, err := countOwnersForUpdate(ctx, tx, tc.AccountID)
		if err != nil {
			return "", err
		}
		if owners <= 1 {
			return "", ErrCannotDemoteLastOwner
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE user_accounts
		SET role = $3,
		    is_owner = ($3 = 'OWNER'),
		    updated_at = NOW()
		WHERE account_id = $1 AND user_id = $2
	`, tc.AccountID, targetUserID, newRole); err != nil {
		return "", fmt.Errorf("failed to update member role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return currentRole, nil
}

// RemoveMember removes a member from the account. The last owner cannot be
// removed.
func (s *Service) RemoveMember(ctx context.Context, tc Context, targetUserID uuid.UUID) (removedRole Role, err error) {
	if !tc.Role.CanManageStaff() {
		return "", ErrInsufficientPermissions
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var targetRole Role
	if err := tx.QueryRow(ctx, `
		SELECT role
		FROM user_accounts
		WHERE account_id = $1 AND user_id = $2
		FOR UPDATE
	`, tc.AccountID, targetUserID).Scan(&targetRole); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrMemberNotFound
		}
		return "", fmt.Errorf("failed to load member role: %w", err)
	}

	if tc.Role == RoleManager && targetUserID != tc.UserID {
		if !tc.Role.CanAssign(targetRole) {
			return "", ErrInsufficientPermissions
		}
	}

	if targetRole == RoleOwner {
		owners, err := countOwnersForUpdate(ctx, tx, tc.AccountID)
		if err != nil {
			return "", err
		}
		if owners <= 1 {
			return "", ErrCannotRemoveLastOwner
		}
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM user_accounts
		WHERE account_id = $1 AND user_id = $2
	`, tc.AccountID, targetUserID)
	if err != nil {
		return "", fmt.Errorf("failed to remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", ErrMemberNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return targetRole, nil
}

// countOwnersForUpdate locks all owner rows of the account and returns how
// many there are.
func countOwnersForUpdate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int, error) {
	rows, err := tx.Query(ctx, `
		SELECT user_id
		FROM user_accounts
		WHERE account_id = $1 AND role = $2
		FOR UPDATE
	`, accountID, RoleOwner)
	if err != nil {
		return 0, fmt.Errorf("failed to lock owners: %w", err)
	}
	defer rows.Close()

	var owners int
	for rows.Next() {
		owners++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to lock owners: %w", err)
	}

	return owners, nil
}
