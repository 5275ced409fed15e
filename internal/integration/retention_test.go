package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/gymdesk/gymdesk/internal/retention"
	"github.com/stretchr/testify/require"
)

func TestIntegration_RetentionSweep_NeverDeletesPendingInvitations(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()

	var userID uuid.UUID
	err := pool.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash)
		VALUES ('owner@example.com', 'Owner', 'x')
		RETURNING id
	`).Scan(&userID)
	require.NoError(t, err)

	var accountID uuid.UUID
	err = pool.QueryRow(ctx, `
		INSERT INTO accounts (name, contact_email, created_by_user_id)
		VALUES ('Iron Temple', 'owner@example.com', $1)
		RETURNING id
	`, userID).Scan(&accountID)
	require.NoError(t, err)

	var subaccountID uuid.UUID
	err = pool.QueryRow(ctx, `
		INSERT INTO subaccounts (account_id, name)
		VALUES ($1, 'Main')
		RETURNING id
	`, accountID).Scan(&subaccountID)
	require.NoError(t, err)

	// One ancient pending invitation, one long-settled, one freshly settled.
	_, err = pool.Exec(ctx, `
		INSERT INTO invitations (account_id, subaccount_id, email, role, token, status, invited_by_user_id, created_at, expires_at, responded_at)
		VALUES
		  ($1, $2, 'pending@example.com',  'TRAINER', 'aaaaaaaaaaaaaaaaaaaaaaaaaa', 'pending',  $3, NOW() - INTERVAL '400 days', NOW() - INTERVAL '393 days', NULL),
		  ($1, $2, 'accepted@example.com', 'TRAINER', 'bbbbbbbbbbbbbbbbbbbbbbbbbb', 'accepted', $3, NOW() - INTERVAL '400 days', NOW() - INTERVAL '393 days', NOW() - INTERVAL '90 days'),
		  ($1, $2, 'revoked@example.com',  'TRAINER', 'cccccccccccccccccccccccccc', 'revoked',  $3, NOW() - INTERVAL '10 days',  NOW() - INTERVAL '3 days',   NOW() - INTERVAL '2 days')
	`, accountID, subaccountID, userID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO audit_log (account_id, actor_user_id, action, meta, created_at)
		VALUES
		  ($1, $2, 'account.created', '{}', NOW() - INTERVAL '200 days'),
		  ($1, $2, 'invite.created',  '{}', NOW() - INTERVAL '1 day')
	`, accountID, userID)
	require.NoError(t, err)

	require.NoError(t, retention.RunRetentionJob(ctx, pool, 180, 30))

	var statuses []string
	rows, err := pool.Query(ctx, `SELECT status FROM invitations ORDER BY email`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var status string
		require.NoError(t, rows.Scan(&status))
		statuses = append(statuses, status)
	}
	require.NoError(t, rows.Err())

	// The old accepted invitation is gone; the pending one survives no
	// matter its age, and the recently revoked one is still in its window.
	require.Equal(t, []string{"pending", "revoked"}, statuses)

	var auditCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&auditCount))
	require.Equal(t, 1, auditCount)
}
