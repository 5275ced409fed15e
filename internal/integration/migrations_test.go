package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntegration_MigrationsApplyToFreshPostgres(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	for _, table := range []string{"users", "accounts", "subaccounts", "user_accounts", "invitations", "audit_log"} {
		var count int
		err := pool.QueryRow(context.Background(), `
			SELECT COUNT(*)
			FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		`, table).Scan(&count)
		require.NoError(t, err)
		require.Equal(t, 1, count, "missing table %s", table)
	}

	// The one-pending-invite-per-email-and-franchise rule lives in a
	// partial unique index.
	var indexCount int
	err := pool.QueryRow(context.Background(), `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE schemaname = 'public' AND indexname = 'invitations_pending_key'
	`).Scan(&indexCount)
	require.NoError(t, err)
	require.Equal(t, 1, indexCount)
}
