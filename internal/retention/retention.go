package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DeleteOldAuditEvents deletes audit_log rows older than the specified days.
// The function is idempotent - safe to run repeatedly.
//
// Returns the number of rows deleted.
func DeleteOldAuditEvents(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (int64, error) {
	query := `
		DELETE FROM audit_log
		WHERE created_at < NOW() - INTERVAL '1 day' * $1
	`

	tag, err := pool.Exec(ctx, query, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit events: %w", err)
	}

	return tag.RowsAffected(), nil
}

// DeleteSettledInvitations deletes invitations that reached a terminal status
// (accepted or revoked) more than the specified days ago. Pending invitations
// are never deleted - they stay acceptable until revoked.
// The function is idempotent - safe to run repeatedly.
//
// Returns the number of rows deleted.
func DeleteSettledInvitations(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (int64, error) {
	query := `
		DELETE FROM invitations
		WHERE status IN ('accepted', 'revoked')
		  AND responded_at < NOW() - INTERVAL '1 day' * $1
	`

	tag, err := pool.Exec(ctx, query, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to delete settled invitations: %w", err)
	}

	return tag.RowsAffected(), nil
}

// RunRetentionJob executes both retention operations and logs the results.
// This is the main entry point called by the cron scheduler.
func RunRetentionJob(ctx context.Context, pool *pgxpool.Pool, auditDays, inviteDays int) error {
	log.Info().
		Int("audit_retention_days", auditDays).
		Int("invite_retention_days", inviteDays).
		Msg("Starting retention job")

	startTime := time.Now()

	auditDeleted, err := DeleteOldAuditEvents(ctx, pool, auditDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete old audit events")
		return fmt.Errorf("audit log cleanup failed: %w", err)
	}

	invitesDeleted, err := DeleteSettledInvitations(ctx, pool, inviteDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete settled invitations")
		return fmt.Errorf("invitation cleanup failed: %w", err)
	}

	duration := time.Since(startTime)

	log.Info().
		Int64("audit_events_deleted", auditDeleted).
		Int64("invitations_deleted", invitesDeleted).
		Dur("duration", duration).
		Msg("Retention job completed")

	return nil
}
