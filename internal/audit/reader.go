package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRecord is the read-side shape of an audit entry.
type EventRecord struct {
	ID           uuid.UUID              `json:"id"`
	AccountID    *uuid.UUID             `json:"account_id,omitempty"`
	SubaccountID *uuid.UUID             `json:"subaccount_id,omitempty"`
	ActorUserID  *uuid.UUID             `json:"actor_user_id,omitempty"`
	Action       string                 `json:"action"`
	Meta         map[string]interface{} `json:"meta"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Reader provides read access to the audit log.
type Reader struct {
	pool *pgxpool.Pool
}

func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// ListForAccount returns the newest audit events for an account, newest
// first, capped at limit.
func (r *Reader) ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]EventRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, subaccount_id, actor_user_id, action, meta, created_at
		FROM audit_log
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var ev EventRecord
		var accountID, subaccountID, actorUserID uuid.NullUUID
		if err := rows.Scan(&ev.ID, &accountID, &subaccountID, &actorUserID, &ev.Action, &ev.Meta, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if accountID.Valid {
			ev.AccountID = &accountID.UUID
		}
		if subaccountID.Valid {
			ev.SubaccountID = &subaccountID.UUID
		}
		if actorUserID.Valid {
			ev.ActorUserID = &actorUserID.UUID
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}

	return events, nil
}
