package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	EventUserSignup        = "user.signup"
	EventLoginFailed       = "auth.login_failed"
	EventAccountCreated    = "account.created"
	EventAccountUpdated    = "account.updated"
	EventSubaccountCreated = "subaccount.created"
	EventInviteCreated     = "invite.created"
	EventInviteRevoked     = "invite.revoked"
	EventInviteAccepted    = "invite.accepted"
	EventMemberRoleUpdated = "member.role_updated"
	EventMemberRemoved     = "member.removed"
)

// Event represents an audit log entry.
type Event struct {
	ID           uuid.UUID              `db:"id"`
	AccountID    uuid.NullUUID          `db:"account_id"`
	SubaccountID uuid.NullUUID          `db:"subaccount_id"`
	ActorUserID  uuid.NullUUID          `db:"actor_user_id"`
	Action       string                 `db:"action"`
	Meta         map[string]interface{} `db:"meta"`
	CreatedAt    time.Time              `db:"created_at"`
}

// Writer provides methods to write audit log entries.
type Writer struct {
	pool *pgxpool.Pool
}

func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	AccountID    *uuid.UUID
	SubaccountID *uuid.UUID
	ActorUserID  *uuid.UUID
	Action       string
	Meta         map[string]interface{}
}

func (w *Writer) Log(ctx context.Context, params LogParams) error {
	metaJSON := []byte("{}")
	if params.Meta != nil {
		b, err := json.Marshal(params.Meta)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit meta")
			return err
		}
		metaJSON = b
	}

	query := `
		INSERT INTO audit_log (account_id, subaccount_id, actor_user_id, action, meta)
		VALUES ($1, $2, $3, $4, $5)
	`

	accountID := toNullUUID(params.AccountID)
	subaccountID := toNullUUID(params.SubaccountID)
	actorUserID := toNullUUID(params.ActorUserID)

	_, err := w.pool.Exec(ctx, query, accountID, subaccountID, actorUserID, params.Action, metaJSON)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return err
	}

	log.Info().
		Str("action", params.Action).
		Interface("account_id", params.AccountID).
		Interface("actor_user_id", params.ActorUserID).
		Msg("Audit event logged")

	return nil
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (w *Writer) LogUserSignup(ctx context.Context, userID uuid.UUID, email string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &userID,
		Action:      EventUserSignup,
		Meta: map[string]interface{}{
			"email": email,
		},
	})
}

func (w *Writer) LogLoginFailed(ctx context.Context, email, ip string) error {
	return w.Log(ctx, LogParams{
		Action: EventLoginFailed,
		Meta: map[string]interface{}{
			"email": email,
			"ip":    ip,
		},
	})
}

func (w *Writer) LogAccountCreated(ctx context.Context, accountID, actorUserID uuid.UUID, name string) error {
	return w.Log(ctx, LogParams{
		AccountID:   &accountID,
		ActorUserID: &actorUserID,
		Action:      EventAccountCreated,
		Meta: map[string]interface{}{
			"name": name,
		},
	})
}

func (w *Writer) LogAccountUpdated(ctx context.Context, accountID, actorUserID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		AccountID:   &accountID,
		ActorUserID: &actorUserID,
		Action:      EventAccountUpdated,
	})
}

func (w *Writer) LogSubaccountCreated(ctx context.Context, accountID, subaccountID, actorUserID uuid.UUID, name string) error {
	return w.Log(ctx, LogParams{
		AccountID:    &accountID,
		SubaccountID: &subaccountID,
		ActorUserID:  &actorUserID,
		Action:       EventSubaccountCreated,
		Meta: map[string]interface{}{
			"name": name,
		},
	})
}

func (w *Writer) LogInviteCreated(ctx context.Context, accountID, subaccountID, actorUserID, inviteID uuid.UUID, email, role string) error {
	return w.Log(ctx, LogParams{
		AccountID:    &accountID,
		SubaccountID: &subaccountID,
		ActorUserID:  &actorUserID,
		Action:       EventInviteCreated,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
			"email":     email,
			"role":      role,
		},
	})
}

func (w *Writer) LogInviteRevoked(ctx context.Context, accountID, actorUserID, inviteID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		AccountID:   &accountID,
		ActorUserID: &actorUserID,
		Action:      EventInviteRevoked,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
		},
	})
}

func (w *Writer) LogInviteAccepted(ctx context.Context, accountID, actorUserID, inviteID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		AccountID:   &accountID,
		ActorUserID: &actorUserID,
		Action:      EventInviteAccepted,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
		},
	})
}

func (w *Writer) LogMemberRoleUpdated(ctx context.Context, accountID, actorUserID, targetUserID uuid.UUID, previousRole, newRole string) error {
	return w.Log(ctx, LogParams{
		AccountID:   &accountID,
		ActorUserID: &actorUserID,
		Action:      EventMemberRoleUpdated,
		Meta: map[string]interface{}{
			"target_user_id": targetUserID.String(),
			"previous_role":  previousRole,
			"new_role":       newRole,
		},
	})
}

func (w *Writer) LogMemberRemoved(ctx context.Context, accountID, actorUserID, targetUserID uuid.UUID, removedRole string) error {
	return w.Log(ctx, LogParams{
		AccountID:   &accountID,
		ActorUserID: &actorUserID,
		Action:      EventMemberRemoved,
		Meta: map[string]interface{}{
			"target_user_id": targetUserID.String(),
			"removed_role":   removedRole,
		},
	})
}
