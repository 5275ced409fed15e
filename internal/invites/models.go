package invites

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Status represents the lifecycle state of an invitation. Only the
// pending -> accepted and pending -> revoked transitions are ever written;
// declined and expired exist in the enum but no code path sets them.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRevoked  Status = "revoked"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
)

var (
	ErrInvalidInviteRole   = errors.New("invalid invitation role")
	ErrCannotInviteOwner   = errors.New("cannot invite owner role")
	ErrAlreadyPending      = errors.New("an invitation is already pending for this email and franchise")
	ErrInviteNotFound      = errors.New("invitation not found")
	ErrInviteNotActive     = errors.New("invitation already used or revoked")
	ErrInviteEmailMismatch = errors.New("invitation email does not match user")
)

// Invitation is a pending offer of a role at a subaccount to an email
// address. The token is the sole credential needed to view and accept the
// invitation via deep link.
type Invitation struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	AccountID       uuid.UUID   `db:"account_id" json:"account_id"`
	SubaccountID    uuid.UUID   `db:"subaccount_id" json:"subaccount_id"`
	Email           string      `db:"email" json:"email"`
	Role            tenant.Role `db:"role" json:"role"`
	Token           string      `db:"token" json:"token,omitempty"`
	Status          Status      `db:"status" json:"status"`
	InvitedByUserID uuid.UUID   `db:"invited_by_user_id" json:"invited_by_user_id"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	ExpiresAt       time.Time   `db:"expires_at" json:"expires_at"`
	RespondedAt     *time.Time  `db:"responded_at" json:"responded_at,omitempty"`
}

// ListItem is the issuer-facing view of an open invitation.
type ListItem struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	Email          string      `db:"email" json:"email"`
	Role           tenant.Role `db:"role" json:"role"`
	SubaccountName string      `db:"subaccount_name" json:"subaccount_name"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time   `db:"expires_at" json:"expires_at"`
	InvitedByEmail string      `db:"invited_by_email" json:"invited_by_email"`
}

// Card is the invitee-facing view rendered on the select-gym screen.
type Card struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	AccountID      uuid.UUID   `db:"account_id" json:"account_id"`
	AccountName    string      `db:"account_name" json:"account_name"`
	SubaccountName string      `db:"subaccount_name" json:"subaccount_name"`
	Role           tenant.Role `db:"role" json:"role"`
	Token          string      `db:"token" json:"token"`
	ExpiresAt      time.Time   `db:"expires_at" json:"expires_at"`
}
