package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's role within an account.
type Role string

const (
	RoleOwner     Role = "OWNER"
	RoleManager   Role = "MANAGER"
	RoleTrainer   Role = "TRAINER"
	RoleFrontDesk Role = "FRONT_DESK"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleTrainer, RoleFrontDesk:
		return true
	}
	return false
}

// CanManageStaff returns true if the role may invite and manage staff.
func (r Role) CanManageStaff() bool {
	return r == RoleOwner || r == RoleManager
}

// CanAssign returns true if a holder of r may grant the target role.
// Owners may grant anything below OWNER; managers may only grant
// trainer and front-desk roles.
func (r Role) CanAssign(target Role) bool {
	if !target.IsValid() || target == RoleOwner {
		return false
	}
	switch r {
	case RoleOwner:
		return true
	case RoleManager:
		return target == RoleTrainer || target == RoleFrontDesk
	}
	return false
}

// Account represents a top-level tenant: a gym business.
type Account struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	ContactEmail        string    `db:"contact_email" json:"contact_email"`
	ContactPhone        string    `db:"contact_phone" json:"contact_phone"`
	Currency            string    `db:"currency" json:"currency"`
	OnboardingCompleted bool      `db:"onboarding_completed" json:"onboarding_completed"`
	CreatedByUserID     uuid.UUID `db:"created_by_user_id" json:"created_by_user_id"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// Subaccount represents a location or franchise under an account.
type Subaccount struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AccountID uuid.UUID `db:"account_id" json:"account_id"`
	Name      string    `db:"name" json:"name"`
	Location  string    `db:"location" json:"location"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Membership is a user_accounts join row granting a user a role in an account.
type Membership struct {
	AccountID    uuid.UUID     `db:"account_id" json:"account_id"`
	UserID       uuid.UUID     `db:"user_id" json:"user_id"`
	SubaccountID uuid.NullUUID `db:"subaccount_id" json:"subaccount_id"`
	Role         Role          `db:"role" json:"role"`
	IsOwner      bool          `db:"is_owner" json:"is_owner"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// AccountWithRole combines account information with the caller's membership.
type AccountWithRole struct {
	Account
	Role    Role `db:"role" json:"role"`
	IsOwner bool `db:"is_owner" json:"is_owner"`
}

// MemberInfo represents a member of an account with their user details.
type MemberInfo struct {
	UserID       uuid.UUID     `db:"user_id" json:"user_id"`
	Email        string        `db:"email" json:"email"`
	Name         string        `db:"name" json:"name"`
	Role         Role          `db:"role" json:"role"`
	IsOwner      bool          `db:"is_owner" json:"is_owner"`
	SubaccountID uuid.NullUUID `db:"subaccount_id" json:"subaccount_id"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// Context carries the caller's resolved membership in one account. It is
// loaded once per request and passed explicitly to every data-access call
// that acts within that tenant.
type Context struct {
	UserID       uuid.UUID
	AccountID    uuid.UUID
	SubaccountID uuid.NullUUID
	Role         Role
	IsOwner      bool
}
