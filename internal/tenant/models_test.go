package tenant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRole_IsValid(t *testing.T) {
	require.True(t, RoleOwner.IsValid())
	require.True(t, RoleManager.IsValid())
	require.True(t, RoleTrainer.IsValid())
	require.True(t, RoleFrontDesk.IsValid())
	require.False(t, Role("ADMIN").IsValid())
	require.False(t, Role("").IsValid())
	require.False(t, Role("owner").IsValid())
}

func TestRole_CanManageStaff(t *testing.T) {
	require.True(t, RoleOwner.CanManageStaff())
	require.True(t, RoleManager.CanManageStaff())
	require.False(t, RoleTrainer.CanManageStaff())
	require.False(t, RoleFrontDesk.CanManageStaff())
}

func TestRole_CanAssign(t *testing.T) {
	tests := []struct {
		name   string
		holder Role
		target Role
		want   bool
	}{
		{"owner grants manager", RoleOwner, RoleManager, true},
		{"owner grants trainer", RoleOwner, RoleTrainer, true},
		{"owner grants front desk", RoleOwner, RoleFrontDesk, true},
		{"owner cannot grant owner", RoleOwner, RoleOwner, false},
		{"manager grants trainer", RoleManager, RoleTrainer, true},
		{"manager grants front desk", RoleManager, RoleFrontDesk, true},
		{"manager cannot grant manager", RoleManager, RoleManager, false},
		{"manager cannot grant owner", RoleManager, RoleOwner, false},
		{"trainer grants nothing", RoleTrainer, RoleFrontDesk, false},
		{"front desk grants nothing", RoleFrontDesk, RoleTrainer, false},
		{"unknown target rejected", RoleOwner, Role("ADMIN"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.holder.CanAssign(tt.target))
		})
	}
}
