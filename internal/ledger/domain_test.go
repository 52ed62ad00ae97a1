package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleNaturesCoversEveryRole(t *testing.T) {
	table := RoleNatures()
	roles := []Role{
		RoleExpense, RoleRevenue, RoleVATCredit, RoleVATDebit,
		RoleSuppliers, RoleReceivables, RoleCash, RoleBank,
		RoleInventory, RoleCOGS, RoleDiscountsGranted, RoleDiscountsObtained,
	}
	require.Len(t, table, len(roles))
	for _, role := range roles {
		want, ok := RoleNature(role)
		require.True(t, ok, "role %s has no declared nature", role)
		require.Equal(t, want, table[role])
	}
}

func TestRoleNaturesReturnsACopy(t *testing.T) {
	table := RoleNatures()
	table[RoleSuppliers] = NatureAsset

	nature, ok := RoleNature(RoleSuppliers)
	require.True(t, ok)
	require.Equal(t, NatureLiability, nature)
}
