package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VAULT_NAME", "test-vault")
	t.Setenv("SEED_BASE_AMOUNT", "1000000")
	t.Setenv("POOL_FEE_PERCENT", "0.04")
	t.Setenv("POOL_VIRTUAL_PRICE", "1.0")
	t.Setenv("SLIPPAGE_TOLERANCE_PERCENT", "0.5")
	t.Setenv("REWARD_ACCRUAL_AMOUNT", "250")
	t.Setenv("PERSIST_RECEIPTS", "false")
}

func TestLoadConfig(t *testing.T) {
	setValidEnv(t)

	require.NoError(t, LoadConfig())
	require.Equal(t, "test-vault", VaultName)
	require.Equal(t, uint64(1000000), SeedBaseAmount)
	require.Equal(t, 0.04, PoolFeePercent)
	require.Equal(t, 1.0, PoolVirtualPrice)
	require.Equal(t, 0.5, SlippageTolerancePercent)
	require.Equal(t, uint64(250), RewardAccrualAmount)
	require.False(t, PersistReceipts)
}

func TestLoadConfigMissingVariable(t *testing.T) {
	setValidEnv(t)

	// t.Setenv registered the restore; unset for the duration of this test.
	require.NoError(t, os.Unsetenv("SEED_BASE_AMOUNT"))
	require.Error(t, LoadConfig())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric seed", "SEED_BASE_AMOUNT", "lots"},
		{"negative fee", "POOL_FEE_PERCENT", "-1"},
		{"fee at limit", "POOL_FEE_PERCENT", "100"},
		{"zero virtual price", "POOL_VIRTUAL_PRICE", "0"},
		{"tolerance at limit", "SLIPPAGE_TOLERANCE_PERCENT", "100"},
		{"non-bool persistence", "PERSIST_RECEIPTS", "maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setValidEnv(t)
			t.Setenv(tc.key, tc.value)
			require.Error(t, LoadConfig())
		})
	}
}
