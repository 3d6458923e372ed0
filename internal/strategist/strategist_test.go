package strategist

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/openvault/adaptors/internal/adaptor/farm"
	"github.com/openvault/adaptors/internal/adaptor/lppool"
	"github.com/openvault/adaptors/internal/ledger"
	"github.com/openvault/adaptors/internal/protocol"
	"github.com/openvault/adaptors/internal/registry"
	"github.com/openvault/adaptors/internal/types"
	"github.com/openvault/adaptors/internal/vault"
)

const rehearsalFarmID = protocol.FarmID(1)

func newRehearsalConfig(t *testing.T, seed int64) Config {
	t.Helper()

	pool, err := protocol.NewBalancedPool(protocol.BalancedPoolConfig{
		Name:         "rehearsal-pool",
		Coins:        []string{"uusdc", "uatom"},
		ReceiptDenom: "lp/rehearsal",
		Rates: []sdkmath.LegacyDec{
			sdkmath.LegacyOneDec(),
			sdkmath.LegacyNewDec(10),
		},
		VirtualPrice: sdkmath.LegacyOneDec(),
		Fee:          sdkmath.LegacyZeroDec(),
	})
	require.NoError(t, err)

	farmSim, err := protocol.NewFarmSim("rehearsal-farm", "ureward", map[protocol.FarmID]protocol.PoolInfo{
		rehearsalFarmID: {ReceiptDenom: "lp/rehearsal", Staker: "rehearsal-farm/staker"},
	})
	require.NoError(t, err)

	poolAdaptor := lppool.New()
	farmAdaptor, err := farm.New(farmSim)
	require.NoError(t, err)

	reg := registry.New()
	require.NoError(t, reg.RegisterAdaptor(poolAdaptor))
	require.NoError(t, reg.RegisterAdaptor(farmAdaptor))
	require.NoError(t, reg.RegisterPosition("pool-1", poolAdaptor.Identifier(),
		types.PoolPosition{Pool: pool, ReceiptDenom: "lp/rehearsal"}))
	require.NoError(t, reg.RegisterPosition("farm-1", farmAdaptor.Identifier(),
		types.FarmPosition{FarmID: rehearsalFarmID, ReceiptDenom: "lp/rehearsal", Pool: pool}))

	book := ledger.NewBook()
	require.NoError(t, book.Credit("uusdc", sdkmath.NewInt(seed)))

	executor, err := vault.NewExecutor(book, reg, pool, farmSim)
	require.NoError(t, err)

	return Config{
		Executor:                 executor,
		Pool:                     pool,
		Farm:                     farmSim,
		FarmID:                   rehearsalFarmID,
		PoolAdaptorID:            poolAdaptor.Identifier(),
		FarmAdaptorID:            farmAdaptor.Identifier(),
		PoolPositionKey:          "pool-1",
		FarmPositionKey:          "farm-1",
		SlippageTolerancePercent: 0.5,
		RewardAccrual:            sdkmath.NewInt(250),
		VaultName:                "rehearsal",
		PersistReceipts:          false,
	}
}

func TestRunFullLifecycle(t *testing.T) {
	cfg := newRehearsalConfig(t, 1_000_000)

	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	book := cfg.Executor.Book()

	// Zero fee, so the full exit returns every base token.
	require.Equal(t, sdkmath.NewInt(1_000_000), book.Balance("uusdc"))
	require.True(t, book.Balance("lp/rehearsal").IsZero())
	require.True(t, cfg.Farm.StakedBalance(rehearsalFarmID).IsZero())
	require.True(t, cfg.Pool.Supply().IsZero())

	// Claimed rewards stay in the book after the exit.
	require.Equal(t, sdkmath.NewInt(250), book.Balance("ureward"))
}

func TestRunRequiresLiquidBase(t *testing.T) {
	cfg := newRehearsalConfig(t, 1_000_000)
	emptyBook := ledger.NewBook()
	executor, err := vault.NewExecutor(emptyBook, registry.New())
	require.NoError(t, err)
	cfg.Executor = executor

	s, err := New(cfg)
	require.NoError(t, err)
	require.Error(t, s.Run(context.Background()))
}

func TestValidateConfig(t *testing.T) {
	base := newRehearsalConfig(t, 1000)

	cfg := base
	cfg.Executor = nil
	_, err := New(cfg)
	require.Error(t, err)

	cfg = base
	cfg.SlippageTolerancePercent = 100
	_, err = New(cfg)
	require.Error(t, err)

	cfg = base
	cfg.RewardAccrual = sdkmath.Int{}
	_, err = New(cfg)
	require.Error(t, err)

	cfg = base
	cfg.VaultName = ""
	_, err = New(cfg)
	require.Error(t, err)
}
