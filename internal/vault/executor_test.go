package vault

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/openvault/adaptors/internal/adaptor"
	"github.com/openvault/adaptors/internal/adaptor/farm"
	"github.com/openvault/adaptors/internal/adaptor/lppool"
	"github.com/openvault/adaptors/internal/ledger"
	"github.com/openvault/adaptors/internal/protocol"
	"github.com/openvault/adaptors/internal/registry"
	"github.com/openvault/adaptors/internal/types"
)

const (
	testFarmID      = protocol.FarmID(1)
	poolPositionKey = types.PositionKey("pool-1")
	farmPositionKey = types.PositionKey("farm-1")
)

type fixture struct {
	executor *Executor
	book     *ledger.Book
	pool     *protocol.BalancedPool
	farm     *protocol.FarmSim
	poolID   types.AdaptorID
	farmID   types.AdaptorID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pool, err := protocol.NewBalancedPool(protocol.BalancedPoolConfig{
		Name:         "test-pool",
		Coins:        []string{"uusdc", "uatom"},
		ReceiptDenom: "lp/test",
		Rates: []sdkmath.LegacyDec{
			sdkmath.LegacyOneDec(),
			sdkmath.LegacyNewDec(10),
		},
		VirtualPrice: sdkmath.LegacyOneDec(),
		Fee:          sdkmath.LegacyZeroDec(),
	})
	require.NoError(t, err)

	farmSim, err := protocol.NewFarmSim("test-farm", "ureward", map[protocol.FarmID]protocol.PoolInfo{
		testFarmID: {ReceiptDenom: "lp/test", Staker: "test-farm/staker"},
	})
	require.NoError(t, err)

	poolAdaptor := lppool.New()
	farmAdaptor, err := farm.New(farmSim)
	require.NoError(t, err)

	reg := registry.New()
	require.NoError(t, reg.RegisterAdaptor(poolAdaptor))
	require.NoError(t, reg.RegisterAdaptor(farmAdaptor))
	require.NoError(t, reg.RegisterPosition(poolPositionKey, poolAdaptor.Identifier(),
		types.PoolPosition{Pool: pool, ReceiptDenom: "lp/test"}))
	require.NoError(t, reg.RegisterPosition(farmPositionKey, farmAdaptor.Identifier(),
		types.FarmPosition{FarmID: testFarmID, ReceiptDenom: "lp/test", Pool: pool}))

	book := ledger.NewBook()
	require.NoError(t, book.Credit("uusdc", sdkmath.NewInt(10000)))

	executor, err := NewExecutor(book, reg, pool, farmSim)
	require.NoError(t, err)

	return &fixture{
		executor: executor,
		book:     book,
		pool:     pool,
		farm:     farmSim,
		poolID:   poolAdaptor.Identifier(),
		farmID:   farmAdaptor.Identifier(),
	}
}

func openInstruction(f *fixture, amount int64, minMint int64) types.Instruction {
	return types.Instruction{
		Adaptor:           f.poolID,
		Op:                types.OpOpenPosition,
		Position:          poolPositionKey,
		AmountsIn:         []sdktypes.Coin{{Denom: "uusdc", Amount: sdkmath.NewInt(amount)}},
		MinimumMintAmount: sdkmath.NewInt(minMint),
	}
}

func TestExecuteBatchOrderedSuccess(t *testing.T) {
	f := newFixture(t)

	receipt, err := f.executor.ExecuteBatch(context.Background(), types.Batch{
		Description: "enter and stake",
		Instructions: []types.Instruction{
			openInstruction(f, 10000, 10000),
			{
				Adaptor:  f.farmID,
				Op:       types.OpOpenPosition,
				Position: farmPositionKey,
				Amount:   sdkmath.NewInt(10000),
			},
		},
	})
	require.NoError(t, err)
	require.True(t, receipt.Success)
	require.NotEmpty(t, receipt.BatchID)
	require.Len(t, receipt.Instructions, 2)
	require.Equal(t, 0, receipt.Instructions[0].Index)
	require.Equal(t, 1, receipt.Instructions[1].Index)

	require.True(t, f.book.Balance("uusdc").IsZero())
	require.True(t, f.book.Balance("lp/test").IsZero())
	require.Equal(t, sdkmath.NewInt(10000), f.farm.StakedBalance(testFarmID))
}

func TestExecuteBatchRollsBackEverything(t *testing.T) {
	f := newFixture(t)

	// The second instruction's mint floor is unreachable; the first
	// instruction's effects must be unwound with it.
	receipt, err := f.executor.ExecuteBatch(context.Background(), types.Batch{
		Description: "doomed",
		Instructions: []types.Instruction{
			openInstruction(f, 5000, 5000),
			openInstruction(f, 5000, 5001),
		},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, adaptor.ErrMintThresholdNotReached)
	require.NotNil(t, receipt)
	require.False(t, receipt.Success)
	require.NotEmpty(t, receipt.FailureReason)

	require.Equal(t, sdkmath.NewInt(10000), f.book.Balance("uusdc"))
	require.True(t, f.book.Balance("lp/test").IsZero())
	require.True(t, f.pool.Supply().IsZero())
}

func TestExecuteBatchRollsBackProtocolState(t *testing.T) {
	f := newFixture(t)

	_, err := f.executor.ExecuteBatch(context.Background(), types.Batch{
		Description: "stake then fail",
		Instructions: []types.Instruction{
			openInstruction(f, 10000, 0),
			{
				Adaptor:  f.farmID,
				Op:       types.OpOpenPosition,
				Position: farmPositionKey,
				Amount:   sdkmath.NewInt(10000),
			},
			{
				// Full-stake partial withdrawal is refused by the adaptor.
				Adaptor:  f.farmID,
				Op:       types.OpTakeFromPosition,
				Position: farmPositionKey,
				Amount:   sdkmath.NewInt(10000),
			},
		},
	})
	require.ErrorIs(t, err, adaptor.ErrCallClosePositionInstead)

	// Farm stake and pool supply are back to zero, the book is whole.
	require.True(t, f.farm.StakedBalance(testFarmID).IsZero())
	require.True(t, f.pool.Supply().IsZero())
	require.Equal(t, sdkmath.NewInt(10000), f.book.Balance("uusdc"))
}

func TestExecuteBatchValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.executor.ExecuteBatch(context.Background(), types.Batch{})
	require.ErrorIs(t, err, ErrBatchInvalid)

	_, err = f.executor.ExecuteBatch(context.Background(), types.Batch{
		Instructions: []types.Instruction{{Adaptor: f.poolID, Position: poolPositionKey, Op: "SWAP"}},
	})
	require.ErrorIs(t, err, ErrInstructionInvalid)

	_, err = f.executor.ExecuteBatch(context.Background(), types.Batch{
		Instructions: []types.Instruction{{Adaptor: f.poolID, Op: types.OpOpenPosition}},
	})
	require.ErrorIs(t, err, ErrInstructionInvalid)
}

func TestExecuteBatchAdaptorMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.executor.ExecuteBatch(context.Background(), types.Batch{
		Instructions: []types.Instruction{{
			Adaptor:  f.farmID,
			Op:       types.OpOpenPosition,
			Position: poolPositionKey,
			Amount:   sdkmath.NewInt(1),
		}},
	})
	require.ErrorIs(t, err, ErrAdaptorMismatch)
	require.Equal(t, sdkmath.NewInt(10000), f.book.Balance("uusdc"))
}

func TestExecuteBatchUnknownPosition(t *testing.T) {
	f := newFixture(t)

	_, err := f.executor.ExecuteBatch(context.Background(), types.Batch{
		Instructions: []types.Instruction{{
			Adaptor:  f.poolID,
			Op:       types.OpOpenPosition,
			Position: "nowhere",
		}},
	})
	require.ErrorIs(t, err, registry.ErrPositionUnknown)
}

func TestExecuteBatchCancelledContext(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.executor.ExecuteBatch(ctx, types.Batch{
		Instructions: []types.Instruction{openInstruction(f, 1000, 0)},
	})
	require.Error(t, err)
	require.Equal(t, sdkmath.NewInt(10000), f.book.Balance("uusdc"))
}

func TestUserPathsRefusedThroughExecutor(t *testing.T) {
	f := newFixture(t)

	err := f.executor.UserDeposit(poolPositionKey, sdkmath.NewInt(100), nil)
	require.ErrorIs(t, err, adaptor.ErrUserDepositsNotAllowed)

	err = f.executor.UserWithdraw(farmPositionKey, sdkmath.NewInt(100), ledger.NewBook(), nil)
	require.ErrorIs(t, err, adaptor.ErrUserWithdrawsNotAllowed)

	withdrawable, err := f.executor.WithdrawableFrom(poolPositionKey, nil)
	require.NoError(t, err)
	require.True(t, withdrawable.IsZero())
}

func TestTotalValue(t *testing.T) {
	f := newFixture(t)

	total, err := f.executor.TotalValue()
	require.NoError(t, err)
	require.True(t, total.IsZero())

	_, err = f.executor.ExecuteBatch(context.Background(), types.Batch{
		Instructions: []types.Instruction{
			openInstruction(f, 10000, 0),
			{
				Adaptor:  f.farmID,
				Op:       types.OpOpenPosition,
				Position: farmPositionKey,
				Amount:   sdkmath.NewInt(10000),
			},
		},
	})
	require.NoError(t, err)

	total, err = f.executor.TotalValue()
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(10000), total)
}

// reentrantAdaptor calls back into the executor from inside a batch.
type reentrantAdaptor struct {
	executor *Executor
	inner    types.Batch
	err      error
}

func (r *reentrantAdaptor) Identifier() types.AdaptorID { return "reentrant" }
func (r *reentrantAdaptor) Deposit(*ledger.Book, sdkmath.Int, types.Descriptor, []byte) error {
	return adaptor.ErrUserDepositsNotAllowed
}
func (r *reentrantAdaptor) Withdraw(*ledger.Book, sdkmath.Int, *ledger.Book, types.Descriptor, []byte) error {
	return adaptor.ErrUserWithdrawsNotAllowed
}
func (r *reentrantAdaptor) WithdrawableFrom(*ledger.Book, types.Descriptor, []byte) sdkmath.Int {
	return sdkmath.ZeroInt()
}
func (r *reentrantAdaptor) BalanceOf(*ledger.Book, types.Descriptor) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}
func (r *reentrantAdaptor) AssetOf(types.Descriptor) (string, error) { return "uusdc", nil }
func (r *reentrantAdaptor) Execute(ctx context.Context, _ *ledger.Book, _ types.Instruction, _ types.Descriptor) (types.InstructionReceipt, error) {
	_, r.err = r.executor.ExecuteBatch(ctx, r.inner)
	return types.InstructionReceipt{Success: true}, nil
}

func TestReentrantExecutionRefused(t *testing.T) {
	f := newFixture(t)

	reentrant := &reentrantAdaptor{
		executor: f.executor,
		inner: types.Batch{
			Instructions: []types.Instruction{openInstruction(f, 1000, 0)},
		},
	}

	reg := registry.New()
	require.NoError(t, reg.RegisterAdaptor(reentrant))
	require.NoError(t, reg.RegisterPosition("loop", "reentrant",
		types.PoolPosition{Pool: f.pool, ReceiptDenom: "lp/test"}))

	executor, err := NewExecutor(f.book, reg)
	require.NoError(t, err)
	reentrant.executor = executor

	_, err = executor.ExecuteBatch(context.Background(), types.Batch{
		Instructions: []types.Instruction{{
			Adaptor:  "reentrant",
			Op:       types.OpOpenPosition,
			Position: "loop",
		}},
	})
	require.NoError(t, err)
	require.ErrorIs(t, reentrant.err, ErrReentrantExecution)
}
