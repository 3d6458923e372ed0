package protocol

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/openvault/adaptors/internal/ledger"
)

const testFarmID = FarmID(7)

func newTestFarm(t *testing.T) *FarmSim {
	t.Helper()
	farm, err := NewFarmSim("test-farm", "ureward", map[FarmID]PoolInfo{
		testFarmID: {ReceiptDenom: "lp/test", Staker: "test-farm/staker"},
	})
	require.NoError(t, err)
	return farm
}

func newStakedBook(t *testing.T, farm *FarmSim, amount int64) *ledger.Book {
	t.Helper()
	book := ledger.NewBook()
	require.NoError(t, book.Credit("lp/test", sdkmath.NewInt(amount)))
	require.NoError(t, book.Approve("test-farm/staker", "lp/test", sdkmath.NewInt(amount)))
	require.True(t, farm.Deposit(book, testFarmID, sdkmath.NewInt(amount), true))
	return book
}

func TestDepositConsumesAllowance(t *testing.T) {
	farm := newTestFarm(t)
	book := newStakedBook(t, farm, 100)

	require.Equal(t, sdkmath.NewInt(100), farm.StakedBalance(testFarmID))
	require.True(t, book.Balance("lp/test").IsZero())
	require.True(t, book.Allowance("test-farm/staker", "lp/test").IsZero())
}

func TestDepositRefusals(t *testing.T) {
	farm := newTestFarm(t)
	book := ledger.NewBook()
	require.NoError(t, book.Credit("lp/test", sdkmath.NewInt(100)))

	// No allowance granted.
	require.False(t, farm.Deposit(book, testFarmID, sdkmath.NewInt(100), true))

	require.NoError(t, book.Approve("test-farm/staker", "lp/test", sdkmath.NewInt(100)))

	// Staking must be requested.
	require.False(t, farm.Deposit(book, testFarmID, sdkmath.NewInt(100), false))

	// Unknown pool.
	require.False(t, farm.Deposit(book, FarmID(99), sdkmath.NewInt(100), true))

	// Farm in wind-down.
	farm.Shutdown = true
	require.False(t, farm.Deposit(book, testFarmID, sdkmath.NewInt(100), true))

	require.Equal(t, sdkmath.NewInt(100), book.Balance("lp/test"))
	require.True(t, farm.StakedBalance(testFarmID).IsZero())
}

func TestWithdrawPartial(t *testing.T) {
	farm := newTestFarm(t)
	book := newStakedBook(t, farm, 100)

	require.True(t, farm.WithdrawAndUnwrap(book, testFarmID, sdkmath.NewInt(40), false))
	require.Equal(t, sdkmath.NewInt(60), farm.StakedBalance(testFarmID))
	require.Equal(t, sdkmath.NewInt(40), book.Balance("lp/test"))
}

func TestWithdrawMoreThanStakedRefused(t *testing.T) {
	farm := newTestFarm(t)
	book := newStakedBook(t, farm, 10)

	require.False(t, farm.WithdrawAndUnwrap(book, testFarmID, sdkmath.NewInt(25), false))
	require.Equal(t, sdkmath.NewInt(10), farm.StakedBalance(testFarmID))
	require.True(t, book.Balance("lp/test").IsZero())
}

func TestWithdrawAllUnregistersRewards(t *testing.T) {
	farm := newTestFarm(t)
	book := newStakedBook(t, farm, 100)
	require.NoError(t, farm.AccrueReward(testFarmID, sdkmath.NewInt(5)))

	require.True(t, farm.WithdrawAllAndUnwrap(book, testFarmID, false))

	require.Equal(t, sdkmath.NewInt(100), book.Balance("lp/test"))
	require.True(t, farm.StakedBalance(testFarmID).IsZero())
	// Unclaimed rewards are forfeited on full exit without claiming.
	require.True(t, farm.PendingRewards(testFarmID).IsZero())
	require.True(t, book.Balance("ureward").IsZero())
}

func TestWithdrawAllWithClaim(t *testing.T) {
	farm := newTestFarm(t)
	book := newStakedBook(t, farm, 100)
	require.NoError(t, farm.AccrueReward(testFarmID, sdkmath.NewInt(5)))

	require.True(t, farm.WithdrawAllAndUnwrap(book, testFarmID, true))
	require.Equal(t, sdkmath.NewInt(5), book.Balance("ureward"))
}

func TestGetReward(t *testing.T) {
	farm := newTestFarm(t)
	book := newStakedBook(t, farm, 100)
	require.NoError(t, farm.AccrueReward(testFarmID, sdkmath.NewInt(12)))

	require.True(t, farm.GetReward(book, testFarmID))
	require.Equal(t, sdkmath.NewInt(12), book.Balance("ureward"))
	require.True(t, farm.PendingRewards(testFarmID).IsZero())

	// Claiming with nothing pending still succeeds.
	require.True(t, farm.GetReward(book, testFarmID))
	require.Equal(t, sdkmath.NewInt(12), book.Balance("ureward"))
}

func TestWithdrawRefusedWhenClaimsPaused(t *testing.T) {
	farm := newTestFarm(t)
	book := newStakedBook(t, farm, 100)
	require.NoError(t, farm.AccrueReward(testFarmID, sdkmath.NewInt(5)))
	farm.PauseClaims = true

	// A refused claim must leave both the stake and the book untouched, for
	// the partial and the full-exit path alike.
	require.False(t, farm.WithdrawAndUnwrap(book, testFarmID, sdkmath.NewInt(40), true))
	require.False(t, farm.WithdrawAllAndUnwrap(book, testFarmID, true))

	require.Equal(t, sdkmath.NewInt(100), farm.StakedBalance(testFarmID))
	require.Equal(t, sdkmath.NewInt(5), farm.PendingRewards(testFarmID))
	require.True(t, book.Balance("lp/test").IsZero())
	require.True(t, book.Balance("ureward").IsZero())

	// Withdrawing without a claim is unaffected by the pause.
	require.True(t, farm.WithdrawAndUnwrap(book, testFarmID, sdkmath.NewInt(40), false))
	require.Equal(t, sdkmath.NewInt(60), farm.StakedBalance(testFarmID))
	require.Equal(t, sdkmath.NewInt(40), book.Balance("lp/test"))
}

func TestGetRewardPaused(t *testing.T) {
	farm := newTestFarm(t)
	book := newStakedBook(t, farm, 100)
	require.NoError(t, farm.AccrueReward(testFarmID, sdkmath.NewInt(12)))

	farm.PauseClaims = true
	require.False(t, farm.GetReward(book, testFarmID))
	require.Equal(t, sdkmath.NewInt(12), farm.PendingRewards(testFarmID))
	require.True(t, book.Balance("ureward").IsZero())
}

func TestFarmSnapshotRestore(t *testing.T) {
	farm := newTestFarm(t)
	book := newStakedBook(t, farm, 100)
	require.NoError(t, farm.AccrueReward(testFarmID, sdkmath.NewInt(3)))

	restore := farm.Snapshot()

	require.True(t, farm.WithdrawAllAndUnwrap(book, testFarmID, true))
	farm.Shutdown = true

	restore()

	require.Equal(t, sdkmath.NewInt(100), farm.StakedBalance(testFarmID))
	require.Equal(t, sdkmath.NewInt(3), farm.PendingRewards(testFarmID))
	require.False(t, farm.Shutdown)
}
