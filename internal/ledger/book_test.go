package ledger

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestCreditAndDebit(t *testing.T) {
	book := NewBook()

	require.True(t, book.Balance("uusdc").IsZero())

	require.NoError(t, book.Credit("uusdc", sdkmath.NewInt(1000)))
	require.Equal(t, sdkmath.NewInt(1000), book.Balance("uusdc"))

	require.NoError(t, book.Debit("uusdc", sdkmath.NewInt(400)))
	require.Equal(t, sdkmath.NewInt(600), book.Balance("uusdc"))
}

func TestDebitFailsBeforeGoingNegative(t *testing.T) {
	book := NewBook()
	require.NoError(t, book.Credit("uusdc", sdkmath.NewInt(100)))

	err := book.Debit("uusdc", sdkmath.NewInt(101))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, sdkmath.NewInt(100), book.Balance("uusdc"))
}

func TestAmountValidation(t *testing.T) {
	book := NewBook()

	require.ErrorIs(t, book.Credit("", sdkmath.NewInt(1)), ErrAmountInvalid)
	require.ErrorIs(t, book.Credit("uusdc", sdkmath.Int{}), ErrAmountInvalid)
	require.ErrorIs(t, book.Credit("uusdc", sdkmath.NewInt(-1)), ErrAmountInvalid)
	require.ErrorIs(t, book.Debit("uusdc", sdkmath.NewInt(-1)), ErrAmountInvalid)
}

func TestAllowanceLifecycle(t *testing.T) {
	book := NewBook()
	require.NoError(t, book.Credit("lp/1", sdkmath.NewInt(500)))

	require.NoError(t, book.Approve("staker", "lp/1", sdkmath.NewInt(300)))
	require.Equal(t, sdkmath.NewInt(300), book.Allowance("staker", "lp/1"))

	require.NoError(t, book.UseAllowance("staker", "lp/1", sdkmath.NewInt(200)))
	require.Equal(t, sdkmath.NewInt(100), book.Allowance("staker", "lp/1"))
	require.Equal(t, sdkmath.NewInt(300), book.Balance("lp/1"))

	// Remaining allowance no longer covers this pull.
	err := book.UseAllowance("staker", "lp/1", sdkmath.NewInt(200))
	require.ErrorIs(t, err, ErrInsufficientAllowance)
	require.Equal(t, sdkmath.NewInt(300), book.Balance("lp/1"))
}

func TestUseAllowanceRequiresBalance(t *testing.T) {
	book := NewBook()
	require.NoError(t, book.Credit("lp/1", sdkmath.NewInt(50)))
	require.NoError(t, book.Approve("staker", "lp/1", sdkmath.NewInt(100)))

	err := book.UseAllowance("staker", "lp/1", sdkmath.NewInt(80))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	// Allowance is untouched when the debit fails.
	require.Equal(t, sdkmath.NewInt(100), book.Allowance("staker", "lp/1"))
}

func TestApproveOverwrites(t *testing.T) {
	book := NewBook()
	require.NoError(t, book.Approve("staker", "lp/1", sdkmath.NewInt(300)))
	require.NoError(t, book.Approve("staker", "lp/1", sdkmath.ZeroInt()))
	require.True(t, book.Allowance("staker", "lp/1").IsZero())
}

func TestSnapshotRestore(t *testing.T) {
	book := NewBook()
	require.NoError(t, book.Credit("uusdc", sdkmath.NewInt(1000)))
	require.NoError(t, book.Approve("staker", "lp/1", sdkmath.NewInt(50)))

	snap := book.Snapshot()

	require.NoError(t, book.Debit("uusdc", sdkmath.NewInt(700)))
	require.NoError(t, book.Credit("lp/1", sdkmath.NewInt(700)))
	require.NoError(t, book.Approve("staker", "lp/1", sdkmath.NewInt(999)))

	book.Restore(snap)

	require.Equal(t, sdkmath.NewInt(1000), book.Balance("uusdc"))
	require.True(t, book.Balance("lp/1").IsZero())
	require.Equal(t, sdkmath.NewInt(50), book.Allowance("staker", "lp/1"))
}

func TestDenomsSortedNonZero(t *testing.T) {
	book := NewBook()
	require.NoError(t, book.Credit("uosmo", sdkmath.NewInt(1)))
	require.NoError(t, book.Credit("uatom", sdkmath.NewInt(1)))
	require.NoError(t, book.Credit("uusdc", sdkmath.NewInt(5)))
	require.NoError(t, book.Debit("uusdc", sdkmath.NewInt(5)))

	require.Equal(t, []string{"uatom", "uosmo"}, book.Denoms())
}
