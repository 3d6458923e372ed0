/*

This file contains the interfaces of the external protocols the adaptors
drive: the balanced liquidity pool (mint/redeem/quote) and the yield farm
(stake/unstake/claim). The real protocols live elsewhere; this package also
ships deterministic in-memory implementations used for rehearsal and tests.

*/

package protocol

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/openvault/adaptors/internal/ledger"
)

// FarmID identifies a staking pool within the yield-farm contract.
type FarmID uint64

// Error definitions for protocol-level failures
var (
	ErrMintBelowMinimum   = errors.New("minted receipt tokens below minimum")
	ErrOutputBelowMinimum = errors.New("redeemed output below minimum")
	ErrCoinIndexInvalid   = errors.New("coin index is invalid")
	ErrUnknownFarm        = errors.New("farm id is unknown")
)

// LiquidityPool is the balanced multi-asset pool the LP adaptor drives. All
// operations execute against the caller's book; the pool never holds the
// vault's receipt tokens. The pool's first listed coin is its base asset.
type LiquidityPool interface {
	// Name identifies the pool, and is the spender name allowances are
	// granted against.
	Name() string

	// Coins returns the pool's underlying asset denoms, base asset first.
	Coins() []string

	// ReceiptDenom returns the denom of the pool's receipt token.
	ReceiptDenom() string

	// AddLiquidity supplies amounts (aligned with Coins, zeros allowed) and
	// mints receipt tokens to the book. Fails with ErrMintBelowMinimum if
	// the mint would fall short of minMint; on failure nothing moves.
	AddLiquidity(book *ledger.Book, amounts []sdkmath.Int, minMint sdkmath.Int) (sdkmath.Int, error)

	// RemoveLiquidityOneCoin redeems amount receipt tokens for the single
	// coin at coinIndex. Fails with ErrOutputBelowMinimum if the output
	// would fall short of minOut; on failure nothing moves.
	RemoveLiquidityOneCoin(book *ledger.Book, amount sdkmath.Int, coinIndex int, minOut sdkmath.Int) (sdkmath.Int, error)

	// QuoteWithdrawOneCoin quotes a single-coin redemption of amount
	// receipt tokens without touching any state. This is the valuation
	// function: position value is always this quote at coinIndex 0.
	QuoteWithdrawOneCoin(amount sdkmath.Int, coinIndex int) (sdkmath.Int, error)
}

// PoolInfo describes a farm's staking pool.
type PoolInfo struct {
	ReceiptDenom string
	// Staker is the sub-contract the receipt token allowance must be
	// granted to before depositing.
	Staker string
}

// Farm is the yield-farm contract the staking adaptor drives. The boolean
// results mirror the external protocol's convention: false means the call
// was accepted but the protocol refused it.
type Farm interface {
	// PoolInfo returns the staking sub-contract for a pool id.
	PoolInfo(id FarmID) (PoolInfo, error)

	// RewardDenom returns the denom rewards settle in.
	RewardDenom() string

	// Deposit stakes amount of the pool's receipt token out of the book,
	// consuming the allowance granted to the pool's staker. stake enables
	// auto-compounding.
	Deposit(book *ledger.Book, id FarmID, amount sdkmath.Int, stake bool) bool

	// WithdrawAndUnwrap unstakes amount back into the book, optionally
	// claiming pending rewards. Returns false if amount exceeds the
	// recorded stake or the claim is refused; a refusal moves nothing.
	WithdrawAndUnwrap(book *ledger.Book, id FarmID, amount sdkmath.Int, claim bool) bool

	// WithdrawAllAndUnwrap unstakes the entire recorded stake and
	// unregisters the pool's reward bookkeeping. A refusal moves nothing.
	WithdrawAllAndUnwrap(book *ledger.Book, id FarmID, claim bool) bool

	// GetReward settles pending rewards into the book without touching the
	// staked principal.
	GetReward(book *ledger.Book, id FarmID) bool

	// StakedBalance returns the book's recorded stake for a pool id.
	StakedBalance(id FarmID) sdkmath.Int
}
