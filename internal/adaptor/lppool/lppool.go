/*

This file contains the liquidity-pool adaptor: it mints pool receipt tokens
from up to three underlying assets and redeems them back to the pool's base
asset, with minimum-output slippage floors on both directions. Every
operation is strategist-only; the user entry points are refused outright.

*/

package lppool

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/openvault/adaptors/internal/adaptor"
	"github.com/openvault/adaptors/internal/ledger"
	"github.com/openvault/adaptors/internal/logger"
	"github.com/openvault/adaptors/internal/protocol"
	"github.com/openvault/adaptors/internal/types"
)

const (
	adaptorName    = "Balanced Pool Adaptor"
	adaptorVersion = "V 1.0"

	// baseCoinIndex is the valuation coin: the pool's first listed asset.
	baseCoinIndex = 0
)

// Adaptor manages balanced-pool positions. It holds no position state of its
// own; everything it touches lives in the caller's book or in the pool.
type Adaptor struct {
	log zerolog.Logger
}

// New returns the liquidity-pool adaptor.
func New() *Adaptor {
	return &Adaptor{log: logger.GetForComponent("lppool_adaptor")}
}

// Identifier implements adaptor.PositionAdaptor.
func (a *Adaptor) Identifier() types.AdaptorID {
	return adaptor.Identify(adaptorName, adaptorVersion)
}

// Deposit implements adaptor.PositionAdaptor. Pool positions move only under
// strategist control.
func (a *Adaptor) Deposit(_ *ledger.Book, _ sdkmath.Int, _ types.Descriptor, _ []byte) error {
	return adaptor.ErrUserDepositsNotAllowed
}

// Withdraw implements adaptor.PositionAdaptor.
func (a *Adaptor) Withdraw(_ *ledger.Book, _ sdkmath.Int, _ *ledger.Book, _ types.Descriptor, _ []byte) error {
	return adaptor.ErrUserWithdrawsNotAllowed
}

// WithdrawableFrom implements adaptor.PositionAdaptor. Always zero: no part
// of a strategist-only position is user-withdrawable.
func (a *Adaptor) WithdrawableFrom(_ *ledger.Book, _ types.Descriptor, _ []byte) sdkmath.Int {
	return sdkmath.ZeroInt()
}

// BalanceOf implements adaptor.PositionAdaptor: the book's receipt-token
// balance valued through the pool's own single-coin redemption quote.
func (a *Adaptor) BalanceOf(book *ledger.Book, desc types.Descriptor) (sdkmath.Int, error) {
	pos, err := descriptor(desc)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return pos.Pool.QuoteWithdrawOneCoin(book.Balance(pos.ReceiptDenom), baseCoinIndex)
}

// AssetOf implements adaptor.PositionAdaptor: the pool's base asset.
func (a *Adaptor) AssetOf(desc types.Descriptor) (string, error) {
	pos, err := descriptor(desc)
	if err != nil {
		return "", err
	}
	return pos.Pool.Coins()[baseCoinIndex], nil
}

// OpenPosition supplies up to three underlying-asset amounts (aligned with
// the pool's coin order, zeros allowed) and mints receipt tokens. The mint
// must reach minMint or the operation fails with the slippage condition. A
// fully zero supply still hits the pool.
func (a *Adaptor) OpenPosition(book *ledger.Book, amounts []sdkmath.Int, minMint sdkmath.Int, desc types.Descriptor) (sdkmath.Int, error) {
	return a.mint(book, amounts, minMint, desc)
}

// AddToPosition deposits more into an existing position. Mechanically
// identical to OpenPosition; the distinct name keeps strategist call sites
// honest about intent.
func (a *Adaptor) AddToPosition(book *ledger.Book, amounts []sdkmath.Int, minMint sdkmath.Int, desc types.Descriptor) (sdkmath.Int, error) {
	return a.mint(book, amounts, minMint, desc)
}

func (a *Adaptor) mint(book *ledger.Book, amounts []sdkmath.Int, minMint sdkmath.Int, desc types.Descriptor) (sdkmath.Int, error) {
	pos, err := descriptor(desc)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if book == nil {
		return sdkmath.ZeroInt(), errors.New("book cannot be nil")
	}
	minMint = orZero(minMint)

	minted, err := pos.Pool.AddLiquidity(book, amounts, minMint)
	if err != nil {
		if errors.Is(err, protocol.ErrMintBelowMinimum) {
			return sdkmath.ZeroInt(), errors.Join(adaptor.ErrMintThresholdNotReached, err)
		}
		return sdkmath.ZeroInt(), err
	}
	if minted.LT(minMint) {
		return sdkmath.ZeroInt(), errors.Join(adaptor.ErrMintThresholdNotReached,
			fmt.Errorf("pool minted %s, minimum %s", minted.String(), minMint.String()))
	}

	a.log.Info().
		Str("pool", pos.Pool.Name()).
		Str("minted", minted.String()).
		Str("minMint", minMint.String()).
		Msg("Receipt tokens minted")

	return minted, nil
}

// ClosePosition redeems the book's entire receipt-token balance for the
// pool's base asset, enforcing the minimum-output floor.
func (a *Adaptor) ClosePosition(book *ledger.Book, minOut sdkmath.Int, desc types.Descriptor) (sdkmath.Int, error) {
	pos, err := descriptor(desc)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if book == nil {
		return sdkmath.ZeroInt(), errors.New("book cannot be nil")
	}
	return a.redeem(book, book.Balance(pos.ReceiptDenom), minOut, pos)
}

// TakeFromPosition redeems a specified receipt-token amount, which may be
// less than the full balance, with the same minimum-output floor as close.
func (a *Adaptor) TakeFromPosition(book *ledger.Book, amount, minOut sdkmath.Int, desc types.Descriptor) (sdkmath.Int, error) {
	pos, err := descriptor(desc)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if book == nil {
		return sdkmath.ZeroInt(), errors.New("book cannot be nil")
	}
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt(), errors.Join(adaptor.ErrInstructionInvalid, errors.New("redeem amount is invalid"))
	}
	return a.redeem(book, amount, minOut, pos)
}

func (a *Adaptor) redeem(book *ledger.Book, amount, minOut sdkmath.Int, pos types.PoolPosition) (sdkmath.Int, error) {
	minOut = orZero(minOut)

	out, err := pos.Pool.RemoveLiquidityOneCoin(book, amount, baseCoinIndex, minOut)
	if err != nil {
		if errors.Is(err, protocol.ErrOutputBelowMinimum) {
			return sdkmath.ZeroInt(), errors.Join(adaptor.ErrRedeemThresholdNotReached, err)
		}
		return sdkmath.ZeroInt(), err
	}
	if out.LT(minOut) {
		return sdkmath.ZeroInt(), errors.Join(adaptor.ErrRedeemThresholdNotReached,
			fmt.Errorf("pool redeemed %s, minimum %s", out.String(), minOut.String()))
	}

	a.log.Info().
		Str("pool", pos.Pool.Name()).
		Str("redeemed", amount.String()).
		Str("out", out.String()).
		Msg("Receipt tokens redeemed to base asset")

	return out, nil
}

// Execute implements adaptor.StrategistAdaptor: symbolic-operation dispatch
// for batch execution.
func (a *Adaptor) Execute(_ context.Context, book *ledger.Book, instr types.Instruction, desc types.Descriptor) (types.InstructionReceipt, error) {
	pos, err := descriptor(desc)
	if err != nil {
		return types.InstructionReceipt{}, err
	}

	receipt := types.InstructionReceipt{
		Adaptor:    a.Identifier(),
		Op:         instr.Op,
		Position:   instr.Position,
		ExecutedAt: time.Now().UTC(),
	}

	switch instr.Op {
	case types.OpOpenPosition, types.OpAddToPosition:
		amounts, err := alignAmounts(pos.Pool, instr.AmountsIn)
		if err != nil {
			return types.InstructionReceipt{}, err
		}
		minted, err := a.mint(book, amounts, instr.MinimumMintAmount, pos)
		if err != nil {
			return types.InstructionReceipt{}, err
		}
		receipt.CoinsIn = instr.AmountsIn
		receipt.CoinsOut = []sdktypes.Coin{{Denom: pos.ReceiptDenom, Amount: minted}}

	case types.OpTakeFromPosition:
		out, err := a.TakeFromPosition(book, instr.Amount, instr.MinimumAmountOut, pos)
		if err != nil {
			return types.InstructionReceipt{}, err
		}
		receipt.CoinsIn = []sdktypes.Coin{{Denom: pos.ReceiptDenom, Amount: orZero(instr.Amount)}}
		receipt.CoinsOut = []sdktypes.Coin{{Denom: pos.Pool.Coins()[baseCoinIndex], Amount: out}}

	case types.OpClosePosition:
		redeemed := book.Balance(pos.ReceiptDenom)
		out, err := a.ClosePosition(book, instr.MinimumAmountOut, pos)
		if err != nil {
			return types.InstructionReceipt{}, err
		}
		receipt.CoinsIn = []sdktypes.Coin{{Denom: pos.ReceiptDenom, Amount: redeemed}}
		receipt.CoinsOut = []sdktypes.Coin{{Denom: pos.Pool.Coins()[baseCoinIndex], Amount: out}}

	default:
		return types.InstructionReceipt{}, errors.Join(adaptor.ErrUnknownOperation,
			fmt.Errorf("operation %s is not a pool operation", instr.Op))
	}

	receipt.Success = true
	return receipt, nil
}

// descriptor narrows the opaque descriptor to a pool position and checks its
// internal consistency.
func descriptor(desc types.Descriptor) (types.PoolPosition, error) {
	pos, ok := desc.(types.PoolPosition)
	if !ok {
		return types.PoolPosition{}, errors.Join(adaptor.ErrDescriptorInvalid,
			fmt.Errorf("expected pool position, got %T", desc))
	}
	if pos.Pool == nil {
		return types.PoolPosition{}, errors.Join(adaptor.ErrDescriptorInvalid, errors.New("pool reference is nil"))
	}
	if pos.ReceiptDenom == "" || pos.ReceiptDenom != pos.Pool.ReceiptDenom() {
		return types.PoolPosition{}, errors.Join(adaptor.ErrDescriptorInvalid,
			fmt.Errorf("receipt denom %q does not match pool receipt %q", pos.ReceiptDenom, pos.Pool.ReceiptDenom()))
	}
	return pos, nil
}

// alignAmounts maps the instruction's coin list onto the pool's coin order.
// Omitted coins are supplied as zero; unknown or duplicate denoms fail.
func alignAmounts(pool protocol.LiquidityPool, coins []sdktypes.Coin) ([]sdkmath.Int, error) {
	poolCoins := pool.Coins()
	amounts := make([]sdkmath.Int, len(poolCoins))
	for i := range amounts {
		amounts[i] = sdkmath.ZeroInt()
	}
	for _, coin := range coins {
		if coin.Amount.IsNil() || coin.Amount.IsNegative() {
			return nil, errors.Join(adaptor.ErrInstructionInvalid,
				fmt.Errorf("coin %s amount is invalid", coin.Denom))
		}
		idx := -1
		for j, denom := range poolCoins {
			if denom == coin.Denom {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, errors.Join(adaptor.ErrInstructionInvalid,
				fmt.Errorf("denom %s is not a pool coin", coin.Denom))
		}
		if !amounts[idx].IsZero() {
			return nil, errors.Join(adaptor.ErrInstructionInvalid,
				fmt.Errorf("denom %s supplied twice", coin.Denom))
		}
		amounts[idx] = coin.Amount
	}
	return amounts, nil
}

func orZero(amount sdkmath.Int) sdkmath.Int {
	if amount.IsNil() {
		return sdkmath.ZeroInt()
	}
	return amount
}
