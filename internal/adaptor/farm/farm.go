/*

This file contains the staking adaptor: it stakes a pool's receipt token
into the yield-farm contract, unstakes it partially or fully, and settles
rewards. Capital under active stake moves only under strategist control —
the farm imposes unlock and penalty semantics the vault's generic user
redemption path cannot reason about, so the user entry points are refused
unconditionally.

*/

package farm

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
	adaptorName    = "Farm Staking Adaptor"
	adaptorVersion = "V 1.0"

	baseCoinIndex = 0
)

// Adaptor manages staked receipt-token positions against one farm contract.
type Adaptor struct {
	farm protocol.Farm
	log  zerolog.Logger
}

// New returns a staking adaptor bound to the given farm.
func New(farm protocol.Farm) (*Adaptor, error) {
	if farm == nil {
		return nil, errors.New("farm cannot be nil")
	}
	return &Adaptor{
		farm: farm,
		log:  logger.GetForComponent("farm_adaptor"),
	}, nil
}

// Identifier implements adaptor.PositionAdaptor.
func (a *Adaptor) Identifier() types.AdaptorID {
	return adaptor.Identify(adaptorName, adaptorVersion)
}

// Deposit implements adaptor.PositionAdaptor. Never permitted.
func (a *Adaptor) Deposit(_ *ledger.Book, _ sdkmath.Int, _ types.Descriptor, _ []byte) error {
	return adaptor.ErrUserDepositsNotAllowed
}

// Withdraw implements adaptor.PositionAdaptor. Never permitted.
func (a *Adaptor) Withdraw(_ *ledger.Book, _ sdkmath.Int, _ *ledger.Book, _ types.Descriptor, _ []byte) error {
	return adaptor.ErrUserWithdrawsNotAllowed
}

// WithdrawableFrom implements adaptor.PositionAdaptor. Always zero.
func (a *Adaptor) WithdrawableFrom(_ *ledger.Book, _ types.Descriptor, _ []byte) sdkmath.Int {
	return sdkmath.ZeroInt()
}

// BalanceOf implements adaptor.PositionAdaptor: the unstaked receipt-token
// balance plus the farm's recorded stake, each valued through the pool's
// single-coin redemption quote. A token sits either in the book or in the
// farm, never both, so the two terms cannot double-count.
func (a *Adaptor) BalanceOf(book *ledger.Book, desc types.Descriptor) (sdkmath.Int, error) {
	pos, err := a.descriptor(desc)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	unstaked, err := pos.Pool.QuoteWithdrawOneCoin(book.Balance(pos.ReceiptDenom), baseCoinIndex)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	staked, err := pos.Pool.QuoteWithdrawOneCoin(a.farm.StakedBalance(pos.FarmID), baseCoinIndex)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return unstaked.Add(staked), nil
}

// AssetOf implements adaptor.PositionAdaptor: the pool's base asset.
func (a *Adaptor) AssetOf(desc types.Descriptor) (string, error) {
	pos, err := a.descriptor(desc)
	if err != nil {
		return "", err
	}
	return pos.Pool.Coins()[baseCoinIndex], nil
}

// OpenPosition stakes amount of the position's receipt token into the farm
// with auto-compounding enabled.
func (a *Adaptor) OpenPosition(book *ledger.Book, amount sdkmath.Int, desc types.Descriptor) error {
	return a.stake(book, amount, desc)
}

// AddToPosition stakes more into an existing position; same routine as open.
func (a *Adaptor) AddToPosition(book *ledger.Book, amount sdkmath.Int, desc types.Descriptor) error {
	return a.stake(book, amount, desc)
}

func (a *Adaptor) stake(book *ledger.Book, amount sdkmath.Int, desc types.Descriptor) error {
	pos, err := a.descriptor(desc)
	if err != nil {
		return err
	}
	if book == nil {
		return errors.New("book cannot be nil")
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errors.Join(adaptor.ErrInstructionInvalid, errors.New("stake amount must be positive"))
	}
	info, err := a.farm.PoolInfo(pos.FarmID)
	if err != nil {
		return err
	}

	if err := book.Approve(info.Staker, pos.ReceiptDenom, amount); err != nil {
		return err
	}
	if !a.farm.Deposit(book, pos.FarmID, amount, true) {
		// The farm refused the stake; take the approval back with it.
		if err := book.Approve(info.Staker, pos.ReceiptDenom, sdkmath.ZeroInt()); err != nil {
			return err
		}
		return errors.Join(adaptor.ErrDepositFailed,
			fmt.Errorf("farm refused deposit of %s%s into pool %d", amount.String(), pos.ReceiptDenom, pos.FarmID))
	}

	a.log.Info().
		Uint64("poolId", uint64(pos.FarmID)).
		Str("amount", amount.String()).
		Str("staked", a.farm.StakedBalance(pos.FarmID).String()).
		Msg("Receipt tokens staked")

	return nil
}

// TakeFromPosition unstakes amount, optionally claiming pending rewards.
// Withdrawing the entire staked balance through this path is refused: full
// exit must also unregister the farm's reward bookkeeping, which only
// ClosePosition does. Letting a coincidental full-amount partial withdrawal
// through would leave that bookkeeping inconsistent.
func (a *Adaptor) TakeFromPosition(book *ledger.Book, amount sdkmath.Int, claim bool, desc types.Descriptor) error {
	pos, err := a.descriptor(desc)
	if err != nil {
		return err
	}
	if book == nil {
		return errors.New("book cannot be nil")
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errors.Join(adaptor.ErrInstructionInvalid, errors.New("unstake amount must be positive"))
	}

	staked := a.farm.StakedBalance(pos.FarmID)
	if amount.Equal(staked) {
		return errors.Join(adaptor.ErrCallClosePositionInstead,
			fmt.Errorf("amount %s equals the entire stake for pool %d", amount.String(), pos.FarmID))
	}
	if !a.farm.WithdrawAndUnwrap(book, pos.FarmID, amount, claim) {
		return errors.Join(adaptor.ErrWithdrawFailed,
			fmt.Errorf("farm refused withdrawal of %s from pool %d (staked %s)", amount.String(), pos.FarmID, staked.String()))
	}

	a.log.Info().
		Uint64("poolId", uint64(pos.FarmID)).
		Str("amount", amount.String()).
		Bool("claim", claim).
		Msg("Receipt tokens unstaked")

	return nil
}

// ClosePosition unstakes the entire staked balance, optionally claiming
// rewards, and unregisters the pool's reward bookkeeping.
func (a *Adaptor) ClosePosition(book *ledger.Book, claim bool, desc types.Descriptor) (sdkmath.Int, error) {
	pos, err := a.descriptor(desc)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if book == nil {
		return sdkmath.ZeroInt(), errors.New("book cannot be nil")
	}

	staked := a.farm.StakedBalance(pos.FarmID)
	if !a.farm.WithdrawAllAndUnwrap(book, pos.FarmID, claim) {
		return sdkmath.ZeroInt(), errors.Join(adaptor.ErrWithdrawFailed,
			fmt.Errorf("farm refused full exit from pool %d", pos.FarmID))
	}

	a.log.Info().
		Uint64("poolId", uint64(pos.FarmID)).
		Str("unstaked", staked.String()).
		Bool("claim", claim).
		Msg("Position closed")

	return staked, nil
}

// ClaimRewards settles pending rewards without touching the staked
// principal.
func (a *Adaptor) ClaimRewards(book *ledger.Book, desc types.Descriptor) error {
	pos, err := a.descriptor(desc)
	if err != nil {
		return err
	}
	if book == nil {
		return errors.New("book cannot be nil")
	}
	if !a.farm.GetReward(book, pos.FarmID) {
		return errors.Join(adaptor.ErrCouldNotClaimRewards,
			fmt.Errorf("farm refused reward claim for pool %d", pos.FarmID))
	}
	a.log.Info().Uint64("poolId", uint64(pos.FarmID)).Msg("Rewards claimed")
	return nil
}

// Execute implements adaptor.StrategistAdaptor.
func (a *Adaptor) Execute(_ context.Context, book *ledger.Book, instr types.Instruction, desc types.Descriptor) (types.InstructionReceipt, error) {
	pos, err := a.descriptor(desc)
	if err != nil {
		return types.InstructionReceipt{}, err
	}
	if book == nil {
		return types.InstructionReceipt{}, errors.New("book cannot be nil")
	}

	receipt := types.InstructionReceipt{
		Adaptor:    a.Identifier(),
		Op:         instr.Op,
		Position:   instr.Position,
		ExecutedAt: time.Now().UTC(),
	}

	rewardDenom := a.farm.RewardDenom()
	rewardsBefore := book.Balance(rewardDenom)

	switch instr.Op {
	case types.OpOpenPosition, types.OpAddToPosition:
		if err := a.stake(book, instr.Amount, pos); err != nil {
			return types.InstructionReceipt{}, err
		}
		receipt.CoinsIn = []sdktypes.Coin{{Denom: pos.ReceiptDenom, Amount: instr.Amount}}

	case types.OpTakeFromPosition:
		if err := a.TakeFromPosition(book, instr.Amount, instr.Claim, pos); err != nil {
			return types.InstructionReceipt{}, err
		}
		receipt.CoinsOut = []sdktypes.Coin{{Denom: pos.ReceiptDenom, Amount: instr.Amount}}

	case types.OpClosePosition:
		unstaked, err := a.ClosePosition(book, instr.Claim, pos)
		if err != nil {
			return types.InstructionReceipt{}, err
		}
		receipt.CoinsOut = []sdktypes.Coin{{Denom: pos.ReceiptDenom, Amount: unstaked}}

	case types.OpClaimRewards:
		if err := a.ClaimRewards(book, pos); err != nil {
			return types.InstructionReceipt{}, err
		}

	default:
		return types.InstructionReceipt{}, errors.Join(adaptor.ErrUnknownOperation,
			fmt.Errorf("operation %s is not a staking operation", instr.Op))
	}

	// Claimed rewards are part of what moved into the book.
	if claimed := book.Balance(rewardDenom).Sub(rewardsBefore); claimed.IsPositive() {
		receipt.CoinsOut = append(receipt.CoinsOut, sdktypes.Coin{Denom: rewardDenom, Amount: claimed})
	}

	receipt.Success = true
	return receipt, nil
}

// descriptor narrows the opaque descriptor to a farm position and checks its
// internal consistency against the bound farm.
func (a *Adaptor) descriptor(desc types.Descriptor) (types.FarmPosition, error) {
	pos, ok := desc.(types.FarmPosition)
	if !ok {
		return types.FarmPosition{}, errors.Join(adaptor.ErrDescriptorInvalid,
			fmt.Errorf("expected farm position, got %T", desc))
	}
	if pos.Pool == nil {
		return types.FarmPosition{}, errors.Join(adaptor.ErrDescriptorInvalid, errors.New("pool reference is nil"))
	}
	if pos.ReceiptDenom == "" || pos.ReceiptDenom != pos.Pool.ReceiptDenom() {
		return types.FarmPosition{}, errors.Join(adaptor.ErrDescriptorInvalid,
			fmt.Errorf("receipt denom %q does not match pool receipt %q", pos.ReceiptDenom, pos.Pool.ReceiptDenom()))
	}
	info, err := a.farm.PoolInfo(pos.FarmID)
	if err != nil {
		return types.FarmPosition{}, errors.Join(adaptor.ErrDescriptorInvalid, err)
	}
	if info.ReceiptDenom != pos.ReceiptDenom {
		return types.FarmPosition{}, errors.Join(adaptor.ErrDescriptorInvalid,
			fmt.Errorf("farm pool %d stakes %q, descriptor carries %q", pos.FarmID, info.ReceiptDenom, pos.ReceiptDenom))
	}
	return pos, nil
}
