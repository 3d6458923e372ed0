/*

This file contains the in-memory yield farm used for rehearsal runs and
tests. It mirrors the external farm's surface: boolean results, allowance
consumption on deposit, a distinct full-exit path that also unregisters
reward bookkeeping, and switches to reproduce protocol-side refusals.

*/

package protocol

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/openvault/adaptors/internal/ledger"
	"github.com/openvault/adaptors/internal/logger"
)

// FarmSim is a deterministic Farm implementation.
type FarmSim struct {
	name        string
	rewardDenom string
	pools       map[FarmID]PoolInfo
	staked      map[FarmID]sdkmath.Int
	pending     map[FarmID]sdkmath.Int

	// Shutdown refuses all deposits, as a farm in wind-down would.
	Shutdown bool
	// PauseClaims refuses reward settlement.
	PauseClaims bool

	log zerolog.Logger
}

// NewFarmSim builds a farm with the given reward denom and staking pools.
func NewFarmSim(name, rewardDenom string, pools map[FarmID]PoolInfo) (*FarmSim, error) {
	if name == "" {
		return nil, errors.New("farm name cannot be empty")
	}
	if rewardDenom == "" {
		return nil, errors.New("reward denom cannot be empty")
	}
	if len(pools) == 0 {
		return nil, errors.New("farm must have at least one pool")
	}
	for id, info := range pools {
		if info.ReceiptDenom == "" {
			return nil, fmt.Errorf("pool %d has empty receipt denom", id)
		}
		if info.Staker == "" {
			return nil, fmt.Errorf("pool %d has empty staker", id)
		}
	}
	copied := make(map[FarmID]PoolInfo, len(pools))
	for id, info := range pools {
		copied[id] = info
	}
	return &FarmSim{
		name:        name,
		rewardDenom: rewardDenom,
		pools:       copied,
		staked:      make(map[FarmID]sdkmath.Int),
		pending:     make(map[FarmID]sdkmath.Int),
		log:         logger.GetForComponent("farm_sim").With().Str("farm", name).Logger(),
	}, nil
}

// Name identifies the farm.
func (f *FarmSim) Name() string { return f.name }

// RewardDenom returns the denom rewards settle in.
func (f *FarmSim) RewardDenom() string { return f.rewardDenom }

// PoolInfo implements Farm.
func (f *FarmSim) PoolInfo(id FarmID) (PoolInfo, error) {
	info, ok := f.pools[id]
	if !ok {
		return PoolInfo{}, errors.Join(ErrUnknownFarm, fmt.Errorf("pool id %d", id))
	}
	return info, nil
}

// Deposit implements Farm.
func (f *FarmSim) Deposit(book *ledger.Book, id FarmID, amount sdkmath.Int, stake bool) bool {
	info, ok := f.pools[id]
	if !ok || book == nil || f.Shutdown || !stake {
		return false
	}
	if amount.IsNil() || !amount.IsPositive() {
		return false
	}
	if err := book.UseAllowance(info.Staker, info.ReceiptDenom, amount); err != nil {
		f.log.Debug().Err(err).Uint64("poolId", uint64(id)).Msg("Deposit refused")
		return false
	}
	f.staked[id] = f.StakedBalance(id).Add(amount)
	f.log.Debug().
		Uint64("poolId", uint64(id)).
		Str("amount", amount.String()).
		Str("staked", f.staked[id].String()).
		Msg("Stake deposited")
	return true
}

// WithdrawAndUnwrap implements Farm.
func (f *FarmSim) WithdrawAndUnwrap(book *ledger.Book, id FarmID, amount sdkmath.Int, claim bool) bool {
	info, ok := f.pools[id]
	if !ok || book == nil {
		return false
	}
	if amount.IsNil() || !amount.IsPositive() {
		return false
	}
	staked := f.StakedBalance(id)
	if amount.GT(staked) {
		f.log.Debug().
			Uint64("poolId", uint64(id)).
			Str("requested", amount.String()).
			Str("staked", staked.String()).
			Msg("Withdraw refused: insufficient stake")
		return false
	}
	// Rewards settle before the principal moves: a refused claim must leave
	// both the stake and the book untouched.
	if claim && !f.settleRewards(book, id) {
		return false
	}
	if err := book.Credit(info.ReceiptDenom, amount); err != nil {
		return false
	}
	f.staked[id] = staked.Sub(amount)
	return true
}

// WithdrawAllAndUnwrap implements Farm. The full exit always unregisters the
// pool's reward accrual, whether or not rewards are claimed on the way out.
func (f *FarmSim) WithdrawAllAndUnwrap(book *ledger.Book, id FarmID, claim bool) bool {
	info, ok := f.pools[id]
	if !ok || book == nil {
		return false
	}
	staked := f.StakedBalance(id)
	if claim && !f.settleRewards(book, id) {
		return false
	}
	if staked.IsPositive() {
		if err := book.Credit(info.ReceiptDenom, staked); err != nil {
			return false
		}
	}
	delete(f.staked, id)
	delete(f.pending, id)
	return true
}

// GetReward implements Farm.
func (f *FarmSim) GetReward(book *ledger.Book, id FarmID) bool {
	if _, ok := f.pools[id]; !ok || book == nil {
		return false
	}
	if f.PauseClaims {
		return false
	}
	return f.settleRewards(book, id)
}

func (f *FarmSim) settleRewards(book *ledger.Book, id FarmID) bool {
	if f.PauseClaims {
		return false
	}
	pending, ok := f.pending[id]
	if !ok || pending.IsZero() {
		return true
	}
	if err := book.Credit(f.rewardDenom, pending); err != nil {
		return false
	}
	f.pending[id] = sdkmath.ZeroInt()
	f.log.Debug().
		Uint64("poolId", uint64(id)).
		Str("rewards", pending.String()).
		Msg("Rewards settled")
	return true
}

// StakedBalance implements Farm.
func (f *FarmSim) StakedBalance(id FarmID) sdkmath.Int {
	if staked, ok := f.staked[id]; ok {
		return staked
	}
	return sdkmath.ZeroInt()
}

// PendingRewards returns the unclaimed reward amount for a pool id.
func (f *FarmSim) PendingRewards(id FarmID) sdkmath.Int {
	if pending, ok := f.pending[id]; ok {
		return pending
	}
	return sdkmath.ZeroInt()
}

// AccrueReward adds amount to the pool's pending rewards, simulating yield
// earned between operations.
func (f *FarmSim) AccrueReward(id FarmID, amount sdkmath.Int) error {
	if _, ok := f.pools[id]; !ok {
		return errors.Join(ErrUnknownFarm, fmt.Errorf("pool id %d", id))
	}
	if amount.IsNil() || amount.IsNegative() {
		return errors.New("reward amount is invalid")
	}
	f.pending[id] = f.PendingRewards(id).Add(amount)
	return nil
}

// Snapshot captures the farm's mutable state and returns its restore hook.
func (f *FarmSim) Snapshot() func() {
	staked := make(map[FarmID]sdkmath.Int, len(f.staked))
	for id, amount := range f.staked {
		staked[id] = amount
	}
	pending := make(map[FarmID]sdkmath.Int, len(f.pending))
	for id, amount := range f.pending {
		pending[id] = amount
	}
	shutdown := f.Shutdown
	pauseClaims := f.PauseClaims
	return func() {
		f.staked = staked
		f.pending = pending
		f.Shutdown = shutdown
		f.PauseClaims = pauseClaims
	}
}
