/*

This file contains the wire form of strategist instructions: the batch the
execution context receives is an ordered list of (adaptor, operation,
arguments) entries. Effects apply in order; a failure anywhere aborts the
whole batch.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
)

// Operation defines the symbolic adaptor operation names.
type Operation string

const (
	OpOpenPosition     Operation = "OPEN_POSITION"
	OpAddToPosition    Operation = "ADD_TO_POSITION"
	OpTakeFromPosition Operation = "TAKE_FROM_POSITION"
	OpClosePosition    Operation = "CLOSE_POSITION"
	OpClaimRewards     Operation = "CLAIM_REWARDS"
)

// Instruction is a single strategist step against one registered position.
type Instruction struct {
	Adaptor  AdaptorID   `json:"adaptor"`
	Op       Operation   `json:"op"`
	Position PositionKey `json:"position"`

	// Fields for OPEN_POSITION / ADD_TO_POSITION against a liquidity pool.
	// Coins are matched to the pool's coin order by denom; omitted coins
	// are supplied as zero.
	AmountsIn []sdktypes.Coin `json:"amounts_in,omitempty"`

	// Minimum receipt tokens that must be minted (slippage floor).
	MinimumMintAmount sdkmath.Int `json:"minimum_mint_amount,omitempty"`

	// Fields for TAKE_FROM_POSITION and staking OPEN/ADD: a single
	// receipt-token amount.
	Amount sdkmath.Int `json:"amount,omitempty"`

	// Minimum base-asset output for pool redemptions (slippage floor).
	MinimumAmountOut sdkmath.Int `json:"minimum_amount_out,omitempty"`

	// Claim requests reward settlement alongside a staking withdrawal.
	Claim bool `json:"claim,omitempty"`
}

// Batch is an ordered sequence of instructions executed atomically.
type Batch struct {
	Description  string        `json:"description,omitempty"`
	Instructions []Instruction `json:"instructions"`
}
