/*

This file contains the receipt types recorded for every executed batch. They
are persisted by internal/state so operators can audit what each strategist
batch did to the vault's holdings.

*/

package types

import (
	"time"

	sdktypes "github.com/cosmos/cosmos-sdk/types"
)

// InstructionReceipt records the outcome of a single instruction.
type InstructionReceipt struct {
	Index      int             `json:"index"`
	Adaptor    AdaptorID       `json:"adaptor"`
	Op         Operation       `json:"op"`
	Position   PositionKey     `json:"position"`
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
	CoinsIn    []sdktypes.Coin `json:"coins_in,omitempty"`
	CoinsOut   []sdktypes.Coin `json:"coins_out,omitempty"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// BatchReceipt records one batch as a single succeeded/failed unit. A failed
// batch carries the machine-readable failure reason of the instruction that
// aborted it; no partial effects survive a failure.
type BatchReceipt struct {
	BatchID       string               `json:"batch_id"`
	Description   string               `json:"description,omitempty"`
	StartedAt     time.Time            `json:"started_at"`
	CompletedAt   time.Time            `json:"completed_at"`
	Success       bool                 `json:"success"`
	FailureReason string               `json:"failure_reason,omitempty"`
	Instructions  []InstructionReceipt `json:"instructions"`
}
