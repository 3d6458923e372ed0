/*

This file contains the types for registered positions: the opaque descriptors
that tell an adaptor where its external protocol state lives.

*/

package types

import (
	"github.com/openvault/adaptors/internal/protocol"
)

// AdaptorID is the stable, collision-resistant tag of an adaptor type+version.
// It identifies adaptor logic independent of any deployment detail.
type AdaptorID string

// PositionKey names a registered position within the registry. A key is bound
// to exactly one (adaptor, descriptor) pair for its whole life.
type PositionKey string

// PoolPosition is the descriptor for a balanced liquidity-pool position.
// It is immutable once registered; a different pool or receipt denom is a
// different position.
type PoolPosition struct {
	Pool         protocol.LiquidityPool
	ReceiptDenom string
}

// FarmPosition is the descriptor for a staked receipt-token position. The
// pool reference is carried so staked receipt tokens can be valued with the
// pool's own quoting function.
type FarmPosition struct {
	FarmID       protocol.FarmID
	ReceiptDenom string
	Pool         protocol.LiquidityPool
}

// Descriptor is the closed set of position descriptor kinds. Descriptors are
// opaque to everything except the adaptor they were registered for, and must
// be passed through unchanged on every call referencing the position.
type Descriptor interface {
	isDescriptor()
}

func (PoolPosition) isDescriptor() {}
func (FarmPosition) isDescriptor() {}
