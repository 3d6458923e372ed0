/*

This file contains the capability contract every position adaptor
implements. The vault invokes these operations generically, without knowing
which protocol sits behind a position; adaptors are stateless and operate
only on the caller-supplied holdings book.

*/

package adaptor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/openvault/adaptors/internal/ledger"
	"github.com/openvault/adaptors/internal/types"
)

// PositionAdaptor is the uniform operation set of every adaptor: identity,
// valuation, withdrawability, and the user-facing deposit/withdraw entry
// points. The cfg argument is an opaque per-position configuration blob the
// registry passes through unchanged; the adaptors in this repository do not
// interpret it.
type PositionAdaptor interface {
	// Identifier returns the stable tag of the adaptor type+version, used
	// by the registry to distinguish adaptor logic.
	Identifier() types.AdaptorID

	// Deposit adds amount of the adaptor's accepted asset to the position
	// on behalf of a regular user. Strategist-only adaptors refuse with
	// ErrUserDepositsNotAllowed.
	Deposit(book *ledger.Book, amount sdkmath.Int, desc types.Descriptor, cfg []byte) error

	// Withdraw moves amount out of the position into the recipient book on
	// behalf of a regular user. Strategist-only adaptors refuse with
	// ErrUserWithdrawsNotAllowed.
	Withdraw(book *ledger.Book, amount sdkmath.Int, recipient *ledger.Book, desc types.Descriptor, cfg []byte) error

	// WithdrawableFrom returns what a regular user could withdraw right
	// now without strategist intervention. Strategist-only adaptors return
	// exactly zero for every input; downstream liquidity checks rely on
	// this as a hard lower bound, not an estimate.
	WithdrawableFrom(book *ledger.Book, desc types.Descriptor, cfg []byte) sdkmath.Int

	// BalanceOf values everything the book holds under the position, in
	// the position's valuation unit.
	BalanceOf(book *ledger.Book, desc types.Descriptor) (sdkmath.Int, error)

	// AssetOf returns the denom of the position's valuation unit.
	AssetOf(desc types.Descriptor) (string, error)
}

// StrategistAdaptor extends the capability contract with the symbolic
// instruction entry point the execution context dispatches batches through.
type StrategistAdaptor interface {
	PositionAdaptor

	// Execute runs one strategist instruction against the position. The
	// returned receipt describes what moved; on error the caller unwinds
	// every effect of the instruction.
	Execute(ctx context.Context, book *ledger.Book, instr types.Instruction, desc types.Descriptor) (types.InstructionReceipt, error)
}

// Identify derives the collision-resistant adaptor tag from its name and
// version. The tag is independent of any deployment detail, so two copies
// of the same adaptor logic share one identity.
func Identify(name, version string) types.AdaptorID {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s %s", name, version)))
	return types.AdaptorID(hex.EncodeToString(sum[:]))
}
