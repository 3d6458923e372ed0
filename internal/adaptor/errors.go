package adaptor

import "errors"

// Error definitions for zero-tolerance error handling. Every failure aborts
// the enclosing batch; nothing is retried.
var (
	// Capability violations: user entry points on strategist-only adaptors.
	ErrUserDepositsNotAllowed  = errors.New("user deposits are not allowed")
	ErrUserWithdrawsNotAllowed = errors.New("user withdraws are not allowed")

	// Slippage violations: caller-specified minimum not reached.
	ErrMintThresholdNotReached   = errors.New("mint threshold not reached")
	ErrRedeemThresholdNotReached = errors.New("redemption threshold not reached")

	// Protocol-call failures reported by the external contracts.
	ErrDepositFailed        = errors.New("staking deposit failed")
	ErrWithdrawFailed       = errors.New("staking withdrawal failed")
	ErrCouldNotClaimRewards = errors.New("could not claim rewards")

	// Invalid full withdrawal through the partial path.
	ErrCallClosePositionInstead = errors.New("withdrawing the entire stake requires close position")

	ErrDescriptorInvalid  = errors.New("position descriptor is invalid")
	ErrInstructionInvalid = errors.New("instruction contains invalid data")
	ErrUnknownOperation   = errors.New("unknown adaptor operation")
)
