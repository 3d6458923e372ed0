package ledger

import sdkmath "cosmossdk.io/math"

// Snapshot is an opaque copy of a book's full state.
type Snapshot struct {
	balances   map[string]sdkmath.Int
	allowances map[allowanceKey]sdkmath.Int
}

// Snapshot copies the book's balances and allowances. Restoring the snapshot
// discards every mutation made since it was taken; this is the unwind
// mechanism behind operation- and batch-level atomicity.
func (b *Book) Snapshot() Snapshot {
	balances := make(map[string]sdkmath.Int, len(b.balances))
	for denom, bal := range b.balances {
		balances[denom] = bal
	}
	allowances := make(map[allowanceKey]sdkmath.Int, len(b.allowances))
	for key, amount := range b.allowances {
		allowances[key] = amount
	}
	return Snapshot{balances: balances, allowances: allowances}
}

// Restore replaces the book's state with the snapshot's.
func (b *Book) Restore(snap Snapshot) {
	balances := make(map[string]sdkmath.Int, len(snap.balances))
	for denom, bal := range snap.balances {
		balances[denom] = bal
	}
	allowances := make(map[allowanceKey]sdkmath.Int, len(snap.allowances))
	for key, amount := range snap.allowances {
		allowances[key] = amount
	}
	b.balances = balances
	b.allowances = allowances
}
