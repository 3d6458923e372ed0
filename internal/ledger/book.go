/*

This file contains the holdings book of the execution context. The book is
the only mutable shared resource in the system: adaptors and protocol
collaborators never hold custody, they read and mutate the vault's balances
through these methods, in the vault's name.

*/

package ledger

import (
	"errors"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountInvalid         = errors.New("amount is invalid")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Book holds the execution context's token balances and the allowances it
// has granted to external contracts. All amounts are whole base units.
type Book struct {
	balances   map[string]sdkmath.Int
	allowances map[allowanceKey]sdkmath.Int
}

type allowanceKey struct {
	spender string
	denom   string
}

// NewBook returns an empty holdings book.
func NewBook() *Book {
	return &Book{
		balances:   make(map[string]sdkmath.Int),
		allowances: make(map[allowanceKey]sdkmath.Int),
	}
}

// Balance returns the held amount of denom. Unknown denoms are zero.
func (b *Book) Balance(denom string) sdkmath.Int {
	if bal, ok := b.balances[denom]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// Credit adds amount of denom to the book.
func (b *Book) Credit(denom string, amount sdkmath.Int) error {
	if err := validateAmount(denom, amount); err != nil {
		return err
	}
	b.balances[denom] = b.Balance(denom).Add(amount)
	return nil
}

// Debit removes amount of denom from the book. A debit that would leave the
// balance negative fails without changing anything.
func (b *Book) Debit(denom string, amount sdkmath.Int) error {
	if err := validateAmount(denom, amount); err != nil {
		return err
	}
	bal := b.Balance(denom)
	if bal.LT(amount) {
		return errors.Join(ErrInsufficientBalance,
			fmt.Errorf("debit %s%s exceeds balance %s", amount.String(), denom, bal.String()))
	}
	b.balances[denom] = bal.Sub(amount)
	return nil
}

// Approve grants spender the right to pull up to amount of denom. A second
// approval overwrites the first.
func (b *Book) Approve(spender, denom string, amount sdkmath.Int) error {
	if err := validateAmount(denom, amount); err != nil {
		return err
	}
	if spender == "" {
		return errors.New("spender cannot be empty")
	}
	b.allowances[allowanceKey{spender: spender, denom: denom}] = amount
	return nil
}

// Allowance returns the remaining allowance of denom granted to spender.
func (b *Book) Allowance(spender, denom string) sdkmath.Int {
	if a, ok := b.allowances[allowanceKey{spender: spender, denom: denom}]; ok {
		return a
	}
	return sdkmath.ZeroInt()
}

// UseAllowance consumes amount of spender's allowance and debits the book.
// Both the allowance and the balance must cover the amount.
func (b *Book) UseAllowance(spender, denom string, amount sdkmath.Int) error {
	if err := validateAmount(denom, amount); err != nil {
		return err
	}
	key := allowanceKey{spender: spender, denom: denom}
	allowed := b.Allowance(spender, denom)
	if allowed.LT(amount) {
		return errors.Join(ErrInsufficientAllowance,
			fmt.Errorf("spender %s allowed %s%s, needs %s", spender, allowed.String(), denom, amount.String()))
	}
	if err := b.Debit(denom, amount); err != nil {
		return err
	}
	b.allowances[key] = allowed.Sub(amount)
	return nil
}

// Denoms returns every denom with a non-zero balance, sorted.
func (b *Book) Denoms() []string {
	denoms := make([]string, 0, len(b.balances))
	for denom, bal := range b.balances {
		if !bal.IsZero() {
			denoms = append(denoms, denom)
		}
	}
	sort.Strings(denoms)
	return denoms
}

func validateAmount(denom string, amount sdkmath.Int) error {
	if denom == "" {
		return errors.Join(ErrAmountInvalid, errors.New("denom cannot be empty"))
	}
	if amount.IsNil() {
		return errors.Join(ErrAmountInvalid, errors.New("amount is nil"))
	}
	if amount.IsNegative() {
		return errors.Join(ErrAmountInvalid, errors.New("amount cannot be negative"))
	}
	return nil
}
