/*

This file contains the in-memory balanced pool used for rehearsal runs and
tests. Pricing is deterministic: each coin carries a fixed rate into the
base asset, receipt tokens carry a virtual price, and a flat fee is taken on
mint and redemption. The numbers are simple on purpose; what matters is that
quoting, minting and redeeming are mutually consistent so the adaptor
invariants can be checked exactly.

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

// BalancedPool is a deterministic LiquidityPool implementation.
type BalancedPool struct {
	name         string
	coins        []string
	receiptDenom string

	// rates[i] is the value of one base unit of coins[i] in base-asset
	// units; rates[0] is always one.
	rates []sdkmath.LegacyDec

	// virtualPrice is the base-asset value of one receipt token.
	virtualPrice sdkmath.LegacyDec

	// fee is taken on every mint and redemption, e.g. 0.0004.
	fee sdkmath.LegacyDec

	supply sdkmath.Int

	log zerolog.Logger
}

// BalancedPoolConfig configures a simulated pool.
type BalancedPoolConfig struct {
	Name         string
	Coins        []string
	ReceiptDenom string
	Rates        []sdkmath.LegacyDec
	VirtualPrice sdkmath.LegacyDec
	Fee          sdkmath.LegacyDec
}

// NewBalancedPool validates the configuration and builds the pool.
func NewBalancedPool(cfg BalancedPoolConfig) (*BalancedPool, error) {
	if cfg.Name == "" {
		return nil, errors.New("pool name cannot be empty")
	}
	if len(cfg.Coins) == 0 || len(cfg.Coins) > 3 {
		return nil, fmt.Errorf("pool must list between one and three coins, got %d", len(cfg.Coins))
	}
	if cfg.ReceiptDenom == "" {
		return nil, errors.New("receipt denom cannot be empty")
	}
	if len(cfg.Rates) != len(cfg.Coins) {
		return nil, fmt.Errorf("expected %d rates, got %d", len(cfg.Coins), len(cfg.Rates))
	}
	for i, rate := range cfg.Rates {
		if rate.IsNil() || !rate.IsPositive() {
			return nil, fmt.Errorf("rate %d must be positive", i)
		}
	}
	if !cfg.Rates[0].Equal(sdkmath.LegacyOneDec()) {
		return nil, errors.New("base asset rate must be one")
	}
	if cfg.VirtualPrice.IsNil() || !cfg.VirtualPrice.IsPositive() {
		return nil, errors.New("virtual price must be positive")
	}
	if cfg.Fee.IsNil() || cfg.Fee.IsNegative() || cfg.Fee.GTE(sdkmath.LegacyOneDec()) {
		return nil, errors.New("fee must be in [0, 1)")
	}

	return &BalancedPool{
		name:         cfg.Name,
		coins:        append([]string(nil), cfg.Coins...),
		receiptDenom: cfg.ReceiptDenom,
		rates:        append([]sdkmath.LegacyDec(nil), cfg.Rates...),
		virtualPrice: cfg.VirtualPrice,
		fee:          cfg.Fee,
		supply:       sdkmath.ZeroInt(),
		log:          logger.GetForComponent("pool_sim").With().Str("pool", cfg.Name).Logger(),
	}, nil
}

func (p *BalancedPool) Name() string         { return p.name }
func (p *BalancedPool) Coins() []string      { return append([]string(nil), p.coins...) }
func (p *BalancedPool) ReceiptDenom() string { return p.receiptDenom }

// Supply returns the outstanding receipt-token supply.
func (p *BalancedPool) Supply() sdkmath.Int { return p.supply }

// AddLiquidity implements LiquidityPool. The mint amount is computed before
// anything moves, so a failed minimum check leaves the book untouched.
func (p *BalancedPool) AddLiquidity(book *ledger.Book, amounts []sdkmath.Int, minMint sdkmath.Int) (sdkmath.Int, error) {
	if book == nil {
		return sdkmath.ZeroInt(), errors.New("book cannot be nil")
	}
	if len(amounts) != len(p.coins) {
		return sdkmath.ZeroInt(), fmt.Errorf("expected %d amounts, got %d", len(p.coins), len(amounts))
	}
	if minMint.IsNil() || minMint.IsNegative() {
		return sdkmath.ZeroInt(), errors.New("minimum mint amount is invalid")
	}

	value := sdkmath.LegacyZeroDec()
	for i, amount := range amounts {
		if amount.IsNil() || amount.IsNegative() {
			return sdkmath.ZeroInt(), fmt.Errorf("amount %d is invalid", i)
		}
		if amount.GT(book.Balance(p.coins[i])) {
			return sdkmath.ZeroInt(), errors.Join(ledger.ErrInsufficientBalance,
				fmt.Errorf("coin %s: supply %s exceeds balance", p.coins[i], amount.String()))
		}
		value = value.Add(sdkmath.LegacyNewDecFromInt(amount).Mul(p.rates[i]))
	}

	minted := value.
		Mul(sdkmath.LegacyOneDec().Sub(p.fee)).
		Quo(p.virtualPrice).
		TruncateInt()

	if minted.LT(minMint) {
		return sdkmath.ZeroInt(), errors.Join(ErrMintBelowMinimum,
			fmt.Errorf("would mint %s, minimum %s", minted.String(), minMint.String()))
	}

	for i, amount := range amounts {
		if amount.IsZero() {
			continue
		}
		if err := book.Debit(p.coins[i], amount); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	if err := book.Credit(p.receiptDenom, minted); err != nil {
		return sdkmath.ZeroInt(), err
	}
	p.supply = p.supply.Add(minted)

	p.log.Debug().
		Str("minted", minted.String()).
		Str("minMint", minMint.String()).
		Msg("Liquidity added")

	return minted, nil
}

// RemoveLiquidityOneCoin implements LiquidityPool.
func (p *BalancedPool) RemoveLiquidityOneCoin(book *ledger.Book, amount sdkmath.Int, coinIndex int, minOut sdkmath.Int) (sdkmath.Int, error) {
	if book == nil {
		return sdkmath.ZeroInt(), errors.New("book cannot be nil")
	}
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt(), errors.New("receipt amount is invalid")
	}
	if minOut.IsNil() || minOut.IsNegative() {
		return sdkmath.ZeroInt(), errors.New("minimum output is invalid")
	}
	out, err := p.QuoteWithdrawOneCoin(amount, coinIndex)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if out.LT(minOut) {
		return sdkmath.ZeroInt(), errors.Join(ErrOutputBelowMinimum,
			fmt.Errorf("would redeem %s%s, minimum %s", out.String(), p.coins[coinIndex], minOut.String()))
	}
	if amount.GT(book.Balance(p.receiptDenom)) {
		return sdkmath.ZeroInt(), errors.Join(ledger.ErrInsufficientBalance,
			fmt.Errorf("redeem %s exceeds receipt balance", amount.String()))
	}

	if err := book.Debit(p.receiptDenom, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := book.Credit(p.coins[coinIndex], out); err != nil {
		return sdkmath.ZeroInt(), err
	}
	p.supply = p.supply.Sub(amount)

	p.log.Debug().
		Str("redeemed", amount.String()).
		Str("out", out.String()).
		Str("coin", p.coins[coinIndex]).
		Msg("Liquidity removed to one coin")

	return out, nil
}

// QuoteWithdrawOneCoin implements LiquidityPool.
func (p *BalancedPool) QuoteWithdrawOneCoin(amount sdkmath.Int, coinIndex int) (sdkmath.Int, error) {
	if coinIndex < 0 || coinIndex >= len(p.coins) {
		return sdkmath.ZeroInt(), errors.Join(ErrCoinIndexInvalid,
			fmt.Errorf("index %d, pool has %d coins", coinIndex, len(p.coins)))
	}
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt(), errors.New("receipt amount is invalid")
	}
	out := sdkmath.LegacyNewDecFromInt(amount).
		Mul(p.virtualPrice).
		Mul(sdkmath.LegacyOneDec().Sub(p.fee)).
		Quo(p.rates[coinIndex]).
		TruncateInt()
	return out, nil
}

// QuoteAddLiquidity returns the receipt tokens a supply of the given amounts
// would mint, without moving anything.
func (p *BalancedPool) QuoteAddLiquidity(amounts []sdkmath.Int) (sdkmath.Int, error) {
	if len(amounts) != len(p.coins) {
		return sdkmath.ZeroInt(), fmt.Errorf("expected %d amounts, got %d", len(p.coins), len(amounts))
	}
	value := sdkmath.LegacyZeroDec()
	for i, amount := range amounts {
		if amount.IsNil() || amount.IsNegative() {
			return sdkmath.ZeroInt(), fmt.Errorf("amount %d is invalid", i)
		}
		value = value.Add(sdkmath.LegacyNewDecFromInt(amount).Mul(p.rates[i]))
	}
	minted := value.
		Mul(sdkmath.LegacyOneDec().Sub(p.fee)).
		Quo(p.virtualPrice).
		TruncateInt()
	return minted, nil
}

// SetVirtualPrice moves the receipt token's base-asset value, simulating
// accrued pool yield between operations.
func (p *BalancedPool) SetVirtualPrice(price sdkmath.LegacyDec) error {
	if price.IsNil() || !price.IsPositive() {
		return errors.New("virtual price must be positive")
	}
	p.virtualPrice = price
	return nil
}

// Snapshot captures the pool's mutable state and returns its restore hook.
func (p *BalancedPool) Snapshot() func() {
	supply := p.supply
	virtualPrice := p.virtualPrice
	return func() {
		p.supply = supply
		p.virtualPrice = virtualPrice
	}
}
