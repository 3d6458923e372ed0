// Package strategist drives rehearsal runs against the simulated protocols.
// A run walks the full lifecycle of both adaptor kinds through the batch
// executor: enter the pool, stake the receipts, accrue and claim rewards,
// partially unstake, then exit everything, with a deliberately failing batch
// in the middle to exercise the rollback path.
package strategist

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/openvault/adaptors/internal/adaptor"
	"github.com/openvault/adaptors/internal/logger"
	"github.com/openvault/adaptors/internal/protocol"
	"github.com/openvault/adaptors/internal/state"
	"github.com/openvault/adaptors/internal/types"
	"github.com/openvault/adaptors/internal/utils"
	"github.com/openvault/adaptors/internal/vault"
)

// Config holds the dependencies and knobs for a rehearsal run.
type Config struct {
	Executor *vault.Executor
	Pool     *protocol.BalancedPool
	Farm     *protocol.FarmSim
	FarmID   protocol.FarmID

	PoolAdaptorID   types.AdaptorID
	FarmAdaptorID   types.AdaptorID
	PoolPositionKey types.PositionKey
	FarmPositionKey types.PositionKey

	// SlippageTolerancePercent sets minimum-output floors this far below the
	// quoted amounts.
	SlippageTolerancePercent float64

	// RewardAccrual is credited as pending farm rewards before the claim step.
	RewardAccrual sdkmath.Int

	VaultName       string
	PersistReceipts bool
}

// Strategist executes the scripted rehearsal.
type Strategist struct {
	cfg Config
	log zerolog.Logger
}

// New creates a strategist with dependency injection.
func New(cfg Config) (*Strategist, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("strategist configuration validation failed: %w", err)
	}
	return &Strategist{
		cfg: cfg,
		log: logger.GetForComponent("strategist"),
	}, nil
}

// validateConfig validates the strategist configuration.
func validateConfig(cfg Config) error {
	if cfg.Executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}
	if cfg.Pool == nil {
		return fmt.Errorf("pool cannot be nil")
	}
	if cfg.Farm == nil {
		return fmt.Errorf("farm cannot be nil")
	}
	if cfg.PoolAdaptorID == "" || cfg.FarmAdaptorID == "" {
		return fmt.Errorf("adaptor identifiers cannot be empty")
	}
	if cfg.PoolPositionKey == "" || cfg.FarmPositionKey == "" {
		return fmt.Errorf("position keys cannot be empty")
	}
	if cfg.SlippageTolerancePercent < 0 || cfg.SlippageTolerancePercent >= 100 {
		return fmt.Errorf("slippage tolerance must be in [0, 100)")
	}
	if cfg.RewardAccrual.IsNil() || cfg.RewardAccrual.IsNegative() {
		return fmt.Errorf("reward accrual is invalid")
	}
	if cfg.VaultName == "" {
		return fmt.Errorf("vault name cannot be empty")
	}
	return nil
}

// Run walks the full rehearsal. It returns an error only on unexpected
// failures; the deliberately failing batch is part of the script.
func (s *Strategist) Run(ctx context.Context) error {
	runStart := time.Now()
	s.log.Info().Str("vault", s.cfg.VaultName).Msg("--- Starting rehearsal run ---")

	baseDenom := s.cfg.Pool.Coins()[0]
	receiptDenom := s.cfg.Pool.ReceiptDenom()
	book := s.cfg.Executor.Book()

	initialLiquid := book.Balance(baseDenom)
	if !initialLiquid.IsPositive() {
		return fmt.Errorf("book holds no %s to rehearse with", baseDenom)
	}
	s.logValuation("initial state", "")

	// Step 1: supply half the liquid base asset to the pool.
	supply := initialLiquid.QuoRaw(2)
	amounts := make([]sdkmath.Int, len(s.cfg.Pool.Coins()))
	for i := range amounts {
		amounts[i] = sdkmath.ZeroInt()
	}
	amounts[0] = supply

	expectedMint, err := s.cfg.Pool.QuoteAddLiquidity(amounts)
	if err != nil {
		return fmt.Errorf("quoting pool entry: %w", err)
	}
	minMint, err := s.floor(expectedMint)
	if err != nil {
		return err
	}

	if err := s.executeBatch(ctx, types.Batch{
		Description: "enter pool",
		Instructions: []types.Instruction{{
			Adaptor:           s.cfg.PoolAdaptorID,
			Op:                types.OpOpenPosition,
			Position:          s.cfg.PoolPositionKey,
			AmountsIn:         []sdktypes.Coin{{Denom: baseDenom, Amount: supply}},
			MinimumMintAmount: minMint,
		}},
	}); err != nil {
		return err
	}

	// Step 2: a batch whose mint floor cannot be met. It must fail and leave
	// every holding exactly as it was.
	preFailureValue, err := s.cfg.Executor.TotalValue()
	if err != nil {
		return fmt.Errorf("valuing before rollback rehearsal: %w", err)
	}
	unreachable := expectedMint.MulRaw(2).AddRaw(1)
	_, err = s.cfg.Executor.ExecuteBatch(ctx, types.Batch{
		Description: "rollback rehearsal",
		Instructions: []types.Instruction{{
			Adaptor:           s.cfg.PoolAdaptorID,
			Op:                types.OpAddToPosition,
			Position:          s.cfg.PoolPositionKey,
			AmountsIn:         []sdktypes.Coin{{Denom: baseDenom, Amount: book.Balance(baseDenom)}},
			MinimumMintAmount: unreachable,
		}},
	})
	if err == nil {
		return errors.New("rollback rehearsal batch unexpectedly succeeded")
	}
	if !errors.Is(err, adaptor.ErrMintThresholdNotReached) {
		return fmt.Errorf("rollback rehearsal failed for the wrong reason: %w", err)
	}
	postFailureValue, err := s.cfg.Executor.TotalValue()
	if err != nil {
		return fmt.Errorf("valuing after rollback rehearsal: %w", err)
	}
	if !postFailureValue.Equal(preFailureValue) {
		return fmt.Errorf("rollback left the vault at %s, expected %s",
			postFailureValue.String(), preFailureValue.String())
	}
	s.log.Info().
		Str("value", postFailureValue.String()).
		Msg("Failed batch rolled back cleanly")

	// Step 3: stake every minted receipt token.
	receipts := book.Balance(receiptDenom)
	if err := s.executeBatch(ctx, types.Batch{
		Description: "stake receipts",
		Instructions: []types.Instruction{{
			Adaptor:  s.cfg.FarmAdaptorID,
			Op:       types.OpOpenPosition,
			Position: s.cfg.FarmPositionKey,
			Amount:   receipts,
		}},
	}); err != nil {
		return err
	}

	// Step 4: accrue and claim rewards.
	if s.cfg.RewardAccrual.IsPositive() {
		if err := s.cfg.Farm.AccrueReward(s.cfg.FarmID, s.cfg.RewardAccrual); err != nil {
			return fmt.Errorf("accruing rewards: %w", err)
		}
		if err := s.executeBatch(ctx, types.Batch{
			Description: "claim rewards",
			Instructions: []types.Instruction{{
				Adaptor:  s.cfg.FarmAdaptorID,
				Op:       types.OpClaimRewards,
				Position: s.cfg.FarmPositionKey,
			}},
		}); err != nil {
			return err
		}
		s.log.Info().
			Str("rewards", book.Balance(s.cfg.Farm.RewardDenom()).String()).
			Str("denom", s.cfg.Farm.RewardDenom()).
			Msg("Rewards settled into the book")
	}

	// Step 5: unstake half the position.
	staked := s.cfg.Farm.StakedBalance(s.cfg.FarmID)
	if err := s.executeBatch(ctx, types.Batch{
		Description: "partial unstake",
		Instructions: []types.Instruction{{
			Adaptor:  s.cfg.FarmAdaptorID,
			Op:       types.OpTakeFromPosition,
			Position: s.cfg.FarmPositionKey,
			Amount:   staked.QuoRaw(2),
		}},
	}); err != nil {
		return err
	}

	// Step 6: full exit, farm first so the receipts are back in the book
	// before the pool redemption. Both fit in one batch.
	totalReceipts := book.Balance(receiptDenom).Add(s.cfg.Farm.StakedBalance(s.cfg.FarmID))
	expectedOut, err := s.cfg.Pool.QuoteWithdrawOneCoin(totalReceipts, 0)
	if err != nil {
		return fmt.Errorf("quoting pool exit: %w", err)
	}
	minOut, err := s.floor(expectedOut)
	if err != nil {
		return err
	}
	if err := s.executeBatch(ctx, types.Batch{
		Description: "full exit",
		Instructions: []types.Instruction{
			{
				Adaptor:  s.cfg.FarmAdaptorID,
				Op:       types.OpClosePosition,
				Position: s.cfg.FarmPositionKey,
				Claim:    true,
			},
			{
				Adaptor:          s.cfg.PoolAdaptorID,
				Op:               types.OpClosePosition,
				Position:         s.cfg.PoolPositionKey,
				MinimumAmountOut: minOut,
			},
		},
	}); err != nil {
		return err
	}

	if !book.Balance(receiptDenom).IsZero() {
		return fmt.Errorf("receipt tokens remain after full exit: %s", book.Balance(receiptDenom).String())
	}

	s.logValuation("final state", "")
	s.log.Info().
		Dur("elapsed", time.Since(runStart)).
		Str("initialLiquid", initialLiquid.String()).
		Str("finalLiquid", book.Balance(baseDenom).String()).
		Msg("--- Rehearsal run complete ---")

	return nil
}

// executeBatch runs one batch, logs the outcome, and persists the receipt
// when persistence is enabled.
func (s *Strategist) executeBatch(ctx context.Context, batch types.Batch) error {
	receipt, err := s.cfg.Executor.ExecuteBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("batch %q: %w", batch.Description, err)
	}

	s.log.Info().
		Str("batchId", receipt.BatchID).
		Str("description", batch.Description).
		Int("instructions", len(receipt.Instructions)).
		Msg("Batch executed")

	s.persist(receipt)
	s.logValuation(batch.Description, receipt.BatchID)
	return nil
}

func (s *Strategist) persist(receipt *types.BatchReceipt) {
	if !s.cfg.PersistReceipts {
		return
	}
	if _, err := state.SaveBatchReceipt(s.cfg.VaultName, receipt); err != nil {
		s.log.Error().Err(err).Str("batchId", receipt.BatchID).Msg("Failed to persist batch receipt")
		return
	}

	book := s.cfg.Executor.Book()
	total, err := s.cfg.Executor.TotalValue()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to value vault for snapshot")
		return
	}
	liquid := book.Balance(s.cfg.Pool.Coins()[0])
	positions := make(map[string]string)
	for _, key := range []types.PositionKey{s.cfg.PoolPositionKey, s.cfg.FarmPositionKey} {
		positions[string(key)] = s.positionValue(key).String()
	}
	if _, err := state.SaveValuationSnapshot(s.cfg.VaultName, receipt.BatchID, total.String(), liquid.String(), positions); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist valuation snapshot")
	}
}

func (s *Strategist) positionValue(key types.PositionKey) sdkmath.Int {
	value, err := s.valueOf(key)
	if err != nil {
		s.log.Error().Err(err).Str("position", string(key)).Msg("Failed to value position")
		return sdkmath.ZeroInt()
	}
	return value
}

func (s *Strategist) valueOf(key types.PositionKey) (sdkmath.Int, error) {
	book := s.cfg.Executor.Book()
	switch key {
	case s.cfg.PoolPositionKey:
		return s.cfg.Pool.QuoteWithdrawOneCoin(book.Balance(s.cfg.Pool.ReceiptDenom()), 0)
	case s.cfg.FarmPositionKey:
		unstakedQuote, err := s.cfg.Pool.QuoteWithdrawOneCoin(book.Balance(s.cfg.Pool.ReceiptDenom()), 0)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		stakedQuote, err := s.cfg.Pool.QuoteWithdrawOneCoin(s.cfg.Farm.StakedBalance(s.cfg.FarmID), 0)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		return unstakedQuote.Add(stakedQuote), nil
	default:
		return sdkmath.ZeroInt(), fmt.Errorf("unknown position %s", key)
	}
}

// logValuation logs the vault's total value and liquid base balance in
// human-readable units.
func (s *Strategist) logValuation(stage, batchID string) {
	total, err := s.cfg.Executor.TotalValue()
	if err != nil {
		s.log.Error().Err(err).Str("stage", stage).Msg("Failed to compute total value")
		return
	}
	liquid := s.cfg.Executor.Book().Balance(s.cfg.Pool.Coins()[0])

	// Display precision only; ledger arithmetic stays in integers.
	totalDisplay, err := utils.SDKIntToFloat64(total, 6)
	if err != nil {
		totalDisplay = 0
	}
	liquidDisplay, err := utils.SDKIntToFloat64(liquid, 6)
	if err != nil {
		liquidDisplay = 0
	}

	event := s.log.Info().
		Str("stage", stage).
		Float64("totalValue", totalDisplay).
		Float64("liquidBase", liquidDisplay)
	if batchID != "" {
		event = event.Str("batchId", batchID)
	}
	event.Msg("Vault valuation")
}

// floor applies the configured slippage tolerance below a quoted amount.
func (s *Strategist) floor(quote sdkmath.Int) (sdkmath.Int, error) {
	tolerance, err := utils.Float64ToLegacyDec(s.cfg.SlippageTolerancePercent)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("invalid slippage tolerance: %w", err)
	}
	keep := sdkmath.LegacyNewDec(100).Sub(tolerance).Quo(sdkmath.LegacyNewDec(100))
	return sdkmath.LegacyNewDecFromInt(quote).Mul(keep).TruncateInt(), nil
}
