// Package vault executes strategist instruction batches against the vault's
// book. A batch is all-or-nothing: instructions run in order, and the first
// failure rolls every holding and protocol balance back to the state at
// batch entry.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openvault/adaptors/internal/ledger"
	"github.com/openvault/adaptors/internal/logger"
	"github.com/openvault/adaptors/internal/registry"
	"github.com/openvault/adaptors/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrBatchInvalid       = errors.New("batch is invalid")
	ErrInstructionInvalid = errors.New("instruction is invalid")
	ErrAdaptorMismatch    = errors.New("instruction adaptor does not match the position's adaptor")
	ErrReentrantExecution = errors.New("batch execution already in progress")
)

// Snapshotter captures a component's state and returns a closure that puts
// it back. Protocol simulations implement this; the book is wrapped
// internally.
type Snapshotter interface {
	Snapshot() func()
}

// Executor owns the vault's book and runs instruction batches against the
// registered adaptors.
type Executor struct {
	book         *ledger.Book
	registry     *registry.Registry
	snapshotters []Snapshotter

	executing atomic.Bool
	log       zerolog.Logger
}

// NewExecutor creates a batch executor. Snapshotters should cover every
// protocol the registered adaptors can touch; state a snapshotter misses
// cannot be rolled back.
func NewExecutor(book *ledger.Book, reg *registry.Registry, snapshotters ...Snapshotter) (*Executor, error) {
	if book == nil {
		return nil, errors.New("book cannot be nil")
	}
	if reg == nil {
		return nil, errors.New("registry cannot be nil")
	}
	for i, s := range snapshotters {
		if s == nil {
			return nil, fmt.Errorf("snapshotter %d is nil", i)
		}
	}
	return &Executor{
		book:         book,
		registry:     reg,
		snapshotters: snapshotters,
		log:          logger.GetForComponent("vault_executor"),
	}, nil
}

// Book returns the executor's book for valuation and inspection.
func (e *Executor) Book() *ledger.Book {
	return e.book
}

// ExecuteBatch runs the batch's instructions in order. On any failure every
// change since batch entry is undone and the returned receipt carries the
// failure; the error is returned alongside so callers can classify it. Only
// one batch may execute at a time.
func (e *Executor) ExecuteBatch(ctx context.Context, batch types.Batch) (*types.BatchReceipt, error) {
	if err := validateBatch(batch); err != nil {
		return nil, err
	}

	if !e.executing.CompareAndSwap(false, true) {
		return nil, ErrReentrantExecution
	}
	defer e.executing.Store(false)

	receipt := &types.BatchReceipt{
		BatchID:     uuid.New().String(),
		Description: batch.Description,
		StartedAt:   time.Now().UTC(),
	}

	e.log.Info().
		Str("batchId", receipt.BatchID).
		Str("description", batch.Description).
		Int("instructionCount", len(batch.Instructions)).
		Msg("Starting batch execution")

	restore := e.snapshot()

	for i, instr := range batch.Instructions {
		if err := ctx.Err(); err != nil {
			return e.failBatch(receipt, restore, i, instr, fmt.Errorf("batch cancelled: %w", err))
		}

		instrReceipt, err := e.executeInstruction(ctx, instr)
		if err != nil {
			return e.failBatch(receipt, restore, i, instr, err)
		}

		instrReceipt.Index = i
		receipt.Instructions = append(receipt.Instructions, instrReceipt)

		e.log.Debug().
			Str("batchId", receipt.BatchID).
			Int("index", i).
			Str("op", string(instr.Op)).
			Str("position", string(instr.Position)).
			Msg("Instruction executed")
	}

	receipt.Success = true
	receipt.CompletedAt = time.Now().UTC()

	e.log.Info().
		Str("batchId", receipt.BatchID).
		Int("executed", len(receipt.Instructions)).
		Msg("Batch executed successfully")

	return receipt, nil
}

func (e *Executor) executeInstruction(ctx context.Context, instr types.Instruction) (types.InstructionReceipt, error) {
	adaptorImpl, descriptor, err := e.registry.Position(instr.Position)
	if err != nil {
		return types.InstructionReceipt{}, err
	}
	if instr.Adaptor != adaptorImpl.Identifier() {
		return types.InstructionReceipt{}, errors.Join(ErrAdaptorMismatch,
			fmt.Errorf("instruction names %s, position %s belongs to %s",
				instr.Adaptor, instr.Position, adaptorImpl.Identifier()))
	}
	return adaptorImpl.Execute(ctx, e.book, instr, descriptor)
}

// failBatch restores all snapshotted state and records the failure on the
// receipt. Receipts of already-unwound instructions stay listed so the
// persisted history shows what was attempted.
func (e *Executor) failBatch(receipt *types.BatchReceipt, restore func(), index int, instr types.Instruction, cause error) (*types.BatchReceipt, error) {
	restore()

	receipt.Instructions = append(receipt.Instructions, types.InstructionReceipt{
		Index:      index,
		Adaptor:    instr.Adaptor,
		Op:         instr.Op,
		Position:   instr.Position,
		Success:    false,
		Message:    cause.Error(),
		ExecutedAt: time.Now().UTC(),
	})
	receipt.Success = false
	receipt.FailureReason = fmt.Sprintf("instruction %d (%s on %s): %s", index, instr.Op, instr.Position, cause.Error())
	receipt.CompletedAt = time.Now().UTC()

	e.log.Error().
		Err(cause).
		Str("batchId", receipt.BatchID).
		Int("index", index).
		Str("op", string(instr.Op)).
		Str("position", string(instr.Position)).
		Msg("Batch failed, all changes rolled back")

	return receipt, fmt.Errorf("batch aborted at instruction %d: %w", index, cause)
}

// snapshot captures the book and every registered snapshotter and returns a
// single closure restoring all of them.
func (e *Executor) snapshot() func() {
	bookSnap := e.book.Snapshot()
	restores := make([]func(), 0, len(e.snapshotters))
	for _, s := range e.snapshotters {
		restores = append(restores, s.Snapshot())
	}
	return func() {
		e.book.Restore(bookSnap)
		for _, r := range restores {
			r()
		}
	}
}

// UserDeposit routes a user deposit to the position's adaptor. Strategist
// managed adaptors refuse this unconditionally.
func (e *Executor) UserDeposit(position types.PositionKey, amount sdkmath.Int, cfg []byte) error {
	adaptorImpl, descriptor, err := e.registry.Position(position)
	if err != nil {
		return err
	}
	return adaptorImpl.Deposit(e.book, amount, descriptor, cfg)
}

// UserWithdraw routes a user withdrawal to the position's adaptor.
func (e *Executor) UserWithdraw(position types.PositionKey, amount sdkmath.Int, recipient *ledger.Book, cfg []byte) error {
	adaptorImpl, descriptor, err := e.registry.Position(position)
	if err != nil {
		return err
	}
	return adaptorImpl.Withdraw(e.book, amount, recipient, descriptor, cfg)
}

// WithdrawableFrom reports how much of a position a user could withdraw.
func (e *Executor) WithdrawableFrom(position types.PositionKey, cfg []byte) (sdkmath.Int, error) {
	adaptorImpl, descriptor, err := e.registry.Position(position)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return adaptorImpl.WithdrawableFrom(e.book, descriptor, cfg), nil
}

// TotalValue sums the base-asset valuation of every registered position.
// Valuation is read-only and allowed while no batch is running.
func (e *Executor) TotalValue() (sdkmath.Int, error) {
	total := sdkmath.ZeroInt()
	for _, key := range e.registry.PositionKeys() {
		adaptorImpl, descriptor, err := e.registry.Position(key)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		value, err := adaptorImpl.BalanceOf(e.book, descriptor)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("valuing position %s: %w", key, err)
		}
		total = total.Add(value)
	}
	return total, nil
}

// validateBatch performs basic validation of the batch and its instructions
// before anything executes.
func validateBatch(batch types.Batch) error {
	if len(batch.Instructions) == 0 {
		return errors.Join(ErrBatchInvalid, errors.New("batch has no instructions"))
	}
	for i, instr := range batch.Instructions {
		if err := validateInstruction(instr); err != nil {
			return errors.Join(ErrBatchInvalid, fmt.Errorf("instruction %d: %w", i, err))
		}
	}
	return nil
}

// validateInstruction checks the fields every operation needs; amount
// semantics are the owning adaptor's business.
func validateInstruction(instr types.Instruction) error {
	if instr.Adaptor == "" {
		return errors.Join(ErrInstructionInvalid, errors.New("adaptor identifier is empty"))
	}
	if instr.Position == "" {
		return errors.Join(ErrInstructionInvalid, errors.New("position key is empty"))
	}
	switch instr.Op {
	case types.OpOpenPosition, types.OpAddToPosition,
		types.OpTakeFromPosition, types.OpClosePosition, types.OpClaimRewards:
	default:
		return errors.Join(ErrInstructionInvalid, fmt.Errorf("unknown operation %q", instr.Op))
	}
	return nil
}
