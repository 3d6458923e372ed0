package state

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openvault/adaptors/internal/types"
)

// SaveBatchReceipt persists an executed batch's receipt, instruction details
// included, and returns the row ID.
func SaveBatchReceipt(vaultName string, receipt *types.BatchReceipt) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	if receipt == nil {
		return 0, fmt.Errorf("receipt cannot be nil")
	}
	if receipt.BatchID == "" {
		return 0, fmt.Errorf("receipt has no batch ID")
	}

	instructionsJSON, err := json.Marshal(receipt.Instructions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal instruction receipts: %w", err)
	}

	query := `
		INSERT INTO batch_receipts (
			batch_id, vault_name, description, started_at, completed_at,
			success, failure_reason, instruction_receipts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING receipt_id
	`

	var receiptID int
	err = DB.QueryRow(query,
		receipt.BatchID, vaultName, receipt.Description,
		receipt.StartedAt, receipt.CompletedAt,
		receipt.Success, receipt.FailureReason, instructionsJSON,
	).Scan(&receiptID)
	if err != nil {
		log.Error().Err(err).Str("batchId", receipt.BatchID).Msg("Failed to save batch receipt")
		return 0, fmt.Errorf("failed to save batch receipt: %w", err)
	}

	log.Info().
		Int("receiptId", receiptID).
		Str("batchId", receipt.BatchID).
		Bool("success", receipt.Success).
		Msg("Batch receipt saved")

	return receiptID, nil
}

// GetRecentBatchReceipts retrieves recent batch receipts, newest first.
func GetRecentBatchReceipts(vaultName string, limit int) ([]types.BatchReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `
		SELECT batch_id, description, started_at, completed_at,
			success, failure_reason, instruction_receipts
		FROM batch_receipts
		WHERE vault_name = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := DB.Query(query, vaultName, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent batch receipts")
		return nil, fmt.Errorf("failed to query recent batch receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.BatchReceipt
	for rows.Next() {
		var receipt types.BatchReceipt
		var instructionsJSON []byte

		err := rows.Scan(
			&receipt.BatchID, &receipt.Description,
			&receipt.StartedAt, &receipt.CompletedAt,
			&receipt.Success, &receipt.FailureReason, &instructionsJSON,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan batch receipt row")
			continue // Skip this row and continue with others
		}

		if len(instructionsJSON) > 0 {
			if err := json.Unmarshal(instructionsJSON, &receipt.Instructions); err != nil {
				log.Error().Err(err).Str("batchId", receipt.BatchID).Msg("Failed to unmarshal instruction receipts")
				continue
			}
		}

		receipts = append(receipts, receipt)
	}

	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("Error occurred during row iteration")
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Info().Int("count", len(receipts)).Int("limit", limit).Msg("Retrieved recent batch receipts")
	return receipts, nil
}

// SaveValuationSnapshot records the vault's total and liquid value after a
// batch, with per-position values as JSON.
func SaveValuationSnapshot(vaultName, batchID, totalValueBase, liquidBase string, positionValues map[string]string) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	positionsJSON, err := json.Marshal(positionValues)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal position values: %w", err)
	}

	query := `
		INSERT INTO valuation_snapshots (
			vault_name, batch_id, total_value_base, liquid_base, position_values
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING snapshot_id
	`

	var snapshotID int
	err = DB.QueryRow(query, vaultName, batchID, totalValueBase, liquidBase, positionsJSON).Scan(&snapshotID)
	if err != nil {
		log.Error().Err(err).Str("batchId", batchID).Msg("Failed to save valuation snapshot")
		return 0, fmt.Errorf("failed to save valuation snapshot: %w", err)
	}

	log.Info().
		Int("snapshotId", snapshotID).
		Str("totalValueBase", totalValueBase).
		Msg("Valuation snapshot saved")

	return snapshotID, nil
}
