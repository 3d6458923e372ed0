// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS batch_receipts (
			receipt_id SERIAL PRIMARY KEY,
			batch_id UUID NOT NULL UNIQUE,
			vault_name VARCHAR(255) NOT NULL,
			description TEXT,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL,
			success BOOLEAN NOT NULL,
			failure_reason TEXT,
			instruction_receipts JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_batch_receipts_started ON batch_receipts(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_batch_receipts_vault ON batch_receipts(vault_name, started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_batch_receipts_success ON batch_receipts(success);

		CREATE TABLE IF NOT EXISTS valuation_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			vault_name VARCHAR(255) NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			batch_id UUID REFERENCES batch_receipts(batch_id),
			total_value_base DECIMAL(40, 0) NOT NULL,
			liquid_base DECIMAL(40, 0) NOT NULL,
			position_values JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_valuation_snapshots_timestamp ON valuation_snapshots(snapshot_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_valuation_snapshots_vault ON valuation_snapshots(vault_name, snapshot_timestamp DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
