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

	// Amounts are 18-decimal base units stored as NUMERIC(40,0); they must
	// round-trip bit-exactly, so no floating point columns on accounting data.
	schemaSQL := `
		CREATE TABLE IF NOT EXISTS withdrawal_vaults (
			batch_id BIGINT PRIMARY KEY,
			unclaimed_shares NUMERIC(40, 0) NOT NULL,
			original_shares NUMERIC(40, 0) NOT NULL,
			token_balance NUMERIC(40, 0) NOT NULL,
			transfer_status VARCHAR(16) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_withdrawal_vaults_status ON withdrawal_vaults(transfer_status);

		CREATE TABLE IF NOT EXISTS settlement_journal (
			settlement_id SERIAL PRIMARY KEY,
			batch_id BIGINT NOT NULL,
			realized_amount NUMERIC(40, 0) NOT NULL,
			settled_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT uq_settlement_batch UNIQUE (batch_id)
		);

		CREATE TABLE IF NOT EXISTS epoch_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			tick_number INTEGER NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			pending_deposits NUMERIC(40, 0) NOT NULL,
			near_total_shares NUMERIC(40, 0) NOT NULL,
			far_total_shares NUMERIC(40, 0) NOT NULL,
			far_total_value NUMERIC(40, 0) NOT NULL,
			pool_token_value VARCHAR(64) NOT NULL,
			swept_amount NUMERIC(40, 0) NOT NULL,
			executed_batch BIGINT,
			messages_relayed INTEGER NOT NULL,
			vaults JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_epoch_snapshots_timestamp ON epoch_snapshots(snapshot_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_epoch_snapshots_tick ON epoch_snapshots(tick_number DESC);

		-- Tick counter table for persistent global tick tracking
		CREATE TABLE IF NOT EXISTS tick_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_tick INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO tick_counter (id, current_tick)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
