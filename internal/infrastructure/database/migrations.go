package database

import (
	"database/sql"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"
)

// migrationSource holds the schema, oldest first
var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "001_indexers.sql",
			Up: []string{`
				CREATE TABLE IF NOT EXISTS indexers (
					id          UUID PRIMARY KEY,
					owner_id    TEXT,
					name        TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					status      TEXT NOT NULL DEFAULT 'inactive'
						CHECK (status IN ('inactive', 'active', 'error', 'pending')),
					last_error  TEXT,
					last_run    TIMESTAMPTZ,
					created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_indexers_status ON indexers (status)`,
				`CREATE INDEX IF NOT EXISTS idx_indexers_owner ON indexers (owner_id)`,
				`CREATE TABLE IF NOT EXISTS indexer_configs (
					indexer_id UUID NOT NULL REFERENCES indexers (id) ON DELETE CASCADE,
					key        TEXT NOT NULL,
					value      TEXT NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (indexer_id, key)
				)`,
				`CREATE TABLE IF NOT EXISTS indexer_jobs (
					id                 UUID PRIMARY KEY,
					indexer_id         UUID NOT NULL REFERENCES indexers (id) ON DELETE CASCADE,
					from_block         NUMERIC(78, 0) NOT NULL,
					to_block           NUMERIC(78, 0) NOT NULL,
					status             TEXT NOT NULL CHECK (status IN ('completed', 'failed')),
					blocks_processed   BIGINT NOT NULL DEFAULT 0,
					transactions_count BIGINT NOT NULL DEFAULT 0,
					events_count       BIGINT NOT NULL DEFAULT 0,
					error              TEXT,
					started_at         TIMESTAMPTZ NOT NULL,
					finished_at        TIMESTAMPTZ
				)`,
				`CREATE INDEX IF NOT EXISTS idx_indexer_jobs_indexer ON indexer_jobs (indexer_id, started_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_indexer_jobs_finished ON indexer_jobs (finished_at) WHERE status = 'completed'`,
			},
			Down: []string{
				`DROP TABLE IF EXISTS indexer_jobs`,
				`DROP TABLE IF EXISTS indexer_configs`,
				`DROP TABLE IF EXISTS indexers`,
			},
		},
		{
			Id: "002_chain_data.sql",
			Up: []string{`
				CREATE TABLE IF NOT EXISTS blocks (
					network      TEXT NOT NULL,
					block_number NUMERIC(78, 0) NOT NULL,
					hash         TEXT NOT NULL,
					parent_hash  TEXT NOT NULL,
					timestamp    TIMESTAMPTZ NOT NULL,
					tx_count     INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY (network, block_number)
				)`,
				`CREATE TABLE IF NOT EXISTS transactions (
					network      TEXT NOT NULL,
					hash         TEXT NOT NULL,
					block_number NUMERIC(78, 0) NOT NULL,
					tx_index     INTEGER NOT NULL,
					from_address TEXT NOT NULL,
					to_address   TEXT,
					value        NUMERIC(78, 0) NOT NULL DEFAULT 0,
					gas_used     NUMERIC(78, 0) NOT NULL DEFAULT 0,
					status       BIGINT NOT NULL DEFAULT 0,
					PRIMARY KEY (network, hash)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_block ON transactions (network, block_number)`,
				`CREATE TABLE IF NOT EXISTS events (
					network          TEXT NOT NULL,
					tx_hash          TEXT NOT NULL,
					log_index        NUMERIC(78, 0) NOT NULL,
					block_number     NUMERIC(78, 0) NOT NULL,
					contract_address TEXT NOT NULL,
					topics           TEXT[] NOT NULL DEFAULT '{}',
					data             TEXT NOT NULL DEFAULT '0x',
					event_name       TEXT NOT NULL DEFAULT '',
					decoded          JSONB,
					PRIMARY KEY (tx_hash, log_index)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_events_block ON events (network, block_number)`,
				`CREATE INDEX IF NOT EXISTS idx_events_contract ON events (contract_address)`,
			},
			Down: []string{
				`DROP TABLE IF EXISTS events`,
				`DROP TABLE IF EXISTS transactions`,
				`DROP TABLE IF EXISTS blocks`,
			},
		},
		{
			Id: "003_billing.sql",
			Up: []string{`
				CREATE TABLE IF NOT EXISTS tool_prices (
					tool_id    TEXT PRIMARY KEY,
					name       TEXT NOT NULL UNIQUE,
					price      NUMERIC(78, 0) NOT NULL DEFAULT 0,
					registered BOOLEAN NOT NULL DEFAULT FALSE,
					synced_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE TABLE IF NOT EXISTS payments (
					id                      UUID PRIMARY KEY,
					user_id                 TEXT,
					wallet_address          TEXT NOT NULL,
					token_address           TEXT NOT NULL,
					tools                   TEXT[] NOT NULL,
					subtotal                NUMERIC(78, 0) NOT NULL,
					final_price             NUMERIC(78, 0) NOT NULL,
					is_full_bundle_discount BOOLEAN NOT NULL DEFAULT FALSE,
					tx_hash                 TEXT,
					status                  TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'failed')),
					error_kind              TEXT,
					error_message           TEXT,
					created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_payments_wallet ON payments (wallet_address, created_at DESC)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_tx_hash ON payments (tx_hash) WHERE tx_hash IS NOT NULL`,
			},
			Down: []string{
				`DROP TABLE IF EXISTS payments`,
				`DROP TABLE IF EXISTS tool_prices`,
			},
		},
	},
}

// RunMigrations applies every pending migration and returns how many ran
func RunMigrations(db *sql.DB) (int, error) {
	n, err := migrate.Exec(db, "postgres", migrationSource, migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}
	return n, nil
}

// RollbackMigrations reverts at most max migrations, newest first
func RollbackMigrations(db *sql.DB, max int) (int, error) {
	n, err := migrate.ExecMax(db, "postgres", migrationSource, migrate.Down, max)
	if err != nil {
		return 0, fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return n, nil
}
