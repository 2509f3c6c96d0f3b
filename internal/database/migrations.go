package database

import (
	"context"
	"fmt"
)

// migrations holds the schema for every synced collection plus the users and
// public configuration tables. Account tables key on (id, user_id) so the
// same venue id can appear for different accounts; public tables carry the
// identity keys the reconciliation relies on.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT NOT NULL,
		api_key VARCHAR(255) NOT NULL,
		api_secret VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS public_colls_conf (
		conf_name VARCHAR(64) NOT NULL,
		symbol VARCHAR(32) NOT NULL,
		start BIGINT NOT NULL DEFAULT 0,
		user_id BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (conf_name, symbol, user_id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS trades (
		id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		symbol VARCHAR(32) NOT NULL,
		mts_create BIGINT NOT NULL,
		order_id BIGINT NOT NULL DEFAULT 0,
		exec_amount DOUBLE NOT NULL DEFAULT 0,
		exec_price DOUBLE NOT NULL DEFAULT 0,
		order_type VARCHAR(32) NOT NULL DEFAULT '',
		order_price DOUBLE NOT NULL DEFAULT 0,
		maker TINYINT NOT NULL DEFAULT 0,
		fee DOUBLE NOT NULL DEFAULT 0,
		fee_currency VARCHAR(16) NOT NULL DEFAULT '',
		PRIMARY KEY (id, user_id),
		KEY idx_trades_date (user_id, mts_create)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS ledgers (
		id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		currency VARCHAR(16) NOT NULL,
		mts BIGINT NOT NULL,
		amount DOUBLE NOT NULL DEFAULT 0,
		balance DOUBLE NOT NULL DEFAULT 0,
		description TEXT,
		PRIMARY KEY (id, user_id),
		KEY idx_ledgers_date (user_id, mts)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		gid BIGINT NOT NULL DEFAULT 0,
		cid BIGINT NOT NULL DEFAULT 0,
		symbol VARCHAR(32) NOT NULL,
		mts_create BIGINT NOT NULL DEFAULT 0,
		mts_update BIGINT NOT NULL,
		amount DOUBLE NOT NULL DEFAULT 0,
		amount_orig DOUBLE NOT NULL DEFAULT 0,
		order_type VARCHAR(32) NOT NULL DEFAULT '',
		order_status VARCHAR(64) NOT NULL DEFAULT '',
		price DOUBLE NOT NULL DEFAULT 0,
		price_avg DOUBLE NOT NULL DEFAULT 0,
		PRIMARY KEY (id, user_id),
		KEY idx_orders_date (user_id, mts_update)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS movements (
		id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		currency VARCHAR(16) NOT NULL,
		currency_name VARCHAR(32) NOT NULL DEFAULT '',
		mts_started BIGINT NOT NULL DEFAULT 0,
		mts_updated BIGINT NOT NULL,
		status VARCHAR(64) NOT NULL DEFAULT '',
		amount DOUBLE NOT NULL DEFAULT 0,
		fees DOUBLE NOT NULL DEFAULT 0,
		destination_address VARCHAR(255) NOT NULL DEFAULT '',
		transaction_id VARCHAR(255) NOT NULL DEFAULT '',
		PRIMARY KEY (id, user_id),
		KEY idx_movements_date (user_id, mts_updated)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS positions_history (
		id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		symbol VARCHAR(32) NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT '',
		amount DOUBLE NOT NULL DEFAULT 0,
		base_price DOUBLE NOT NULL DEFAULT 0,
		margin_funding DOUBLE NOT NULL DEFAULT 0,
		margin_funding_type BIGINT NOT NULL DEFAULT 0,
		mts_create BIGINT NOT NULL DEFAULT 0,
		mts_update BIGINT NOT NULL,
		PRIMARY KEY (id, user_id),
		KEY idx_positions_history_date (user_id, mts_update)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS funding_offer_history (
		id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		symbol VARCHAR(32) NOT NULL,
		mts_create BIGINT NOT NULL DEFAULT 0,
		mts_update BIGINT NOT NULL,
		amount DOUBLE NOT NULL DEFAULT 0,
		amount_orig DOUBLE NOT NULL DEFAULT 0,
		offer_type VARCHAR(32) NOT NULL DEFAULT '',
		status VARCHAR(64) NOT NULL DEFAULT '',
		rate DOUBLE NOT NULL DEFAULT 0,
		period BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (id, user_id),
		KEY idx_funding_offer_history_date (user_id, mts_update)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS funding_loan_history (
		id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		symbol VARCHAR(32) NOT NULL,
		side BIGINT NOT NULL DEFAULT 0,
		mts_create BIGINT NOT NULL DEFAULT 0,
		mts_update BIGINT NOT NULL,
		amount DOUBLE NOT NULL DEFAULT 0,
		status VARCHAR(64) NOT NULL DEFAULT '',
		rate DOUBLE NOT NULL DEFAULT 0,
		period BIGINT NOT NULL DEFAULT 0,
		mts_opening BIGINT NOT NULL DEFAULT 0,
		mts_last_payout BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (id, user_id),
		KEY idx_funding_loan_history_date (user_id, mts_update)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS funding_credit_history (
		id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		symbol VARCHAR(32) NOT NULL,
		side BIGINT NOT NULL DEFAULT 0,
		mts_create BIGINT NOT NULL DEFAULT 0,
		mts_update BIGINT NOT NULL,
		amount DOUBLE NOT NULL DEFAULT 0,
		status VARCHAR(64) NOT NULL DEFAULT '',
		rate DOUBLE NOT NULL DEFAULT 0,
		period BIGINT NOT NULL DEFAULT 0,
		mts_opening BIGINT NOT NULL DEFAULT 0,
		mts_last_payout BIGINT NOT NULL DEFAULT 0,
		position_pair VARCHAR(32) NOT NULL DEFAULT '',
		PRIMARY KEY (id, user_id),
		KEY idx_funding_credit_history_date (user_id, mts_update)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS public_trades (
		id BIGINT NOT NULL,
		symbol VARCHAR(32) NOT NULL,
		mts BIGINT NOT NULL,
		amount DOUBLE NOT NULL DEFAULT 0,
		price DOUBLE NOT NULL DEFAULT 0,
		PRIMARY KEY (id, symbol),
		KEY idx_public_trades_date (symbol, mts)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS tickers_history (
		symbol VARCHAR(32) NOT NULL,
		bid DOUBLE NOT NULL DEFAULT 0,
		ask DOUBLE NOT NULL DEFAULT 0,
		mts_update BIGINT NOT NULL,
		PRIMARY KEY (symbol, mts_update)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS symbols (
		pairs VARCHAR(32) NOT NULL,
		PRIMARY KEY (pairs)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS currencies (
		id VARCHAR(32) NOT NULL,
		name VARCHAR(64) NOT NULL DEFAULT '',
		pool VARCHAR(64) NOT NULL DEFAULT '',
		explorer TEXT,
		PRIMARY KEY (id)
	) ENGINE=InnoDB`,
}

// Migrate applies the schema migrations in order. Statements are idempotent
// so repeated runs are safe.
func (mc *MySQLClient) Migrate(ctx context.Context) error {
	mc.logger.Info("Applying database migrations")

	for i, stmt := range migrations {
		if _, err := mc.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	mc.logger.WithField("count", len(migrations)).Info("Database migrations applied")
	return nil
}
