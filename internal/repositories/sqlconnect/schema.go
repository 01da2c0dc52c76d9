package sqlconnect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateKeyName = 1061

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		role VARCHAR(16) NOT NULL DEFAULT 'user',
		wallet_id VARCHAR(64) NOT NULL UNIQUE,
		can_send BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_addresses (
		wallet_id VARCHAR(64) NOT NULL,
		chain_id VARCHAR(32) NOT NULL,
		address VARCHAR(128) NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (wallet_id, chain_id)
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_balances (
		wallet_id VARCHAR(64) NOT NULL,
		chain_id VARCHAR(32) NOT NULL,
		symbol VARCHAR(32) NOT NULL,
		name VARCHAR(128) NOT NULL DEFAULT '',
		icon VARCHAR(255) NOT NULL DEFAULT '',
		decimals INTEGER NOT NULL DEFAULT 18,
		balance VARCHAR(80) NOT NULL DEFAULT '0',
		is_visible BOOLEAN NOT NULL DEFAULT TRUE,
		display_order INTEGER NOT NULL DEFAULT 0,
		last_inbound_at BIGINT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (wallet_id, chain_id, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		wallet_id VARCHAR(64) NOT NULL,
		chain_id VARCHAR(32) NOT NULL,
		hash VARCHAR(128) NOT NULL,
		from_address VARCHAR(128) NOT NULL,
		to_address VARCHAR(128) NOT NULL,
		value VARCHAR(80) NOT NULL,
		token_symbol VARCHAR(32) NOT NULL,
		status VARCHAR(16) NOT NULL,
		type VARCHAR(16) NOT NULL,
		fee VARCHAR(80) NULL,
		swap_order_id VARCHAR(64) NOT NULL DEFAULT '',
		admin_id VARCHAR(64) NOT NULL DEFAULT '',
		admin_note VARCHAR(512) NOT NULL DEFAULT '',
		admin_initiated BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_wallet ON transactions (wallet_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS swap_orders (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		wallet_id VARCHAR(64) NOT NULL,
		source_token VARCHAR(32) NOT NULL,
		source_amount VARCHAR(80) NOT NULL,
		dest_token VARCHAR(32) NOT NULL,
		dest_amount VARCHAR(80) NOT NULL,
		chain_id VARCHAR(32) NOT NULL,
		dest_chain_id VARCHAR(32) NOT NULL,
		status VARCHAR(16) NOT NULL,
		send_tx_id VARCHAR(64) NOT NULL,
		receive_tx_id VARCHAR(64) NOT NULL,
		rate VARCHAR(80) NOT NULL,
		from_price VARCHAR(80) NOT NULL,
		to_price VARCHAR(80) NOT NULL,
		degraded BOOLEAN NOT NULL DEFAULT FALSE,
		provider VARCHAR(64) NOT NULL,
		fail_reason VARCHAR(255) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_swap_orders_user ON swap_orders (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_swap_orders_status ON swap_orders (status, updated_at)`,
	`CREATE TABLE IF NOT EXISTS fee_overrides (
		user_id VARCHAR(64) NOT NULL,
		token_symbol VARCHAR(32) NOT NULL,
		chain_id VARCHAR(32) NOT NULL,
		fee_amount VARCHAR(80) NOT NULL,
		fee_percentage VARCHAR(80) NOT NULL,
		updated_by VARCHAR(64) NOT NULL DEFAULT '',
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (user_id, token_symbol, chain_id)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		wallet_id VARCHAR(64) NOT NULL,
		category VARCHAR(32) NOT NULL,
		sub_category VARCHAR(32) NOT NULL DEFAULT '',
		type VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		transaction_id VARCHAR(64) NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		metadata TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_wallet ON notifications (wallet_id, is_read)`,
	`CREATE TABLE IF NOT EXISTS admin_transfers (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		admin_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		wallet_id VARCHAR(64) NOT NULL,
		chain_id VARCHAR(32) NOT NULL,
		token_symbol VARCHAR(32) NOT NULL,
		amount VARCHAR(80) NOT NULL,
		direction VARCHAR(8) NOT NULL,
		silent BOOLEAN NOT NULL DEFAULT FALSE,
		transaction_id VARCHAR(64) NOT NULL DEFAULT '',
		note VARCHAR(512) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
}

// Migrate applies the schema. Running it against an existing database is a no-op.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, stmt := range schema {
		isIndex := strings.HasPrefix(stmt, "CREATE INDEX")
		if isIndex && d.Name == "mysql" {
			stmt = strings.Replace(stmt, "IF NOT EXISTS ", "", 1)
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			var myErr *mysql.MySQLError
			if isIndex && errors.As(err, &myErr) && myErr.Number == mysqlDuplicateKeyName {
				continue
			}
			return fmt.Errorf("apply schema (%s): %w", d.Name, err)
		}
	}
	return nil
}
