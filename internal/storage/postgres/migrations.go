package postgres

import (
	"context"
	"database/sql"
)

// schema mirrors the SQLite schema with Postgres types: BIGINT minor units
// and NUMERIC rates and percentages.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		description TEXT NOT NULL,
		currency CHAR(3) NOT NULL,
		total BIGINT NOT NULL,
		split_type TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS expense_payers (
		expense_id TEXT NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		amount BIGINT NOT NULL,
		PRIMARY KEY (expense_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS expense_splits (
		expense_id TEXT NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		amount BIGINT,
		percentage NUMERIC,
		shares BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (expense_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS exchange_rates (
		from_currency CHAR(3) NOT NULL,
		to_currency CHAR(3) NOT NULL,
		rate NUMERIC NOT NULL,
		as_of BIGINT NOT NULL,
		PRIMARY KEY (from_currency, to_currency)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_group_id ON expenses(group_id, created_at)`,
}

// runMigrations executes the schema setup in one transaction.
func runMigrations(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}
