// Package migrations applies the reward ledger schema. Statements are
// idempotent so Apply can run on every startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id           TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		balance      BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id               TEXT PRIMARY KEY,
		from_account     TEXT REFERENCES accounts(id),
		to_account       TEXT NOT NULL REFERENCES accounts(id),
		delta            BIGINT NOT NULL,
		reason           TEXT NOT NULL,
		related_answer   TEXT NOT NULL DEFAULT '',
		related_question TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS answer_rewards (
		answer_id         TEXT PRIMARY KEY,
		question_id       TEXT NOT NULL,
		owner_account     TEXT NOT NULL REFERENCES accounts(id),
		net_upvotes       INTEGER NOT NULL DEFAULT 0,
		milestone_awarded BOOLEAN NOT NULL DEFAULT FALSE,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_to_account
		ON ledger_entries (to_account, created_at DESC, id DESC)`,
}

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
