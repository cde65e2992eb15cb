package database

import (
	"context"
	"fmt"

	"github.com/TemirB/freight-portal/internal/config"
)

// Migrate creates the schema and tables when they do not exist. It is safe to
// run on every start.
func Migrate(ctx context.Context, db DB, tables config.Tables) error {
	b := base{db: db, tables: tables}
	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, tables.Schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id            BIGSERIAL PRIMARY KEY,
				username      TEXT NOT NULL UNIQUE,
				display_name  TEXT NOT NULL DEFAULT '',
				email         TEXT NOT NULL DEFAULT '',
				role          TEXT NOT NULL,
				password_hash BYTEA NOT NULL,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, b.qt(tables.Users)),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id           UUID PRIMARY KEY,
				shipment_id  TEXT NOT NULL,
				name         TEXT NOT NULL,
				content_type TEXT NOT NULL,
				size         INTEGER NOT NULL,
				uploaded_by  TEXT NOT NULL,
				uploaded_at  TIMESTAMPTZ NOT NULL,
				content      BYTEA NOT NULL
			)`, b.qt(tables.Documents)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s_shipment_idx" ON %s (shipment_id, uploaded_at DESC)`,
			tables.Documents, b.qt(tables.Documents)),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				key        TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, b.qt(tables.KV)),
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range stmts {
		if _, err := tx.Exec(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return tx.Commit(ctx)
}
