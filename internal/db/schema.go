package db

import "context"

// schema bootstrap runs on every startup; everything here must be re-runnable
// against an already-initialized database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id             BIGINT PRIMARY KEY,
		display_name   TEXT,
		points         BIGINT NOT NULL DEFAULT 0,
		last_active_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		warned         BOOLEAN NOT NULL DEFAULT FALSE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		id         BIGSERIAL PRIMARY KEY,
		owner_id   BIGINT NOT NULL REFERENCES users(id),
		url        TEXT NOT NULL,
		title      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_created_at ON links (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_users_last_active_at ON users (last_active_at)`,
}

func (d *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
