package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// schema mirrors the registry views the website reads. Nullable columns
// stay nullable here; Select coalesces them. Timestamp columns (*_at) hold
// RFC 3339 or SQLite's "YYYY-MM-DD HH:MM:SS" text in UTC, as written by
// datetime('now'); Select returns both as RFC 3339.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS packages (
		id                  TEXT PRIMARY KEY,
		package_name        TEXT NOT NULL UNIQUE,
		handle              TEXT NOT NULL,
		partial_name        TEXT NOT NULL,
		latest_version      TEXT NOT NULL DEFAULT '',
		control_description TEXT,
		downloads           INTEGER NOT NULL DEFAULT 0,
		created_at          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_packages_handle ON packages(handle)`,

	`CREATE TABLE IF NOT EXISTS package_versions (
		id                  TEXT PRIMARY KEY,
		package_id          TEXT NOT NULL,
		package_name        TEXT NOT NULL,
		version             TEXT NOT NULL,
		sql                 TEXT,
		description_md      TEXT,
		control_description TEXT,
		control_requires    TEXT,
		created_at          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_package_versions_name ON package_versions(package_name, created_at)`,

	`CREATE TABLE IF NOT EXISTS profiles (
		id            TEXT PRIMARY KEY,
		handle        TEXT NOT NULL UNIQUE,
		type          TEXT NOT NULL DEFAULT 'user',
		display_name  TEXT,
		bio           TEXT,
		avatar_url    TEXT,
		contact_email TEXT,
		created_at    TEXT NOT NULL
	)`,

	`CREATE VIEW IF NOT EXISTS popular_packages AS
		SELECT * FROM packages ORDER BY downloads DESC, created_at DESC`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
