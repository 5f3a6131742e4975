package db

import "database/sql"

// SchemaSQL is the complete SQLite schema for fresh installs.
// It reflects the state after all migrations.
//
// This is the SINGLE SOURCE OF TRUTH for the SQLite schema. Adapter tests load it
// via GetSchemaSQL() rather than declaring their own tables, so a repository
// referencing a column that does not exist here fails with "no such column".
//
// When adding columns or tables:
//  1. Add a migration to migrations.go
//  2. Update SchemaSQL here
//  3. Run `make test` to verify alignment
const SchemaSQL = `
-- Active manifests (one per delivery cycle)
CREATE TABLE IF NOT EXISTS manifests (
	id TEXT PRIMARY KEY,
	created_date TEXT NOT NULL,
	delivery_date TEXT NOT NULL,
	created_by TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	CHECK (delivery_date >= created_date)
);

CREATE INDEX IF NOT EXISTS idx_manifests_delivery ON manifests(delivery_date);

-- Branch sub-dispatches, one row per branch, versioned for compare-and-swap
CREATE TABLE IF NOT EXISTS branch_dispatches (
	manifest_id TEXT NOT NULL,
	branch_slug TEXT NOT NULL,
	branch_name TEXT NOT NULL,
	position INTEGER NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('pending', 'packing', 'packed', 'dispatched', 'received', 'issue')) DEFAULT 'pending',
	status_before_issue TEXT NOT NULL DEFAULT '',
	issue_note TEXT NOT NULL DEFAULT '',
	items_json TEXT NOT NULL DEFAULT '[]',
	version INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (manifest_id, branch_slug),
	FOREIGN KEY (manifest_id) REFERENCES manifests(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_branch_dispatches_slug ON branch_dispatches(branch_slug);
CREATE INDEX IF NOT EXISTS idx_branch_dispatches_status ON branch_dispatches(status);

-- Archived manifests stored whole, with deletion provenance
CREATE TABLE IF NOT EXISTS archived_manifests (
	id TEXT PRIMARY KEY,
	delivery_date TEXT NOT NULL,
	manifest_json TEXT NOT NULL,
	deleted_at TEXT NOT NULL,
	deleted_by TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_archived_manifests_deleted ON archived_manifests(deleted_at);
`

// InitSchema brings the database up to date.
// Fresh databases get SchemaSQL directly with every migration marked applied;
// existing ones run pending migrations.
func InitSchema(db *sql.DB) error {
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}
	if tableCount > 0 {
		return RunMigrations(db)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(SchemaSQL); err != nil {
		return err
	}
	if _, err := tx.Exec(schemaVersionSQL); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
