package db

import (
	"database/sql"
	"fmt"

	"github.com/example/galley/internal/logging"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

const schemaVersionSQL = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)
`

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_manifests_and_branch_dispatches",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_archived_manifests",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_issue_tracking_to_branch_dispatches",
		Up:      migrationV3,
	},
}

// LatestVersion returns the schema version after all migrations.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// CurrentVersion returns the highest applied migration, 0 for an unversioned database.
func CurrentVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(schemaVersionSQL); err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}
	var v int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return v, nil
}

// RunMigrations applies every migration newer than the recorded schema version,
// each in its own transaction.
func RunMigrations(db *sql.DB) error {
	currentVersion, err := CurrentVersion(db)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logging.Info("running migration", logging.Fields{"version": migration.Version, "name": migration.Name})

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS manifests (
			id TEXT PRIMARY KEY,
			created_date TEXT NOT NULL,
			delivery_date TEXT NOT NULL,
			created_by TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			CHECK (delivery_date >= created_date)
		);
		CREATE INDEX IF NOT EXISTS idx_manifests_delivery ON manifests(delivery_date);

		CREATE TABLE IF NOT EXISTS branch_dispatches (
			manifest_id TEXT NOT NULL,
			branch_slug TEXT NOT NULL,
			branch_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('pending', 'packing', 'packed', 'dispatched', 'received', 'issue')) DEFAULT 'pending',
			items_json TEXT NOT NULL DEFAULT '[]',
			version INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (manifest_id, branch_slug),
			FOREIGN KEY (manifest_id) REFERENCES manifests(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_branch_dispatches_slug ON branch_dispatches(branch_slug);
		CREATE INDEX IF NOT EXISTS idx_branch_dispatches_status ON branch_dispatches(status);
	`)
	return err
}

func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS archived_manifests (
			id TEXT PRIMARY KEY,
			delivery_date TEXT NOT NULL,
			manifest_json TEXT NOT NULL,
			deleted_at TEXT NOT NULL,
			deleted_by TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_archived_manifests_deleted ON archived_manifests(deleted_at);
	`)
	return err
}

func migrationV3(tx *sql.Tx) error {
	if _, err := tx.Exec(`ALTER TABLE branch_dispatches ADD COLUMN status_before_issue TEXT NOT NULL DEFAULT ''`); err != nil {
		return err
	}
	_, err := tx.Exec(`ALTER TABLE branch_dispatches ADD COLUMN issue_note TEXT NOT NULL DEFAULT ''`)
	return err
}
