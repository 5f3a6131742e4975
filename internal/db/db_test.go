package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestOpenSQLite_FreshDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "galley.db")

	database, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer database.Close()

	v, err := CurrentVersion(database)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if v != LatestVersion() {
		t.Errorf("version = %d, want %d", v, LatestVersion())
	}

	for _, table := range []string{"manifests", "branch_dispatches", "archived_manifests"} {
		var n int
		if err := database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n); err != nil || n != 1 {
			t.Errorf("table %s missing (err=%v)", table, err)
		}
	}
}

func TestOpenSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "galley.db")

	first, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := SeedFixtures(first); err != nil {
		t.Fatalf("SeedFixtures failed: %v", err)
	}
	first.Close()

	second, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	var n int
	if err := second.QueryRow("SELECT COUNT(*) FROM branch_dispatches").Scan(&n); err != nil || n != 3 {
		t.Errorf("branch rows after reopen = %d (err=%v), want 3", n, err)
	}
}

// A database created by the first migration is upgraded in place.
func TestRunMigrations_UpgradesOldSchema(t *testing.T) {
	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	database.SetMaxOpenConns(1)
	defer database.Close()

	if _, err := database.Exec(schemaVersionSQL); err != nil {
		t.Fatal(err)
	}
	tx, _ := database.Begin()
	if err := migrationV1(tx); err != nil {
		t.Fatalf("migrationV1 failed: %v", err)
	}
	_, _ = tx.Exec("INSERT INTO schema_version (version) VALUES (1)")
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	if err := InitSchema(database); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	v, _ := CurrentVersion(database)
	if v != LatestVersion() {
		t.Errorf("version = %d, want %d", v, LatestVersion())
	}
	if _, err := database.Exec("SELECT status_before_issue, issue_note FROM branch_dispatches"); err != nil {
		t.Errorf("issue columns missing after upgrade: %v", err)
	}
	if _, err := database.Exec("SELECT manifest_json FROM archived_manifests"); err != nil {
		t.Errorf("archive table missing after upgrade: %v", err)
	}
}

func TestSchemaRejectsUnknownStatus(t *testing.T) {
	database, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer database.Close()

	_, _ = database.Exec("INSERT INTO manifests (id, created_date, delivery_date, created_at) VALUES ('m', '2025-06-09', '2025-06-10', 'now')")
	_, err = database.Exec("INSERT INTO branch_dispatches (manifest_id, branch_slug, branch_name, position, status, updated_at) VALUES ('m', 'north', 'North', 0, 'lost', 'now')")
	if err == nil {
		t.Error("expected CHECK constraint to reject status 'lost'")
	}
}
