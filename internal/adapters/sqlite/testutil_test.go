// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() so tests run against the
// authoritative schema.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB() and
// the seed helpers instead.
package sqlite_test

import (
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/example/galley/internal/db"
	"github.com/example/galley/internal/ports/secondary"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// One connection, one in-memory database.
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// newManifestRecord builds a manifest with one Rice item per branch.
func newManifestRecord(id, deliveryDate string, slugs ...string) *secondary.ManifestRecord {
	m := &secondary.ManifestRecord{
		ID:           id,
		CreatedDate:  "2025-06-09",
		DeliveryDate: deliveryDate,
		CreatedBy:    "ops",
		CreatedAt:    "2025-06-09T08:00:00Z",
	}
	for i, slug := range slugs {
		m.Branches = append(m.Branches, &secondary.BranchDispatchRecord{
			ManifestID: id,
			BranchSlug: slug,
			BranchName: slug + " kitchen",
			Position:   i,
			Status:     "pending",
			Items: []secondary.ItemRecord{{
				ID:         fmt.Sprintf("%s-1", slug),
				Name:       "Rice",
				Unit:       "KG",
				OrderedQty: decimal.NewFromInt(50),
			}},
			Version:   1,
			UpdatedAt: "2025-06-09T08:00:00Z",
		})
	}
	return m
}
