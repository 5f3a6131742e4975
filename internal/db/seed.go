package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/galley/internal/ports/secondary"
)

type seedItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	OrderedQty string `json:"ordered_qty"`
}

// SeedFixtures populates the database with a development manifest for tomorrow's
// delivery: three branches at different points of the workflow.
func SeedFixtures(database *sql.DB) error {
	now := time.Now().UTC()
	created := now.Format("2006-01-02")
	delivery := now.AddDate(0, 0, 1).Format("2006-01-02")
	ts := now.Format(secondary.TimeLayout)

	tx, err := database.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO manifests (id, created_date, delivery_date, created_by, created_at) VALUES (?, ?, ?, ?, ?)",
		"MAN-SEED-001", created, delivery, "seed", ts,
	); err != nil {
		return fmt.Errorf("seed manifests: %w", err)
	}

	branches := []struct{ slug, name, status string }{
		{"north", "North Kitchen", "pending"},
		{"south", "South Kitchen", "packing"},
		{"east", "East Kitchen", "dispatched"},
	}
	for i, b := range branches {
		items := []seedItem{
			{ID: b.slug + "-1", Name: "Rice", Unit: "KG", OrderedQty: "50"},
			{ID: b.slug + "-2", Name: "Sunflower Oil", Unit: "LTR", OrderedQty: "12.5"},
			{ID: b.slug + "-3", Name: "Garam Masala", Unit: "GM", OrderedQty: "500"},
		}
		doc, err := json.Marshal(items)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO branch_dispatches (manifest_id, branch_slug, branch_name, position, status, items_json, version, updated_at) VALUES (?, ?, ?, ?, ?, ?, 1, ?)",
			"MAN-SEED-001", b.slug, b.name, i, b.status, string(doc), ts,
		); err != nil {
			return fmt.Errorf("seed branch_dispatches: %w", err)
		}
	}

	return tx.Commit()
}
