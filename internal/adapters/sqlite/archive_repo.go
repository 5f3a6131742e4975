package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/galley/internal/ports/secondary"
)

// ArchiveRepository implements secondary.ArchiveRepository with SQLite.
type ArchiveRepository struct {
	db *sql.DB
}

// NewArchiveRepository creates a new SQLite archive repository.
func NewArchiveRepository(db *sql.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

var _ secondary.ArchiveRepository = (*ArchiveRepository)(nil)

// Append stores an archived manifest. A repeat append refreshes the manifest document
// and keeps the first deletion stamp.
func (r *ArchiveRepository) Append(ctx context.Context, a *secondary.ArchivedManifestRecord) error {
	return upsertArchived(ctx, r.db, a)
}

// GetByID retrieves an archived manifest by its ID.
func (r *ArchiveRepository) GetByID(ctx context.Context, id string) (*secondary.ArchivedManifestRecord, error) {
	var doc string
	a := &secondary.ArchivedManifestRecord{}
	err := r.db.QueryRowContext(ctx,
		"SELECT manifest_json, deleted_at, deleted_by FROM archived_manifests WHERE id = ?",
		id,
	).Scan(&doc, &a.DeletedAt, &a.DeletedBy)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("archived manifest %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archived manifest: %w", err)
	}

	if err := json.Unmarshal([]byte(doc), &a.Manifest); err != nil {
		return nil, fmt.Errorf("failed to decode archived manifest %s: %w", id, err)
	}
	return a, nil
}

// List retrieves archived manifests, most recently deleted first.
func (r *ArchiveRepository) List(ctx context.Context, filters secondary.ArchiveFilters) ([]*secondary.ArchivedManifestRecord, error) {
	query := "SELECT id, manifest_json, deleted_at, deleted_by FROM archived_manifests WHERE 1=1"
	args := []any{}

	if filters.DeliveryDate != "" {
		query += " AND delivery_date = ?"
		args = append(args, filters.DeliveryDate)
	}

	query += " ORDER BY deleted_at DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived manifests: %w", err)
	}
	defer rows.Close()

	var out []*secondary.ArchivedManifestRecord
	for rows.Next() {
		var id, doc string
		a := &secondary.ArchivedManifestRecord{}
		if err := rows.Scan(&id, &doc, &a.DeletedAt, &a.DeletedBy); err != nil {
			return nil, fmt.Errorf("failed to scan archived manifest: %w", err)
		}
		if err := json.Unmarshal([]byte(doc), &a.Manifest); err != nil {
			return nil, fmt.Errorf("failed to decode archived manifest %s: %w", id, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// upsertArchived writes a and sets its stamp to the one stored, which is the
// earlier stamp when the ID was already archived.
func upsertArchived(ctx context.Context, q querier, a *secondary.ArchivedManifestRecord) error {
	doc, err := json.Marshal(a.Manifest)
	if err != nil {
		return fmt.Errorf("failed to encode archived manifest: %w", err)
	}
	err = q.QueryRowContext(ctx,
		`INSERT INTO archived_manifests (id, delivery_date, manifest_json, deleted_at, deleted_by)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			delivery_date = excluded.delivery_date,
			manifest_json = excluded.manifest_json
		RETURNING deleted_at, deleted_by`,
		a.Manifest.ID, a.Manifest.DeliveryDate, string(doc), a.DeletedAt, a.DeletedBy,
	).Scan(&a.DeletedAt, &a.DeletedBy)
	if err != nil {
		return fmt.Errorf("failed to archive manifest %s: %w", a.Manifest.ID, err)
	}
	return nil
}
