package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/galley/internal/ports/secondary"
)

// ArchiveRepository implements secondary.ArchiveRepository with Postgres.
type ArchiveRepository struct {
	pool *pgxpool.Pool
}

// NewArchiveRepository creates a new Postgres archive repository.
func NewArchiveRepository(pool *pgxpool.Pool) *ArchiveRepository {
	return &ArchiveRepository{pool: pool}
}

var _ secondary.ArchiveRepository = (*ArchiveRepository)(nil)

// Append stores an archived manifest. A repeat append refreshes the manifest document
// and keeps the first deletion stamp.
func (r *ArchiveRepository) Append(ctx context.Context, a *secondary.ArchivedManifestRecord) error {
	return upsertArchived(ctx, r.pool, a)
}

// GetByID retrieves an archived manifest by its ID.
func (r *ArchiveRepository) GetByID(ctx context.Context, id string) (*secondary.ArchivedManifestRecord, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, manifest, deleted_at, deleted_by FROM archived_manifests WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get archived manifest: %w", err)
	}
	out, err := scanArchived(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("archived manifest %s: %w", id, secondary.ErrNotFound)
	}
	return out[0], nil
}

// List retrieves archived manifests, most recently deleted first.
func (r *ArchiveRepository) List(ctx context.Context, filters secondary.ArchiveFilters) ([]*secondary.ArchivedManifestRecord, error) {
	query := "SELECT id, manifest, deleted_at, deleted_by FROM archived_manifests WHERE 1=1"
	args := []any{}

	if filters.DeliveryDate != "" {
		args = append(args, filters.DeliveryDate)
		query += fmt.Sprintf(" AND delivery_date = $%d", len(args))
	}
	query += " ORDER BY deleted_at DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived manifests: %w", err)
	}
	return scanArchived(rows)
}

func scanArchived(rows pgx.Rows) ([]*secondary.ArchivedManifestRecord, error) {
	defer rows.Close()

	var out []*secondary.ArchivedManifestRecord
	for rows.Next() {
		var (
			id        string
			doc       []byte
			deletedAt time.Time
		)
		a := &secondary.ArchivedManifestRecord{}
		if err := rows.Scan(&id, &doc, &deletedAt, &a.DeletedBy); err != nil {
			return nil, fmt.Errorf("failed to scan archived manifest: %w", err)
		}
		if err := json.Unmarshal(doc, &a.Manifest); err != nil {
			return nil, fmt.Errorf("failed to decode archived manifest %s: %w", id, err)
		}
		a.DeletedAt = formatTime(deletedAt)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read archived manifests: %w", err)
	}
	return out, nil
}

// upsertArchived writes a and sets its stamp to the one stored, which is the
// earlier stamp when the ID was already archived.
func upsertArchived(ctx context.Context, q querier, a *secondary.ArchivedManifestRecord) error {
	doc, err := json.Marshal(a.Manifest)
	if err != nil {
		return fmt.Errorf("failed to encode archived manifest: %w", err)
	}
	var deletedAt time.Time
	err = q.QueryRow(ctx,
		`INSERT INTO archived_manifests (id, delivery_date, manifest, deleted_at, deleted_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			delivery_date = EXCLUDED.delivery_date,
			manifest = EXCLUDED.manifest
		RETURNING deleted_at, deleted_by`,
		a.Manifest.ID, a.Manifest.DeliveryDate, string(doc), a.DeletedAt, a.DeletedBy,
	).Scan(&deletedAt, &a.DeletedBy)
	if err != nil {
		return fmt.Errorf("failed to archive manifest %s: %w", a.Manifest.ID, err)
	}
	a.DeletedAt = formatTime(deletedAt)
	return nil
}
