// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/galley/internal/ports/secondary"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ManifestRepository implements secondary.ManifestRepository with SQLite.
type ManifestRepository struct {
	db *sql.DB
}

// NewManifestRepository creates a new SQLite manifest repository.
func NewManifestRepository(db *sql.DB) *ManifestRepository {
	return &ManifestRepository{db: db}
}

var (
	_ secondary.ManifestRepository = (*ManifestRepository)(nil)
	_ secondary.ManifestArchiver   = (*ManifestRepository)(nil)
)

// Create persists a new manifest and its branch rows in one transaction.
func (r *ManifestRepository) Create(ctx context.Context, m *secondary.ManifestRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO manifests (id, created_date, delivery_date, created_by, created_at) VALUES (?, ?, ?, ?, ?)",
		m.ID, m.CreatedDate, m.DeliveryDate, m.CreatedBy, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}

	for _, b := range m.Branches {
		items, err := encodeItems(b.Items)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO branch_dispatches (manifest_id, branch_slug, branch_name, position, status, status_before_issue, issue_note, items_json, version, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			m.ID, b.BranchSlug, b.BranchName, b.Position, b.Status, b.StatusBeforeIssue, b.IssueNote, items, b.Version, b.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create branch dispatch %s: %w", b.BranchSlug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit manifest: %w", err)
	}
	return nil
}

// GetByID retrieves a manifest by its ID.
func (r *ManifestRepository) GetByID(ctx context.Context, id string) (*secondary.ManifestRecord, error) {
	return getManifest(ctx, r.db, id)
}

// List retrieves manifests matching the given filters, newest delivery date first.
func (r *ManifestRepository) List(ctx context.Context, filters secondary.ManifestFilters) ([]*secondary.ManifestRecord, error) {
	query := "SELECT id, created_date, delivery_date, created_by, created_at FROM manifests m WHERE 1=1"
	args := []any{}

	if filters.DeliveryDate != "" {
		query += " AND delivery_date = ?"
		args = append(args, filters.DeliveryDate)
	}

	// Branch and status must match on the same row.
	if filters.BranchSlug != "" || filters.Status != "" {
		query += " AND EXISTS (SELECT 1 FROM branch_dispatches b WHERE b.manifest_id = m.id"
		if filters.BranchSlug != "" {
			query += " AND b.branch_slug = ?"
			args = append(args, filters.BranchSlug)
		}
		if filters.Status != "" {
			query += " AND b.status = ?"
			args = append(args, filters.Status)
		}
		query += ")"
	}

	query += " ORDER BY delivery_date DESC, created_at DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}
	defer rows.Close()

	var manifests []*secondary.ManifestRecord
	for rows.Next() {
		m := &secondary.ManifestRecord{}
		if err := rows.Scan(&m.ID, &m.CreatedDate, &m.DeliveryDate, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan manifest: %w", err)
		}
		manifests = append(manifests, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}
	rows.Close()

	for _, m := range manifests {
		branches, err := listBranches(ctx, r.db, m.ID)
		if err != nil {
			return nil, err
		}
		m.Branches = branches
	}

	return manifests, nil
}

// UpdateBranches writes branch rows in one transaction. Each UPDATE is guarded by
// the version that was read; a row that no longer matches aborts the whole batch.
func (r *ManifestRepository) UpdateBranches(ctx context.Context, manifestID string, updates []secondary.BranchUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM manifests WHERE id = ?", manifestID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check manifest: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("manifest %s: %w", manifestID, secondary.ErrNotFound)
	}

	for _, u := range updates {
		b := u.Branch
		items, err := encodeItems(b.Items)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE branch_dispatches
			SET branch_name = ?, status = ?, status_before_issue = ?, issue_note = ?, items_json = ?, version = ?, updated_at = ?
			WHERE manifest_id = ? AND branch_slug = ? AND version = ?`,
			b.BranchName, b.Status, b.StatusBeforeIssue, b.IssueNote, items, b.Version, b.UpdatedAt,
			manifestID, b.BranchSlug, u.ExpectedVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to update branch dispatch %s: %w", b.BranchSlug, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update branch dispatch %s: %w", b.BranchSlug, err)
		}
		if n == 0 {
			return branchMissOrConflict(ctx, tx, manifestID, b.BranchSlug)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit branch updates: %w", err)
	}
	return nil
}

// Delete removes a manifest. Branch rows go with it (ON DELETE CASCADE).
func (r *ManifestRepository) Delete(ctx context.Context, id string) error {
	return deleteManifest(ctx, r.db, id)
}

// Archive copies the stored manifest into archived_manifests and removes it from the
// active tables in one transaction. The transaction holds the write lock from BEGIN
// (see db.OpenSQLite), so no branch update can commit between the read and the delete.
func (r *ManifestRepository) Archive(ctx context.Context, id string, stamp secondary.ArchiveStamp) (*secondary.ArchivedManifestRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := getManifest(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	a := &secondary.ArchivedManifestRecord{Manifest: m, DeletedAt: stamp.DeletedAt, DeletedBy: stamp.DeletedBy}
	if err := upsertArchived(ctx, tx, a); err != nil {
		return nil, err
	}
	if err := deleteManifest(ctx, tx, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit archive: %w", err)
	}
	return a, nil
}

// Ping checks the database connection.
func (r *ManifestRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func getManifest(ctx context.Context, q querier, id string) (*secondary.ManifestRecord, error) {
	m := &secondary.ManifestRecord{}
	err := q.QueryRowContext(ctx,
		"SELECT id, created_date, delivery_date, created_by, created_at FROM manifests WHERE id = ?",
		id,
	).Scan(&m.ID, &m.CreatedDate, &m.DeliveryDate, &m.CreatedBy, &m.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("manifest %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest: %w", err)
	}

	branches, err := listBranches(ctx, q, id)
	if err != nil {
		return nil, err
	}
	m.Branches = branches
	return m, nil
}

func listBranches(ctx context.Context, q querier, manifestID string) ([]*secondary.BranchDispatchRecord, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT manifest_id, branch_slug, branch_name, position, status, status_before_issue, issue_note, items_json, version, updated_at FROM branch_dispatches WHERE manifest_id = ? ORDER BY position",
		manifestID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list branch dispatches: %w", err)
	}
	defer rows.Close()

	var branches []*secondary.BranchDispatchRecord
	for rows.Next() {
		var itemsJSON string
		b := &secondary.BranchDispatchRecord{}
		err := rows.Scan(&b.ManifestID, &b.BranchSlug, &b.BranchName, &b.Position, &b.Status, &b.StatusBeforeIssue, &b.IssueNote, &itemsJSON, &b.Version, &b.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan branch dispatch: %w", err)
		}
		if err := json.Unmarshal([]byte(itemsJSON), &b.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items of branch %s: %w", b.BranchSlug, err)
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func deleteManifest(ctx context.Context, q querier, id string) error {
	// Explicit child delete; the cascade only fires when foreign_keys is enabled on the connection.
	if _, err := q.ExecContext(ctx, "DELETE FROM branch_dispatches WHERE manifest_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete branch dispatches: %w", err)
	}
	res, err := q.ExecContext(ctx, "DELETE FROM manifests WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete manifest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete manifest: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("manifest %s: %w", id, secondary.ErrNotFound)
	}
	return nil
}

func branchMissOrConflict(ctx context.Context, q querier, manifestID, slug string) error {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM branch_dispatches WHERE manifest_id = ? AND branch_slug = ?",
		manifestID, slug,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check branch dispatch %s: %w", slug, err)
	}
	if count == 0 {
		return fmt.Errorf("branch %s of manifest %s: %w", slug, manifestID, secondary.ErrNotFound)
	}
	return fmt.Errorf("branch %s of manifest %s: %w", slug, manifestID, secondary.ErrVersionConflict)
}

func encodeItems(items []secondary.ItemRecord) (string, error) {
	if items == nil {
		items = []secondary.ItemRecord{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode items: %w", err)
	}
	return string(data), nil
}
