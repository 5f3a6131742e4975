// Package postgres contains Postgres (pgx) implementations of repository interfaces.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/galley/internal/ports/secondary"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ManifestRepository implements secondary.ManifestRepository with Postgres.
type ManifestRepository struct {
	pool *pgxpool.Pool
}

// NewManifestRepository creates a new Postgres manifest repository.
func NewManifestRepository(pool *pgxpool.Pool) *ManifestRepository {
	return &ManifestRepository{pool: pool}
}

var (
	_ secondary.ManifestRepository = (*ManifestRepository)(nil)
	_ secondary.ManifestArchiver   = (*ManifestRepository)(nil)
)

const manifestColumns = "id, created_date::text, delivery_date::text, created_by, created_at"

const branchColumns = "manifest_id, branch_slug, branch_name, position, status, status_before_issue, issue_note, items, version, updated_at"

// Create persists a new manifest and its branch rows in one transaction.
func (r *ManifestRepository) Create(ctx context.Context, m *secondary.ManifestRecord) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO manifests (id, created_date, delivery_date, created_by, created_at) VALUES ($1, $2, $3, $4, $5)",
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
		_, err = tx.Exec(ctx,
			"INSERT INTO branch_dispatches ("+branchColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
			m.ID, b.BranchSlug, b.BranchName, b.Position, b.Status, b.StatusBeforeIssue, b.IssueNote, items, b.Version, b.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create branch dispatch %s: %w", b.BranchSlug, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit manifest: %w", err)
	}
	return nil
}

// GetByID retrieves a manifest by its ID.
func (r *ManifestRepository) GetByID(ctx context.Context, id string) (*secondary.ManifestRecord, error) {
	return getManifest(ctx, r.pool, id)
}

// List retrieves manifests matching the given filters, newest delivery date first.
func (r *ManifestRepository) List(ctx context.Context, filters secondary.ManifestFilters) ([]*secondary.ManifestRecord, error) {
	query := "SELECT " + manifestColumns + " FROM manifests m WHERE 1=1"
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.DeliveryDate != "" {
		query += " AND delivery_date = " + next(filters.DeliveryDate)
	}
	if filters.BranchSlug != "" || filters.Status != "" {
		query += " AND EXISTS (SELECT 1 FROM branch_dispatches b WHERE b.manifest_id = m.id"
		if filters.BranchSlug != "" {
			query += " AND b.branch_slug = " + next(filters.BranchSlug)
		}
		if filters.Status != "" {
			query += " AND b.status = " + next(filters.Status)
		}
		query += ")"
	}

	query += " ORDER BY delivery_date DESC, created_at DESC"
	if filters.Limit > 0 {
		query += " LIMIT " + next(filters.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}
	defer rows.Close()

	var manifests []*secondary.ManifestRecord
	for rows.Next() {
		var createdAt time.Time
		m := &secondary.ManifestRecord{}
		if err := rows.Scan(&m.ID, &m.CreatedDate, &m.DeliveryDate, &m.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan manifest: %w", err)
		}
		m.CreatedAt = formatTime(createdAt)
		manifests = append(manifests, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}

	for _, m := range manifests {
		branches, err := listBranches(ctx, r.pool, m.ID)
		if err != nil {
			return nil, err
		}
		m.Branches = branches
	}
	return manifests, nil
}

// UpdateBranches writes branch rows in one transaction, each guarded by the version that was read.
func (r *ManifestRepository) UpdateBranches(ctx context.Context, manifestID string, updates []secondary.BranchUpdate) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM manifests WHERE id = $1)", manifestID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check manifest: %w", err)
	}
	if !exists {
		return fmt.Errorf("manifest %s: %w", manifestID, secondary.ErrNotFound)
	}

	for _, u := range updates {
		b := u.Branch
		items, err := encodeItems(b.Items)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE branch_dispatches
			SET branch_name = $1, status = $2, status_before_issue = $3, issue_note = $4, items = $5, version = $6, updated_at = $7
			WHERE manifest_id = $8 AND branch_slug = $9 AND version = $10`,
			b.BranchName, b.Status, b.StatusBeforeIssue, b.IssueNote, items, b.Version, b.UpdatedAt,
			manifestID, b.BranchSlug, u.ExpectedVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to update branch dispatch %s: %w", b.BranchSlug, err)
		}
		if tag.RowsAffected() == 0 {
			return branchMissOrConflict(ctx, tx, manifestID, b.BranchSlug)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit branch updates: %w", err)
	}
	return nil
}

// Delete removes a manifest and, by cascade, its branch rows.
func (r *ManifestRepository) Delete(ctx context.Context, id string) error {
	return deleteManifest(ctx, r.pool, id)
}

// Archive moves the stored manifest into archived_manifests in one transaction.
// The manifest and branch rows are locked before they are read, so a concurrent
// UpdateBranches either commits first and is archived, or finds the rows gone.
func (r *ManifestRepository) Archive(ctx context.Context, id string, stamp secondary.ArchiveStamp) (*secondary.ArchivedManifestRecord, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockManifest(ctx, tx, id); err != nil {
		return nil, err
	}
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

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit archive: %w", err)
	}
	return a, nil
}

// Ping checks the pool can reach the database.
func (r *ManifestRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func getManifest(ctx context.Context, q querier, id string) (*secondary.ManifestRecord, error) {
	var createdAt time.Time
	m := &secondary.ManifestRecord{}
	err := q.QueryRow(ctx, "SELECT "+manifestColumns+" FROM manifests WHERE id = $1", id).
		Scan(&m.ID, &m.CreatedDate, &m.DeliveryDate, &m.CreatedBy, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("manifest %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest: %w", err)
	}
	m.CreatedAt = formatTime(createdAt)

	branches, err := listBranches(ctx, q, id)
	if err != nil {
		return nil, err
	}
	m.Branches = branches
	return m, nil
}

// lockManifest takes row locks on a manifest and its branch rows until the transaction ends.
func lockManifest(ctx context.Context, tx pgx.Tx, id string) error {
	var locked string
	err := tx.QueryRow(ctx, "SELECT id FROM manifests WHERE id = $1 FOR UPDATE", id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("manifest %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock manifest: %w", err)
	}
	if _, err := tx.Exec(ctx, "SELECT 1 FROM branch_dispatches WHERE manifest_id = $1 FOR UPDATE", id); err != nil {
		return fmt.Errorf("failed to lock branch dispatches: %w", err)
	}
	return nil
}

func listBranches(ctx context.Context, q querier, manifestID string) ([]*secondary.BranchDispatchRecord, error) {
	rows, err := q.Query(ctx,
		"SELECT "+branchColumns+" FROM branch_dispatches WHERE manifest_id = $1 ORDER BY position",
		manifestID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list branch dispatches: %w", err)
	}
	defer rows.Close()

	var branches []*secondary.BranchDispatchRecord
	for rows.Next() {
		var (
			items     []byte
			updatedAt time.Time
		)
		b := &secondary.BranchDispatchRecord{}
		err := rows.Scan(&b.ManifestID, &b.BranchSlug, &b.BranchName, &b.Position, &b.Status, &b.StatusBeforeIssue, &b.IssueNote, &items, &b.Version, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan branch dispatch: %w", err)
		}
		if err := json.Unmarshal(items, &b.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items of branch %s: %w", b.BranchSlug, err)
		}
		b.UpdatedAt = formatTime(updatedAt)
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func deleteManifest(ctx context.Context, q querier, id string) error {
	tag, err := q.Exec(ctx, "DELETE FROM manifests WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete manifest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("manifest %s: %w", id, secondary.ErrNotFound)
	}
	return nil
}

func branchMissOrConflict(ctx context.Context, q querier, manifestID, slug string) error {
	var exists bool
	err := q.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM branch_dispatches WHERE manifest_id = $1 AND branch_slug = $2)",
		manifestID, slug,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check branch dispatch %s: %w", slug, err)
	}
	if !exists {
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

func formatTime(t time.Time) string {
	return t.UTC().Format(secondary.TimeLayout)
}
