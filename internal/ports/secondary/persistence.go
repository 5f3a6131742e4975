// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned (wrapped) when a manifest or archive record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned (wrapped) when a branch row changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
)

// TimeLayout is the layout timestamps are stored in. It is fixed width and always UTC,
// so comparing two stored values as text orders them in time.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ManifestRepository defines the secondary port for active manifest persistence.
// The unit of concurrency is the branch row: UpdateBranches compares versions per branch.
type ManifestRepository interface {
	// Create persists a new manifest with all of its branch dispatches.
	Create(ctx context.Context, manifest *ManifestRecord) error

	// GetByID retrieves a manifest by its ID.
	GetByID(ctx context.Context, id string) (*ManifestRecord, error)

	// List retrieves manifests matching the given filters, newest delivery date first.
	List(ctx context.Context, filters ManifestFilters) ([]*ManifestRecord, error)

	// UpdateBranches writes the given branch rows of one manifest.
	// Every row must still be at its ExpectedVersion or nothing is written and
	// ErrVersionConflict is returned.
	UpdateBranches(ctx context.Context, manifestID string, updates []BranchUpdate) error

	// Delete removes a manifest and its branch rows.
	Delete(ctx context.Context, id string) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// ArchiveRepository defines the secondary port for archived manifests.
type ArchiveRepository interface {
	// Append stores an archived manifest. Appending a manifest ID that is already archived
	// replaces the manifest document but keeps the first DeletedAt and DeletedBy.
	Append(ctx context.Context, archived *ArchivedManifestRecord) error

	// GetByID retrieves an archived manifest by its ID.
	GetByID(ctx context.Context, id string) (*ArchivedManifestRecord, error)

	// List retrieves archived manifests matching the given filters, most recently deleted first.
	List(ctx context.Context, filters ArchiveFilters) ([]*ArchivedManifestRecord, error)
}

// ManifestArchiver is implemented by stores that can move a manifest into the archive
// in a single transaction. The archived document is the manifest as stored when the move
// commits, so branch writes that landed earlier are never dropped. An existing archive
// stamp for the same ID is kept. Returns ErrNotFound if the manifest is not active.
type ManifestArchiver interface {
	Archive(ctx context.Context, manifestID string, stamp ArchiveStamp) (*ArchivedManifestRecord, error)
}

// ArchiveStamp is the deletion provenance recorded with an archived manifest.
type ArchiveStamp struct {
	DeletedAt string
	DeletedBy string
}

// ArchiveMirror copies archived manifests to secondary storage (e.g. object storage).
type ArchiveMirror interface {
	Mirror(ctx context.Context, archived *ArchivedManifestRecord) error
}

// ManifestRecord represents a manifest as stored in persistence.
type ManifestRecord struct {
	ID           string                  `json:"id"`
	CreatedDate  string                  `json:"created_date"`  // YYYY-MM-DD
	DeliveryDate string                  `json:"delivery_date"` // YYYY-MM-DD
	CreatedBy    string                  `json:"created_by"`
	CreatedAt    string                  `json:"created_at"`
	Branches     []*BranchDispatchRecord `json:"branch_dispatches"`
}

// BranchDispatchRecord represents one branch sub-dispatch row.
type BranchDispatchRecord struct {
	ManifestID        string       `json:"manifest_id"`
	BranchSlug        string       `json:"branch_slug"`
	BranchName        string       `json:"branch_name"`
	Position          int          `json:"position"`
	Status            string       `json:"status"`
	StatusBeforeIssue string       `json:"status_before_issue,omitempty"`
	IssueNote         string       `json:"issue_note,omitempty"`
	Items             []ItemRecord `json:"items"` // Stored as a JSON document per row
	Version           int          `json:"version"`
	UpdatedAt         string       `json:"updated_at"`
}

// ItemRecord represents one item inside a branch row's item document.
type ItemRecord struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Unit            string              `json:"unit"`
	OrderedQty      decimal.Decimal     `json:"ordered_qty"`
	PackedQty       decimal.NullDecimal `json:"packed_qty"`
	ReceivedQty     decimal.NullDecimal `json:"received_qty"`
	PackedChecked   bool                `json:"packed_checked"`
	ReceivedChecked bool                `json:"received_checked"`
	Notes           string              `json:"notes,omitempty"`
	Issue           string              `json:"issue,omitempty"`
	AddedLate       bool                `json:"added_late,omitempty"`
	AddedAt         string              `json:"added_at,omitempty"`
	AddedBy         string              `json:"added_by,omitempty"`
	AddedReason     string              `json:"added_reason,omitempty"`
}

// BranchUpdate is one compare-and-swap write of a branch row.
// Branch.Version holds the new version; ExpectedVersion the one that was read.
type BranchUpdate struct {
	Branch          *BranchDispatchRecord
	ExpectedVersion int
}

// ManifestFilters contains filter options for querying active manifests.
type ManifestFilters struct {
	DeliveryDate string
	BranchSlug   string
	Status       string
	Limit        int
}

// ArchivedManifestRecord represents a deleted manifest with its provenance.
type ArchivedManifestRecord struct {
	Manifest  *ManifestRecord `json:"manifest"`
	DeletedAt string          `json:"deleted_at"`
	DeletedBy string          `json:"deleted_by"`
}

// ArchiveFilters contains filter options for querying archived manifests.
type ArchiveFilters struct {
	DeliveryDate string
	Limit        int
}
