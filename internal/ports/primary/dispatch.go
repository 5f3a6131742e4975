// Package primary defines the primary ports (driving adapters) for the application.
// These are the interfaces through which the REST and CLI layers drive the dispatch core.
package primary

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DispatchService defines the primary port for dispatch manifest operations.
type DispatchService interface {
	// CreateManifest builds a manifest with one pending sub-dispatch per branch plan.
	CreateManifest(ctx context.Context, req CreateManifestRequest) (*Manifest, error)

	// GetManifest retrieves an active manifest by ID.
	GetManifest(ctx context.Context, manifestID string) (*Manifest, error)

	// ListManifests lists active manifests with optional filters.
	ListManifests(ctx context.Context, filters ManifestFilters) ([]*Manifest, error)

	// UpdateBranchDispatch merges a partial update into one sub-dispatch.
	// Other sub-dispatches of the manifest are untouched.
	UpdateBranchDispatch(ctx context.Context, req UpdateBranchRequest) (*Manifest, error)

	// ResolveIssue returns an issue sub-dispatch to the status it was raised from.
	ResolveIssue(ctx context.Context, req ResolveIssueRequest) (*Manifest, error)

	// AddLateItem appends one item to the eligible requested branches.
	// Returns PartialFailureError when no branch was eligible.
	AddLateItem(ctx context.Context, req AddLateItemRequest) (*AddLateItemResponse, error)

	// DeleteManifest moves a manifest into the archive with deletion provenance.
	DeleteManifest(ctx context.Context, req DeleteManifestRequest) (*Manifest, error)

	// ListArchived lists archived manifests.
	ListArchived(ctx context.Context, filters ArchiveFilters) ([]*Manifest, error)

	// GetArchived retrieves an archived manifest by ID.
	GetArchived(ctx context.Context, manifestID string) (*Manifest, error)

	// InferUnit returns the unit the lookup table assigns to an item name.
	InferUnit(name string) string
}

// CreateManifestRequest contains parameters for creating a manifest.
type CreateManifestRequest struct {
	DeliveryDate string       `json:"delivery_date" yaml:"delivery_date"`
	CreatedBy    string       `json:"-" yaml:"-"`
	Branches     []BranchPlan `json:"branches" yaml:"branches"`
}

// BranchPlan is the initial content of one branch's sub-dispatch.
type BranchPlan struct {
	Slug  string     `json:"slug" yaml:"slug"`
	Name  string     `json:"name,omitempty" yaml:"name"`
	Items []ItemPlan `json:"items" yaml:"items"`
}

// ItemPlan is one requested line of a branch plan.
type ItemPlan struct {
	Name       string          `json:"name" yaml:"name"`
	Unit       string          `json:"unit,omitempty" yaml:"unit"` // Optional - inferred from the name
	OrderedQty decimal.Decimal `json:"ordered_qty" yaml:"ordered_qty"`
}

// ManifestFilters contains filter options for listing manifests.
type ManifestFilters struct {
	DeliveryDate string
	BranchSlug   string
	Status       string // Manifests with at least one sub-dispatch in this status
	Limit        int
}

// UpdateBranchRequest is a partial update to one sub-dispatch.
type UpdateBranchRequest struct {
	ManifestID string     `json:"-"`
	BranchSlug string     `json:"-"`
	Status     *string    `json:"status,omitempty"`
	IssueNote  *string    `json:"issue_note,omitempty"`
	Items      []ItemEdit `json:"items,omitempty"`
}

// ItemEdit is a partial update to one item. Nil fields are left unchanged.
type ItemEdit struct {
	ID              string           `json:"id"`
	PackedQty       *decimal.Decimal `json:"packed_qty,omitempty"`
	ReceivedQty     *decimal.Decimal `json:"received_qty,omitempty"`
	PackedChecked   *bool            `json:"packed_checked,omitempty"`
	ReceivedChecked *bool            `json:"received_checked,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
	Issue           *string          `json:"issue,omitempty"`
}

// ResolveIssueRequest contains parameters for resolving an issue sub-dispatch.
type ResolveIssueRequest struct {
	ManifestID string `json:"-"`
	BranchSlug string `json:"-"`
	Note       string `json:"note"`
}

// AddLateItemRequest contains parameters for injecting a late item.
type AddLateItemRequest struct {
	ManifestID string           `json:"-"`
	ItemName   string           `json:"item_name"`
	Unit       string           `json:"unit,omitempty"` // Optional - inferred from the name
	Reason     string           `json:"reason,omitempty"`
	AddedBy    string           `json:"-"`
	Branches   []BranchQuantity `json:"branches"`
}

// BranchQuantity is the requested quantity of a late item for one branch.
type BranchQuantity struct {
	Slug     string          `json:"slug"`
	Quantity decimal.Decimal `json:"quantity"`
}

// AddLateItemResponse reports which branches received the late item.
// UpdatedBranches holds branch names; skipped entries keep slug and name.
type AddLateItemResponse struct {
	ManifestID      string          `json:"manifest_id"`
	ItemName        string          `json:"item_name"`
	UpdatedBranches []string        `json:"updated_branches"`
	SkippedBranches []SkippedBranch `json:"skipped_branches"`
	Manifest        *Manifest       `json:"manifest"`
}

// SkippedBranch is a late-item target that was not mutated.
type SkippedBranch struct {
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// DeleteManifestRequest contains parameters for archiving a manifest.
type DeleteManifestRequest struct {
	ManifestID string
	DeletedBy  string
}

// ArchiveFilters contains filter options for listing archived manifests.
type ArchiveFilters struct {
	DeliveryDate string
	Limit        int
}

// Manifest represents a dispatch manifest at the port boundary.
type Manifest struct {
	ID               string            `json:"id"`
	CreatedDate      string            `json:"created_date"`
	DeliveryDate     string            `json:"delivery_date"`
	CreatedBy        string            `json:"created_by"`
	CreatedAt        string            `json:"created_at"`
	IsArchived       bool              `json:"is_archived"`
	DeletedAt        string            `json:"deleted_at,omitempty"`
	DeletedBy        string            `json:"deleted_by,omitempty"`
	BranchDispatches []*BranchDispatch `json:"branch_dispatches"`
}

// Branch returns the sub-dispatch for a slug, or nil.
func (m *Manifest) Branch(slug string) *BranchDispatch {
	for _, b := range m.BranchDispatches {
		if b.BranchSlug == slug {
			return b
		}
	}
	return nil
}

// BranchDispatch represents one branch's sub-dispatch at the port boundary.
// Status lifecycle: pending → packing → packed → dispatched → received (issue from any open state)
type BranchDispatch struct {
	BranchSlug        string        `json:"branch_slug"`
	BranchName        string        `json:"branch_name"`
	Status            string        `json:"status"`
	StatusBeforeIssue string        `json:"status_before_issue,omitempty"`
	IssueNote         string        `json:"issue_note,omitempty"`
	Version           int           `json:"version"`
	UpdatedAt         string        `json:"updated_at"`
	Items             []Item        `json:"items"`
	Discrepancies     []Discrepancy `json:"discrepancies,omitempty"`
}

// Item represents one dispatch line at the port boundary.
type Item struct {
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
	AddedLate       bool                `json:"added_late"`
	AddedAt         *time.Time          `json:"added_at,omitempty"`
	AddedBy         string              `json:"added_by,omitempty"`
	AddedReason     string              `json:"added_reason,omitempty"`
}

// Discrepancy is a per-item quantity mismatch report.
type Discrepancy struct {
	ItemID        string              `json:"item_id"`
	ItemName      string              `json:"item_name"`
	PackedDelta   decimal.NullDecimal `json:"packed_delta"`
	ReceivedDelta decimal.NullDecimal `json:"received_delta"`
}
