package dispatch

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is one line of a branch sub-dispatch.
type Item struct {
	ID              string
	Name            string
	Unit            string
	OrderedQty      decimal.Decimal
	PackedQty       decimal.NullDecimal
	ReceivedQty     decimal.NullDecimal
	PackedChecked   bool
	ReceivedChecked bool
	Notes           string
	Issue           string // Empty string means no flagged problem

	// Provenance, only set on items injected after manifest creation.
	AddedLate   bool
	AddedAt     time.Time
	AddedBy     string
	AddedReason string
}

// SubDispatch is one branch's slice of a manifest.
type SubDispatch struct {
	BranchSlug        string
	BranchName        string
	Status            Status
	StatusBeforeIssue Status // Set while Status is issue
	IssueNote         string
	Items             []Item
	Version           int
}

// Clone returns a deep copy so guards and patches never alias caller state.
func (s SubDispatch) Clone() SubDispatch {
	out := s
	out.Items = make([]Item, len(s.Items))
	copy(out.Items, s.Items)
	return out
}

// ItemIndex returns the index of the item with the given id, or -1.
func (s SubDispatch) ItemIndex(id string) int {
	for i, it := range s.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// HasItemID reports whether an item id is already used in this sub-dispatch.
func (s SubDispatch) HasItemID(id string) bool {
	return s.ItemIndex(id) >= 0
}
