package dispatch

import (
	"github.com/shopspring/decimal"
)

// ItemEdit is a partial update to one item. Nil fields are left unchanged.
type ItemEdit struct {
	ID              string
	PackedQty       *decimal.Decimal
	ReceivedQty     *decimal.Decimal
	PackedChecked   *bool
	ReceivedChecked *bool
	Notes           *string
	Issue           *string // Empty string clears the flagged problem
}

// Patch is a partial update to one sub-dispatch.
type Patch struct {
	Status    *Status
	IssueNote *string
	Items     []ItemEdit
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Status == nil && p.IssueNote == nil && len(p.Items) == 0
}

// ValidatePatch checks a patch for malformed input without looking at current state.
func ValidatePatch(p Patch) error {
	if p.IsEmpty() {
		return Invalid("patch", "nothing to update")
	}
	if p.Status != nil && !p.Status.IsValid() {
		return Invalid("status", "unknown status %q", *p.Status)
	}

	seen := make(map[string]bool, len(p.Items))
	for _, e := range p.Items {
		if e.ID == "" {
			return Invalid("items", "item id is required")
		}
		if seen[e.ID] {
			return Invalid("items", "item %s edited more than once", e.ID)
		}
		seen[e.ID] = true

		if e.PackedQty != nil && e.PackedQty.IsNegative() {
			return Invalid("packed_qty", "item %s: quantity cannot be negative, got %s", e.ID, e.PackedQty)
		}
		if e.ReceivedQty != nil && e.ReceivedQty.IsNegative() {
			return Invalid("received_qty", "item %s: quantity cannot be negative, got %s", e.ID, e.ReceivedQty)
		}
	}
	return nil
}

// ApplyItemEdits merges item edits into a copy of the sub-dispatch.
// orderedQty and provenance fields are never touched.
func ApplyItemEdits(sub SubDispatch, edits []ItemEdit) (SubDispatch, error) {
	out := sub.Clone()
	for _, e := range edits {
		idx := out.ItemIndex(e.ID)
		if idx < 0 {
			return sub, Invalid("items", "item %s not found in branch %s", e.ID, sub.BranchSlug)
		}
		it := &out.Items[idx]
		if e.PackedQty != nil {
			it.PackedQty = decimal.NewNullDecimal(*e.PackedQty)
		}
		if e.ReceivedQty != nil {
			it.ReceivedQty = decimal.NewNullDecimal(*e.ReceivedQty)
		}
		if e.PackedChecked != nil {
			it.PackedChecked = *e.PackedChecked
		}
		if e.ReceivedChecked != nil {
			it.ReceivedChecked = *e.ReceivedChecked
		}
		if e.Notes != nil {
			it.Notes = *e.Notes
		}
		if e.Issue != nil {
			it.Issue = *e.Issue
		}
	}
	return out, nil
}

// Advance applies a status transition to a copy of the sub-dispatch.
// Moving to the current status is a no-op.
func Advance(sub SubDispatch, target Status, policy ReconciliationPolicy) (SubDispatch, error) {
	if target == sub.Status {
		return sub.Clone(), nil
	}

	result := CanAdvance(AdvanceContext{Sub: sub, Target: target, Policy: policy})
	if !result.Allowed {
		return sub, &InvalidTransitionError{
			BranchSlug: sub.BranchSlug,
			From:       sub.Status,
			To:         target,
			Reason:     result.Reason,
		}
	}

	out := sub.Clone()
	if target == StatusIssue {
		out.StatusBeforeIssue = sub.Status
	}
	out.Status = target
	return out, nil
}

// ApplyPatch validates and applies a patch: item edits first, then the status change,
// so a transition that needs quantities can carry them in the same patch.
func ApplyPatch(sub SubDispatch, p Patch, policy ReconciliationPolicy) (SubDispatch, error) {
	if err := ValidatePatch(p); err != nil {
		return sub, err
	}

	out, err := ApplyItemEdits(sub, p.Items)
	if err != nil {
		return sub, err
	}

	if p.Status != nil {
		out, err = Advance(out, *p.Status, policy)
		if err != nil {
			return sub, err
		}
	}

	if p.IssueNote != nil {
		out.IssueNote = *p.IssueNote
	}
	return out, nil
}

// ResolveIssue returns an issue sub-dispatch to the state the issue was raised from.
func ResolveIssue(sub SubDispatch, note string) (SubDispatch, error) {
	if result := CanResolveIssue(sub); !result.Allowed {
		return sub, &InvalidTransitionError{
			BranchSlug: sub.BranchSlug,
			From:       sub.Status,
			To:         sub.StatusBeforeIssue,
			Reason:     result.Reason,
		}
	}

	out := sub.Clone()
	out.Status = sub.StatusBeforeIssue
	out.StatusBeforeIssue = ""
	out.IssueNote = note
	return out, nil
}
