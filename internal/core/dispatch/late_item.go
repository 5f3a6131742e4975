package dispatch

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BranchQuantity is the requested quantity of a late item for one branch.
type BranchQuantity struct {
	Slug     string
	Quantity decimal.Decimal
}

// LateItemRequest describes one item to inject into several sub-dispatches.
type LateItemRequest struct {
	ItemName string
	Unit     string
	Reason   string
	Targets  []BranchQuantity
}

// ValidateLateItem checks a late-item request before any manifest is read.
// Rules:
// - item name and unit non-empty
// - at least one target branch, no duplicates
// - every quantity strictly positive
func ValidateLateItem(req LateItemRequest) error {
	if strings.TrimSpace(req.ItemName) == "" {
		return Invalid("item_name", "item name is required")
	}
	if strings.TrimSpace(req.Unit) == "" {
		return Invalid("unit", "unit is required")
	}
	if len(req.Targets) == 0 {
		return Invalid("branches", "at least one branch is required")
	}

	seen := make(map[string]bool, len(req.Targets))
	for _, t := range req.Targets {
		slug := strings.TrimSpace(t.Slug)
		if slug == "" {
			return Invalid("branches", "branch slug is required")
		}
		if seen[slug] {
			return Invalid("branches", "branch %s listed more than once", slug)
		}
		seen[slug] = true
		if !t.Quantity.IsPositive() {
			return Invalid("quantity", "branch %s: quantity must be positive, got %s", slug, t.Quantity)
		}
	}
	return nil
}

// LateItemPlan is the gating outcome: which sub-dispatches receive the item and which are skipped.
type LateItemPlan struct {
	Eligible []EligibleBranch
	Skipped  []SkippedBranch
}

// EligibleBranch points at a sub-dispatch (by index) that will receive the late item.
type EligibleBranch struct {
	Index    int
	Quantity decimal.Decimal
}

// GateLateItem decides per requested branch whether the late item can be appended.
// Branches outside the manifest or past packing are skipped with a reason.
func GateLateItem(subs []SubDispatch, req LateItemRequest) LateItemPlan {
	var plan LateItemPlan
	for _, t := range req.Targets {
		slug := strings.TrimSpace(t.Slug)
		idx := -1
		for i, s := range subs {
			if s.BranchSlug == slug {
				idx = i
				break
			}
		}
		if idx < 0 {
			plan.Skipped = append(plan.Skipped, SkippedBranch{
				Slug:   slug,
				Name:   slug,
				Reason: "not part of this manifest",
			})
			continue
		}

		if result := CanReceiveNewItems(subs[idx]); !result.Allowed {
			plan.Skipped = append(plan.Skipped, SkippedBranch{
				Slug:   slug,
				Name:   subs[idx].BranchName,
				Reason: result.Reason,
			})
			continue
		}
		plan.Eligible = append(plan.Eligible, EligibleBranch{Index: idx, Quantity: t.Quantity})
	}
	return plan
}

// LateItemProvenance carries who added a late item, when and why.
type LateItemProvenance struct {
	AddedAt time.Time
	AddedBy string
	Reason  string
}

// AppendLateItem appends a new item to a copy of the sub-dispatch. Existing items are untouched.
// The caller supplies an id already checked for uniqueness within the sub-dispatch.
func AppendLateItem(sub SubDispatch, id string, req LateItemRequest, qty decimal.Decimal, prov LateItemProvenance) SubDispatch {
	out := sub.Clone()
	out.Items = append(out.Items, Item{
		ID:          id,
		Name:        strings.TrimSpace(req.ItemName),
		Unit:        strings.TrimSpace(req.Unit),
		OrderedQty:  qty,
		AddedLate:   true,
		AddedAt:     prov.AddedAt,
		AddedBy:     prov.AddedBy,
		AddedReason: strings.TrimSpace(prov.Reason),
	})
	return out
}
