package dispatch

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for created and delivery dates.
const DateLayout = "2006-01-02"

// ItemPlan is one requested line of a branch plan.
type ItemPlan struct {
	Name       string
	Unit       string // Inferred from the unit table when empty
	OrderedQty decimal.Decimal
}

// BranchPlan is the initial content of one branch's sub-dispatch.
type BranchPlan struct {
	Slug  string
	Name  string
	Items []ItemPlan
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, Invalid("delivery_date", "expected YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

// ValidateManifestPlan checks a manifest request before anything is built or stored.
// Rules:
// - deliveryDate must be a valid date on or after createdDate
// - at least one branch; slugs non-empty, without whitespace, unique
// - every item has a name and a strictly positive ordered quantity
func ValidateManifestPlan(createdDate string, deliveryDate string, plans []BranchPlan) error {
	created, err := ParseDate(createdDate)
	if err != nil {
		return Invalid("created_date", "expected YYYY-MM-DD, got %q", createdDate)
	}
	delivery, err := ParseDate(deliveryDate)
	if err != nil {
		return err
	}
	if delivery.Before(created) {
		return Invalid("delivery_date", "%s is before created date %s", deliveryDate, createdDate)
	}

	if len(plans) == 0 {
		return Invalid("branches", "at least one branch is required")
	}

	seen := make(map[string]bool, len(plans))
	for _, p := range plans {
		slug := strings.TrimSpace(p.Slug)
		if slug == "" {
			return Invalid("branches", "branch slug is required")
		}
		if strings.ContainsAny(slug, " \t\n") {
			return Invalid("branches", "branch slug %q must not contain whitespace", slug)
		}
		if seen[slug] {
			return Invalid("branches", "duplicate branch slug %s", slug)
		}
		seen[slug] = true

		for i, it := range p.Items {
			if strings.TrimSpace(it.Name) == "" {
				return Invalid("items", "branch %s item %d: name is required", slug, i+1)
			}
			if !it.OrderedQty.IsPositive() {
				return Invalid("ordered_qty", "branch %s item %q: ordered quantity must be positive, got %s",
					slug, it.Name, it.OrderedQty)
			}
		}
	}
	return nil
}

// BuildSubDispatches turns validated plans into pending sub-dispatches with unique item ids.
func BuildSubDispatches(plans []BranchPlan, units UnitRules) []SubDispatch {
	subs := make([]SubDispatch, len(plans))
	for i, p := range plans {
		slug := strings.TrimSpace(p.Slug)
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = slug
		}

		items := make([]Item, len(p.Items))
		for j, it := range p.Items {
			unit := strings.TrimSpace(it.Unit)
			if unit == "" {
				unit = units.Infer(it.Name)
			}
			items[j] = Item{
				ID:         ManifestItemID(slug, j+1),
				Name:       strings.TrimSpace(it.Name),
				Unit:       unit,
				OrderedQty: it.OrderedQty,
			}
		}

		subs[i] = SubDispatch{
			BranchSlug: slug,
			BranchName: name,
			Status:     InitialStatus(),
			Items:      items,
			Version:    1,
		}
	}
	return subs
}
