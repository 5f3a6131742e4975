package app

import (
	"time"

	coredispatch "github.com/example/galley/internal/core/dispatch"
	"github.com/example/galley/internal/ports/primary"
	"github.com/example/galley/internal/ports/secondary"
)

// formatTime renders t for storage.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(secondary.TimeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// displayTime rewrites a stored timestamp in the shortest RFC 3339 form for callers.
func displayTime(s string) string {
	t := parseTime(s)
	if t.IsZero() {
		return s
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func recordToSub(r *secondary.BranchDispatchRecord) coredispatch.SubDispatch {
	items := make([]coredispatch.Item, len(r.Items))
	for i, it := range r.Items {
		items[i] = coredispatch.Item{
			ID:              it.ID,
			Name:            it.Name,
			Unit:            it.Unit,
			OrderedQty:      it.OrderedQty,
			PackedQty:       it.PackedQty,
			ReceivedQty:     it.ReceivedQty,
			PackedChecked:   it.PackedChecked,
			ReceivedChecked: it.ReceivedChecked,
			Notes:           it.Notes,
			Issue:           it.Issue,
			AddedLate:       it.AddedLate,
			AddedAt:         parseTime(it.AddedAt),
			AddedBy:         it.AddedBy,
			AddedReason:     it.AddedReason,
		}
	}
	return coredispatch.SubDispatch{
		BranchSlug:        r.BranchSlug,
		BranchName:        r.BranchName,
		Status:            coredispatch.Status(r.Status),
		StatusBeforeIssue: coredispatch.Status(r.StatusBeforeIssue),
		IssueNote:         r.IssueNote,
		Items:             items,
		Version:           r.Version,
	}
}

func subToRecord(manifestID string, position int, sub coredispatch.SubDispatch, updatedAt string) *secondary.BranchDispatchRecord {
	items := make([]secondary.ItemRecord, len(sub.Items))
	for i, it := range sub.Items {
		items[i] = secondary.ItemRecord{
			ID:              it.ID,
			Name:            it.Name,
			Unit:            it.Unit,
			OrderedQty:      it.OrderedQty,
			PackedQty:       it.PackedQty,
			ReceivedQty:     it.ReceivedQty,
			PackedChecked:   it.PackedChecked,
			ReceivedChecked: it.ReceivedChecked,
			Notes:           it.Notes,
			Issue:           it.Issue,
			AddedLate:       it.AddedLate,
			AddedAt:         formatTime(it.AddedAt),
			AddedBy:         it.AddedBy,
			AddedReason:     it.AddedReason,
		}
	}
	return &secondary.BranchDispatchRecord{
		ManifestID:        manifestID,
		BranchSlug:        sub.BranchSlug,
		BranchName:        sub.BranchName,
		Position:          position,
		Status:            string(sub.Status),
		StatusBeforeIssue: string(sub.StatusBeforeIssue),
		IssueNote:         sub.IssueNote,
		Items:             items,
		Version:           sub.Version,
		UpdatedAt:         updatedAt,
	}
}

func recordToManifest(r *secondary.ManifestRecord) *primary.Manifest {
	m := &primary.Manifest{
		ID:               r.ID,
		CreatedDate:      r.CreatedDate,
		DeliveryDate:     r.DeliveryDate,
		CreatedBy:        r.CreatedBy,
		CreatedAt:        displayTime(r.CreatedAt),
		BranchDispatches: make([]*primary.BranchDispatch, len(r.Branches)),
	}
	for i, b := range r.Branches {
		m.BranchDispatches[i] = recordToBranch(b)
	}
	return m
}

func archivedToManifest(r *secondary.ArchivedManifestRecord) *primary.Manifest {
	m := recordToManifest(r.Manifest)
	m.IsArchived = true
	m.DeletedAt = displayTime(r.DeletedAt)
	m.DeletedBy = r.DeletedBy
	return m
}

func recordToBranch(r *secondary.BranchDispatchRecord) *primary.BranchDispatch {
	b := &primary.BranchDispatch{
		BranchSlug:        r.BranchSlug,
		BranchName:        r.BranchName,
		Status:            r.Status,
		StatusBeforeIssue: r.StatusBeforeIssue,
		IssueNote:         r.IssueNote,
		Version:           r.Version,
		UpdatedAt:         displayTime(r.UpdatedAt),
		Items:             make([]primary.Item, len(r.Items)),
	}
	for i, it := range r.Items {
		item := primary.Item{
			ID:              it.ID,
			Name:            it.Name,
			Unit:            it.Unit,
			OrderedQty:      it.OrderedQty,
			PackedQty:       it.PackedQty,
			ReceivedQty:     it.ReceivedQty,
			PackedChecked:   it.PackedChecked,
			ReceivedChecked: it.ReceivedChecked,
			Notes:           it.Notes,
			Issue:           it.Issue,
			AddedLate:       it.AddedLate,
			AddedBy:         it.AddedBy,
			AddedReason:     it.AddedReason,
		}
		if t := parseTime(it.AddedAt); !t.IsZero() {
			item.AddedAt = &t
		}
		b.Items[i] = item
	}
	for _, d := range coredispatch.Discrepancies(recordToSub(r)) {
		b.Discrepancies = append(b.Discrepancies, primary.Discrepancy{
			ItemID:        d.ItemID,
			ItemName:      d.ItemName,
			PackedDelta:   d.PackedDelta,
			ReceivedDelta: d.ReceivedDelta,
		})
	}
	return b
}

func toPatch(req primary.UpdateBranchRequest) coredispatch.Patch {
	p := coredispatch.Patch{IssueNote: req.IssueNote}
	if req.Status != nil {
		st := coredispatch.Status(*req.Status)
		p.Status = &st
	}
	for _, e := range req.Items {
		p.Items = append(p.Items, coredispatch.ItemEdit{
			ID:              e.ID,
			PackedQty:       e.PackedQty,
			ReceivedQty:     e.ReceivedQty,
			PackedChecked:   e.PackedChecked,
			ReceivedChecked: e.ReceivedChecked,
			Notes:           e.Notes,
			Issue:           e.Issue,
		})
	}
	return p
}

func toPlans(in []primary.BranchPlan) []coredispatch.BranchPlan {
	plans := make([]coredispatch.BranchPlan, len(in))
	for i, b := range in {
		items := make([]coredispatch.ItemPlan, len(b.Items))
		for j, it := range b.Items {
			items[j] = coredispatch.ItemPlan{Name: it.Name, Unit: it.Unit, OrderedQty: it.OrderedQty}
		}
		plans[i] = coredispatch.BranchPlan{Slug: b.Slug, Name: b.Name, Items: items}
	}
	return plans
}

func findBranch(r *secondary.ManifestRecord, slug string) (int, *secondary.BranchDispatchRecord) {
	for i, b := range r.Branches {
		if b.BranchSlug == slug {
			return i, b
		}
	}
	return -1, nil
}
