// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle argument parsing and output formatting,
// but delegate business logic to services.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	coredispatch "github.com/example/galley/internal/core/dispatch"
	"github.com/example/galley/internal/ports/primary"
)

// DispatchAdapter is a thin adapter that translates CLI operations to DispatchService calls.
type DispatchAdapter struct {
	service primary.DispatchService
	out     io.Writer
}

// NewDispatchAdapter creates a new DispatchAdapter with the given service.
func NewDispatchAdapter(service primary.DispatchService, out io.Writer) *DispatchAdapter {
	return &DispatchAdapter{service: service, out: out}
}

// BranchUpdate holds the raw flag values of `galley branch update`.
type BranchUpdate struct {
	ManifestID string
	BranchSlug string
	Status     string
	IssueNote  string
	Packed     []string // item=qty, item is an item id or name
	Received   []string
}

// Create creates a manifest from a parsed plan.
func (a *DispatchAdapter) Create(ctx context.Context, req primary.CreateManifestRequest) (*primary.Manifest, error) {
	m, err := a.service.CreateManifest(ctx, req)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "✓ Created manifest %s for %s (%d branches)\n", m.ID, m.DeliveryDate, len(m.BranchDispatches))
	return m, nil
}

// List lists active manifests.
func (a *DispatchAdapter) List(ctx context.Context, filters primary.ManifestFilters) error {
	manifests, err := a.service.ListManifests(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list manifests: %w", err)
	}
	a.printManifestTable(manifests, "No manifests found")
	return nil
}

// ListArchived lists archived manifests.
func (a *DispatchAdapter) ListArchived(ctx context.Context, filters primary.ArchiveFilters) error {
	manifests, err := a.service.ListArchived(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list archived manifests: %w", err)
	}
	a.printManifestTable(manifests, "Archive is empty")
	return nil
}

// Show displays one manifest with every sub-dispatch and its items.
func (a *DispatchAdapter) Show(ctx context.Context, manifestID string, archived bool) error {
	var (
		m   *primary.Manifest
		err error
	)
	if archived {
		m, err = a.service.GetArchived(ctx, manifestID)
	} else {
		m, err = a.service.GetManifest(ctx, manifestID)
	}
	if err != nil {
		return err
	}
	a.printManifest(m)
	return nil
}

// UpdateBranch applies status and quantity flags to one sub-dispatch.
func (a *DispatchAdapter) UpdateBranch(ctx context.Context, u BranchUpdate) error {
	req := primary.UpdateBranchRequest{ManifestID: u.ManifestID, BranchSlug: u.BranchSlug}
	if u.Status != "" {
		req.Status = &u.Status
	}
	if u.IssueNote != "" {
		req.IssueNote = &u.IssueNote
	}

	if len(u.Packed) > 0 || len(u.Received) > 0 {
		m, err := a.service.GetManifest(ctx, u.ManifestID)
		if err != nil {
			return err
		}
		branch := m.Branch(u.BranchSlug)
		if branch == nil {
			return &coredispatch.NotFoundError{Kind: coredispatch.NotFoundBranch, ManifestID: u.ManifestID, BranchSlug: u.BranchSlug}
		}
		edits, err := itemEdits(branch, u.Packed, u.Received)
		if err != nil {
			return err
		}
		req.Items = edits
	}

	m, err := a.service.UpdateBranchDispatch(ctx, req)
	if err != nil {
		return err
	}
	b := m.Branch(u.BranchSlug)
	fmt.Fprintf(a.out, "✓ %s on %s is %s (v%d)\n", b.BranchName, m.ID, statusLabel(b.Status), b.Version)
	return nil
}

// Resolve returns an issue sub-dispatch to its earlier status.
func (a *DispatchAdapter) Resolve(ctx context.Context, req primary.ResolveIssueRequest) error {
	m, err := a.service.ResolveIssue(ctx, req)
	if err != nil {
		return err
	}
	b := m.Branch(req.BranchSlug)
	fmt.Fprintf(a.out, "✓ Issue resolved: %s is back to %s\n", b.BranchName, statusLabel(b.Status))
	return nil
}

// AddLateItem injects a late item and reports updated and skipped branches.
func (a *DispatchAdapter) AddLateItem(ctx context.Context, req primary.AddLateItemRequest) error {
	resp, err := a.service.AddLateItem(ctx, req)
	var pferr *coredispatch.PartialFailureError
	if errors.As(err, &pferr) {
		for _, s := range pferr.Skipped {
			fmt.Fprintf(a.out, "  %s %s: %s\n", color.New(color.FgYellow).Sprint("skipped"), s.Name, s.Reason)
		}
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Added %s to %s\n", resp.ItemName, strings.Join(resp.UpdatedBranches, ", "))
	for _, s := range resp.SkippedBranches {
		fmt.Fprintf(a.out, "  %s %s: %s\n", color.New(color.FgYellow).Sprint("skipped"), s.Name, s.Reason)
	}
	return nil
}

// Delete archives a manifest.
func (a *DispatchAdapter) Delete(ctx context.Context, req primary.DeleteManifestRequest) error {
	m, err := a.service.DeleteManifest(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Manifest %s archived by %s\n", m.ID, m.DeletedBy)
	return nil
}

// InferUnit prints the unit for an item name.
func (a *DispatchAdapter) InferUnit(name string) {
	fmt.Fprintf(a.out, "%s → %s\n", name, a.service.InferUnit(name))
}

func (a *DispatchAdapter) printManifestTable(manifests []*primary.Manifest, empty string) {
	if len(manifests) == 0 {
		fmt.Fprintln(a.out, empty)
		return
	}

	fmt.Fprintf(a.out, "\n%-38s %-12s %-10s %s\n", "ID", "DELIVERY", "BRANCHES", "STATUS")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────────────────────")
	for _, m := range manifests {
		fmt.Fprintf(a.out, "%-38s %-12s %-10d %s\n", m.ID, m.DeliveryDate, len(m.BranchDispatches), statusSummary(m))
	}
	fmt.Fprintln(a.out)
}

func (a *DispatchAdapter) printManifest(m *primary.Manifest) {
	fmt.Fprintf(a.out, "\nManifest: %s\n", m.ID)
	fmt.Fprintf(a.out, "Delivery: %s (created %s by %s)\n", m.DeliveryDate, m.CreatedDate, m.CreatedBy)
	if m.IsArchived {
		fmt.Fprintf(a.out, "Archived: %s by %s\n", m.DeletedAt, m.DeletedBy)
	}

	for _, b := range m.BranchDispatches {
		fmt.Fprintf(a.out, "\n  %s [%s] %s\n", b.BranchName, b.BranchSlug, statusLabel(b.Status))
		if b.Status == string(coredispatch.StatusIssue) {
			fmt.Fprintf(a.out, "    issue (from %s): %s\n", b.StatusBeforeIssue, b.IssueNote)
		}
		for _, it := range b.Items {
			late := ""
			if it.AddedLate {
				late = color.New(color.FgCyan).Sprintf(" [late: %s]", it.AddedBy)
			}
			fmt.Fprintf(a.out, "    %-28s %8s %-4s packed %-8s received %-8s%s\n",
				it.ID, it.OrderedQty.String(), it.Unit, nullQty(it.PackedQty), nullQty(it.ReceivedQty), late)
		}
		for _, d := range b.Discrepancies {
			fmt.Fprintf(a.out, "    %s %s packed %s received %s\n",
				color.New(color.FgRed).Sprint("≠"), d.ItemName, nullQty(d.PackedDelta), nullQty(d.ReceivedDelta))
		}
	}
	fmt.Fprintln(a.out)
}

func statusSummary(m *primary.Manifest) string {
	parts := make([]string, 0, len(m.BranchDispatches))
	for _, b := range m.BranchDispatches {
		parts = append(parts, fmt.Sprintf("%s:%s", b.BranchSlug, b.Status))
	}
	return strings.Join(parts, " ")
}

func statusLabel(status string) string {
	switch coredispatch.Status(status) {
	case coredispatch.StatusReceived:
		return color.New(color.FgGreen).Sprint(status)
	case coredispatch.StatusIssue:
		return color.New(color.FgRed).Sprint(status)
	case coredispatch.StatusPending:
		return status
	default:
		return color.New(color.FgBlue).Sprint(status)
	}
}

func nullQty(q decimal.NullDecimal) string {
	if !q.Valid {
		return "-"
	}
	return q.Decimal.String()
}

// ParseAssignment splits "key=qty" into its key and decimal quantity.
func ParseAssignment(s string) (string, decimal.Decimal, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", decimal.Decimal{}, fmt.Errorf("expected key=qty, got %q", s)
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", decimal.Decimal{}, fmt.Errorf("invalid quantity in %q: %w", s, err)
	}
	return key, qty, nil
}

// ParseBranchQuantities parses repeated --branch slug=qty flags.
func ParseBranchQuantities(values []string) ([]primary.BranchQuantity, error) {
	out := make([]primary.BranchQuantity, 0, len(values))
	for _, v := range values {
		slug, qty, err := ParseAssignment(v)
		if err != nil {
			return nil, err
		}
		out = append(out, primary.BranchQuantity{Slug: slug, Quantity: qty})
	}
	return out, nil
}

// itemEdits resolves item=qty flags against a branch. Keys match item ids first, then names.
func itemEdits(branch *primary.BranchDispatch, packed, received []string) ([]primary.ItemEdit, error) {
	var edits []primary.ItemEdit
	index := map[string]int{}

	edit := func(raw string, set func(*primary.ItemEdit, decimal.Decimal)) error {
		key, qty, err := ParseAssignment(raw)
		if err != nil {
			return err
		}
		id, err := resolveItem(branch, key)
		if err != nil {
			return err
		}
		i, ok := index[id]
		if !ok {
			edits = append(edits, primary.ItemEdit{ID: id})
			i = len(edits) - 1
			index[id] = i
		}
		set(&edits[i], qty)
		return nil
	}

	for _, p := range packed {
		if err := edit(p, func(e *primary.ItemEdit, q decimal.Decimal) { e.PackedQty = &q }); err != nil {
			return nil, err
		}
	}
	for _, r := range received {
		if err := edit(r, func(e *primary.ItemEdit, q decimal.Decimal) { e.ReceivedQty = &q }); err != nil {
			return nil, err
		}
	}
	return edits, nil
}

func resolveItem(branch *primary.BranchDispatch, key string) (string, error) {
	for _, it := range branch.Items {
		if it.ID == key {
			return it.ID, nil
		}
	}
	var match string
	for _, it := range branch.Items {
		if strings.EqualFold(it.Name, key) {
			if match != "" {
				return "", fmt.Errorf("item name %q is ambiguous in branch %s; use the item id", key, branch.BranchSlug)
			}
			match = it.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no item %q in branch %s", key, branch.BranchSlug)
	}
	return match, nil
}
