package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	coredispatch "github.com/example/galley/internal/core/dispatch"
	"github.com/example/galley/internal/ports/primary"
	"github.com/example/galley/internal/ports/secondary"
)

func moveTo(t *testing.T, env *testEnv, manifestID, slug string, statuses ...string) {
	t.Helper()
	for _, st := range statuses {
		if _, err := env.service.UpdateBranchDispatch(context.Background(), primary.UpdateBranchRequest{
			ManifestID: manifestID, BranchSlug: slug, Status: sp(st),
		}); err != nil {
			t.Fatalf("%s to %s: %v", slug, st, err)
		}
	}
}

func chili(manifestID string, targets ...primary.BranchQuantity) primary.AddLateItemRequest {
	return primary.AddLateItemRequest{
		ManifestID: manifestID,
		ItemName:   "Chili Flakes",
		Unit:       "GM",
		Reason:     "menu change",
		AddedBy:    "ops-lead",
		Branches:   targets,
	}
}

func bq(slug string, n int64) primary.BranchQuantity {
	return primary.BranchQuantity{Slug: slug, Quantity: decimal.NewFromInt(n)}
}

func TestAddLateItem_PendingBranch(t *testing.T) {
	env := newTestEnv(DispatchOptions{NewSuffix: func() string { return "abc123" }})
	m := createRice(t, env, "north", "south")

	resp, err := env.service.AddLateItem(context.Background(), chili(m.ID, bq("north", 5)))
	if err != nil {
		t.Fatalf("AddLateItem failed: %v", err)
	}

	if len(resp.UpdatedBranches) != 1 || resp.UpdatedBranches[0] != "north" {
		t.Errorf("UpdatedBranches = %v, want [north]", resp.UpdatedBranches)
	}
	if resp.SkippedBranches == nil || len(resp.SkippedBranches) != 0 {
		t.Errorf("SkippedBranches = %v, want empty", resp.SkippedBranches)
	}

	stored, _ := env.service.GetManifest(context.Background(), m.ID)
	north := stored.Branch("north")
	if len(north.Items) != 2 {
		t.Fatalf("north has %d items, want 2", len(north.Items))
	}
	late := north.Items[1]
	if !late.AddedLate || !late.OrderedQty.Equal(decimal.NewFromInt(5)) {
		t.Errorf("late item = %+v", late)
	}
	if late.AddedBy != "ops-lead" || late.AddedReason != "menu change" || late.AddedAt == nil || !late.AddedAt.Equal(testNow) {
		t.Errorf("provenance = %+v", late)
	}
	if late.ID != coredispatch.LateItemID("north", testNow, "abc123") {
		t.Errorf("ID = %q", late.ID)
	}
	if north.Items[0].AddedLate || north.Items[0].Name != "Rice" {
		t.Error("existing item was modified")
	}
	if len(stored.Branch("south").Items) != 1 {
		t.Error("untargeted branch was modified")
	}
}

func TestAddLateItem_PartialSuccess(t *testing.T) {
	env := newTestEnv(DispatchOptions{})
	m := createRice(t, env, "north", "south")
	moveTo(t, env, m.ID, "south", "packing", "packed", "dispatched")

	resp, err := env.service.AddLateItem(context.Background(), chili(m.ID, bq("north", 5), bq("south", 5)))
	if err != nil {
		t.Fatalf("partial success must not be an error, got %v", err)
	}
	if len(resp.UpdatedBranches) != 1 || resp.UpdatedBranches[0] != "north" {
		t.Errorf("UpdatedBranches = %v", resp.UpdatedBranches)
	}
	want := primary.SkippedBranch{Slug: "south", Name: "south", Reason: "already dispatched"}
	if len(resp.SkippedBranches) != 1 || resp.SkippedBranches[0] != want {
		t.Errorf("SkippedBranches = %+v, want [%+v]", resp.SkippedBranches, want)
	}

	stored, _ := env.service.GetManifest(context.Background(), m.ID)
	if len(stored.Branch("south").Items) != 1 {
		t.Error("skipped branch was mutated")
	}
}

func TestAddLateItem_AllSkipped(t *testing.T) {
	env := newTestEnv(DispatchOptions{})
	m := createRice(t, env, "north", "south")
	moveTo(t, env, m.ID, "north", "packing", "packed", "dispatched", "received")
	moveTo(t, env, m.ID, "south", "packing", "packed", "dispatched")
	env.manifests.updateCalls = 0

	_, err := env.service.AddLateItem(context.Background(), chili(m.ID, bq("north", 5), bq("south", 5), bq("east", 1)))

	var perr *coredispatch.PartialFailureError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PartialFailureError, got %v", err)
	}
	if len(perr.Skipped) != 3 {
		t.Errorf("Skipped = %+v", perr.Skipped)
	}
	if perr.Skipped[0].Reason != "already received" || perr.Skipped[1].Reason != "already dispatched" {
		t.Errorf("reasons = %+v", perr.Skipped)
	}
	if env.manifests.updateCalls != 0 {
		t.Error("no branch may be written when all are skipped")
	}
}

func TestAddLateItem_ValidationBeforeStoreAccess(t *testing.T) {
	env := newTestEnv(DispatchOptions{})
	m := createRice(t, env, "north", "south")
	env.manifests.getCalls = 0

	tests := []struct {
		name string
		req  primary.AddLateItemRequest
	}{
		{name: "one non-positive quantity", req: chili(m.ID, bq("north", 5), bq("south", 0))},
		{name: "no branches", req: chili(m.ID)},
		{name: "no name", req: primary.AddLateItemRequest{ManifestID: m.ID, Unit: "GM", Branches: []primary.BranchQuantity{bq("north", 1)}}},
		{name: "duplicate branch", req: chili(m.ID, bq("north", 1), bq("north", 2))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.AddLateItem(context.Background(), tt.req)
			var verr *coredispatch.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
	if env.manifests.getCalls != 0 {
		t.Errorf("store read %d times before validation passed", env.manifests.getCalls)
	}
}

func TestAddLateItem_InfersUnit(t *testing.T) {
	env := newTestEnv(DispatchOptions{})
	m := createRice(t, env, "north")

	req := chili(m.ID, bq("north", 1))
	req.ItemName = "Sunflower Oil"
	req.Unit = ""
	resp, err := env.service.AddLateItem(context.Background(), req)
	if err != nil {
		t.Fatalf("AddLateItem failed: %v", err)
	}
	if got := resp.Manifest.Branch("north").Items[1].Unit; got != "LTR" {
		t.Errorf("Unit = %q, want LTR", got)
	}
}

func TestAddLateItem_ManifestNotFound(t *testing.T) {
	env := newTestEnv(DispatchOptions{})

	_, err := env.service.AddLateItem(context.Background(), chili("missing", bq("north", 1)))
	var nf *coredispatch.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != coredispatch.NotFoundManifest {
		t.Fatalf("expected manifest NotFoundError, got %v", err)
	}
}

// Item ids stay unique within a sub-dispatch even when the clock and random
// suffix repeat.
func TestAddLateItem_UniqueIDs(t *testing.T) {
	suffixes := []string{"aaaaaa", "aaaaaa", "bbbbbb", "aaaaaa", "bbbbbb", "cccccc"}
	next := 0
	env := newTestEnv(DispatchOptions{NewSuffix: func() string {
		s := suffixes[next%len(suffixes)]
		next++
		return s
	}})
	m := createRice(t, env, "north")

	for i := 0; i < 3; i++ {
		if _, err := env.service.AddLateItem(context.Background(), chili(m.ID, bq("north", int64(i+1)))); err != nil {
			t.Fatalf("AddLateItem #%d failed: %v", i+1, err)
		}
	}

	stored, _ := env.service.GetManifest(context.Background(), m.ID)
	seen := map[string]bool{}
	for _, it := range stored.Branch("north").Items {
		if seen[it.ID] {
			t.Errorf("duplicate item id %s", it.ID)
		}
		seen[it.ID] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 distinct items, got %d", len(seen))
	}
}

// A branch that moves past packing between read and write is re-gated.
func TestAddLateItem_ConflictRegates(t *testing.T) {
	env := newTestEnv(DispatchOptions{})
	m := createRice(t, env, "north")
	moveTo(t, env, m.ID, "north", "packing")
	ctx := context.Background()

	env.manifests.beforeUpdate = func() {
		env.manifests.beforeUpdate = nil
		cur, _ := env.store.Manifests().GetByID(ctx, m.ID)
		north := cur.Branches[0]
		expected := north.Version
		north.Status = "packed"
		north.Version++
		_ = env.store.Manifests().UpdateBranches(ctx, m.ID, []secondary.BranchUpdate{{Branch: north, ExpectedVersion: expected}})
	}

	_, err := env.service.AddLateItem(ctx, chili(m.ID, bq("north", 2)))
	var perr *coredispatch.PartialFailureError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PartialFailureError after re-gating, got %v", err)
	}
	if perr.Skipped[0].Reason != "already packed" {
		t.Errorf("reason = %q", perr.Skipped[0].Reason)
	}

	stored, _ := env.service.GetManifest(ctx, m.ID)
	if len(stored.Branch("north").Items) != 1 {
		t.Error("late item written to a packed branch")
	}
}
