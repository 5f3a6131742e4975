package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	coredispatch "github.com/example/galley/internal/core/dispatch"
	"github.com/example/galley/internal/logging"
	"github.com/example/galley/internal/ports/primary"
	"github.com/example/galley/internal/ports/secondary"
)

// maxSuffixDraws bounds how often a colliding late item id is redrawn.
const maxSuffixDraws = 8

// AddLateItem appends one item to the eligible requested branches.
// Ineligible branches are reported as skipped; if none is eligible nothing is
// written and PartialFailureError is returned.
func (s *DispatchServiceImpl) AddLateItem(ctx context.Context, req primary.AddLateItemRequest) (*primary.AddLateItemResponse, error) {
	lateReq := coredispatch.LateItemRequest{
		ItemName: strings.TrimSpace(req.ItemName),
		Unit:     strings.TrimSpace(req.Unit),
		Reason:   req.Reason,
		Targets:  make([]coredispatch.BranchQuantity, len(req.Branches)),
	}
	if lateReq.Unit == "" && lateReq.ItemName != "" {
		lateReq.Unit = s.units.Infer(lateReq.ItemName)
	}
	for i, b := range req.Branches {
		lateReq.Targets[i] = coredispatch.BranchQuantity{Slug: strings.TrimSpace(b.Slug), Quantity: b.Quantity}
	}

	if err := coredispatch.ValidateLateItem(lateReq); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		record, err := s.loadManifest(ctx, req.ManifestID)
		if err != nil {
			return nil, err
		}

		subs := make([]coredispatch.SubDispatch, len(record.Branches))
		for i, b := range record.Branches {
			subs[i] = recordToSub(b)
		}

		gate := coredispatch.GateLateItem(subs, lateReq)
		if len(gate.Eligible) == 0 {
			return nil, &coredispatch.PartialFailureError{
				ManifestID: record.ID,
				ItemName:   lateReq.ItemName,
				Skipped:    gate.Skipped,
			}
		}

		now := s.now()
		stamp := formatTime(now)
		prov := coredispatch.LateItemProvenance{AddedAt: now, AddedBy: req.AddedBy, Reason: req.Reason}

		updates := make([]secondary.BranchUpdate, 0, len(gate.Eligible))
		updatedNames := make([]string, 0, len(gate.Eligible))
		for _, e := range gate.Eligible {
			sub := subs[e.Index]
			id, err := s.lateItemID(sub, now)
			if err != nil {
				return nil, err
			}
			next := coredispatch.AppendLateItem(sub, id, lateReq, e.Quantity, prov)
			next.Version = sub.Version + 1

			updates = append(updates, secondary.BranchUpdate{
				Branch:          subToRecord(record.ID, record.Branches[e.Index].Position, next, stamp),
				ExpectedVersion: sub.Version,
			})
			updatedNames = append(updatedNames, next.BranchName)
		}

		err = s.manifestRepo.UpdateBranches(ctx, record.ID, updates)
		switch {
		case err == nil:
			for _, u := range updates {
				idx, _ := findBranch(record, u.Branch.BranchSlug)
				record.Branches[idx] = u.Branch
			}
			return &primary.AddLateItemResponse{
				ManifestID:      record.ID,
				ItemName:        lateReq.ItemName,
				UpdatedBranches: updatedNames,
				SkippedBranches: toSkipped(gate.Skipped),
				Manifest:        recordToManifest(record),
			}, nil
		case errors.Is(err, secondary.ErrVersionConflict):
			// Re-gate on fresh state: a branch may have moved past packing meanwhile.
			logging.Warn("late item target changed concurrently, retrying", logging.Fields{
				"manifest_id": record.ID,
				"item_name":   lateReq.ItemName,
				"attempt":     attempt,
			})
			continue
		case errors.Is(err, secondary.ErrNotFound):
			return nil, &coredispatch.NotFoundError{Kind: coredispatch.NotFoundManifest, ManifestID: record.ID}
		default:
			return nil, fmt.Errorf("failed to add late item: %w", err)
		}
	}

	return nil, &coredispatch.ConflictError{ManifestID: req.ManifestID, Attempts: s.attempts}
}

// lateItemID draws an id that is not yet used in the sub-dispatch.
func (s *DispatchServiceImpl) lateItemID(sub coredispatch.SubDispatch, now time.Time) (string, error) {
	for i := 0; i < maxSuffixDraws; i++ {
		id := coredispatch.LateItemID(sub.BranchSlug, now, s.newSuffix())
		if !sub.HasItemID(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique item id for branch %s", sub.BranchSlug)
}

func toSkipped(in []coredispatch.SkippedBranch) []primary.SkippedBranch {
	out := make([]primary.SkippedBranch, len(in))
	for i, s := range in {
		out[i] = primary.SkippedBranch{Slug: s.Slug, Name: s.Name, Reason: s.Reason}
	}
	return out
}
