package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	coredispatch "github.com/example/galley/internal/core/dispatch"
	"github.com/example/galley/internal/logging"
	"github.com/example/galley/internal/ports/primary"
	"github.com/example/galley/internal/ports/secondary"
)

// DispatchOptions configures the workflow engine.
type DispatchOptions struct {
	Policy coredispatch.ReconciliationPolicy
	// UpdateRetries is the number of attempts before a version conflict becomes ConflictError.
	UpdateRetries int
	// Units overrides the built-in unit table when set.
	Units *coredispatch.UnitRules
	// Mirror receives a copy of each archived manifest. Optional.
	Mirror secondary.ArchiveMirror

	// Overridable for tests.
	Clock     func() time.Time
	NewID     func() string
	NewSuffix func() string
}

// DispatchServiceImpl implements the DispatchService interface.
type DispatchServiceImpl struct {
	manifestRepo secondary.ManifestRepository
	archiveRepo  secondary.ArchiveRepository
	mirror       secondary.ArchiveMirror
	units        coredispatch.UnitRules
	policy       coredispatch.ReconciliationPolicy
	attempts     int
	now          func() time.Time
	newID        func() string
	newSuffix    func() string
}

// NewDispatchService creates a new DispatchService with injected dependencies.
func NewDispatchService(
	manifestRepo secondary.ManifestRepository,
	archiveRepo secondary.ArchiveRepository,
	opts DispatchOptions,
) *DispatchServiceImpl {
	s := &DispatchServiceImpl{
		manifestRepo: manifestRepo,
		archiveRepo:  archiveRepo,
		mirror:       opts.Mirror,
		units:        coredispatch.DefaultUnitRules(),
		policy:       opts.Policy,
		attempts:     opts.UpdateRetries,
		now:          opts.Clock,
		newID:        opts.NewID,
		newSuffix:    opts.NewSuffix,
	}
	if opts.Units != nil {
		s.units = *opts.Units
	}
	if !s.policy.IsValid() {
		s.policy = coredispatch.PolicyLenient
	}
	if s.attempts < 1 {
		s.attempts = 1
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.newSuffix == nil {
		s.newSuffix = randomSuffix
	}
	return s
}

// randomSuffix returns 6 hex characters for late item ids.
func randomSuffix() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:3])
}

// CreateManifest builds a manifest with one pending sub-dispatch per branch plan.
func (s *DispatchServiceImpl) CreateManifest(ctx context.Context, req primary.CreateManifestRequest) (*primary.Manifest, error) {
	now := s.now()
	createdDate := now.Format(coredispatch.DateLayout)
	plans := toPlans(req.Branches)

	if err := coredispatch.ValidateManifestPlan(createdDate, req.DeliveryDate, plans); err != nil {
		return nil, err
	}

	id := s.newID()
	stamp := formatTime(now)
	subs := coredispatch.BuildSubDispatches(plans, s.units)

	record := &secondary.ManifestRecord{
		ID:           id,
		CreatedDate:  createdDate,
		DeliveryDate: strings.TrimSpace(req.DeliveryDate),
		CreatedBy:    req.CreatedBy,
		CreatedAt:    stamp,
		Branches:     make([]*secondary.BranchDispatchRecord, len(subs)),
	}
	for i, sub := range subs {
		record.Branches[i] = subToRecord(id, i, sub, stamp)
	}

	if err := s.manifestRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create manifest: %w", err)
	}

	return recordToManifest(record), nil
}

// GetManifest retrieves an active manifest by ID.
func (s *DispatchServiceImpl) GetManifest(ctx context.Context, manifestID string) (*primary.Manifest, error) {
	record, err := s.loadManifest(ctx, manifestID)
	if err != nil {
		return nil, err
	}
	return recordToManifest(record), nil
}

// ListManifests lists active manifests with optional filters.
func (s *DispatchServiceImpl) ListManifests(ctx context.Context, filters primary.ManifestFilters) ([]*primary.Manifest, error) {
	if filters.Status != "" && !coredispatch.Status(filters.Status).IsValid() {
		return nil, coredispatch.Invalid("status", "unknown status %q", filters.Status)
	}
	if filters.DeliveryDate != "" {
		if _, err := coredispatch.ParseDate(filters.DeliveryDate); err != nil {
			return nil, err
		}
	}

	records, err := s.manifestRepo.List(ctx, secondary.ManifestFilters{
		DeliveryDate: filters.DeliveryDate,
		BranchSlug:   filters.BranchSlug,
		Status:       filters.Status,
		Limit:        filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}

	manifests := make([]*primary.Manifest, len(records))
	for i, r := range records {
		manifests[i] = recordToManifest(r)
	}
	return manifests, nil
}

// UpdateBranchDispatch merges a partial update into one sub-dispatch.
func (s *DispatchServiceImpl) UpdateBranchDispatch(ctx context.Context, req primary.UpdateBranchRequest) (*primary.Manifest, error) {
	patch := toPatch(req)
	if err := coredispatch.ValidatePatch(patch); err != nil {
		return nil, err
	}

	return s.mutateBranch(ctx, req.ManifestID, req.BranchSlug, func(sub coredispatch.SubDispatch) (coredispatch.SubDispatch, error) {
		return coredispatch.ApplyPatch(sub, patch, s.policy)
	})
}

// ResolveIssue returns an issue sub-dispatch to the status it was raised from.
func (s *DispatchServiceImpl) ResolveIssue(ctx context.Context, req primary.ResolveIssueRequest) (*primary.Manifest, error) {
	return s.mutateBranch(ctx, req.ManifestID, req.BranchSlug, func(sub coredispatch.SubDispatch) (coredispatch.SubDispatch, error) {
		return coredispatch.ResolveIssue(sub, strings.TrimSpace(req.Note))
	})
}

// InferUnit returns the unit the lookup table assigns to an item name.
func (s *DispatchServiceImpl) InferUnit(name string) string {
	return s.units.Infer(name)
}

// mutateBranch runs read-modify-write on one branch row with compare-and-swap,
// re-reading and re-applying fn when another writer got there first.
func (s *DispatchServiceImpl) mutateBranch(
	ctx context.Context,
	manifestID, branchSlug string,
	fn func(coredispatch.SubDispatch) (coredispatch.SubDispatch, error),
) (*primary.Manifest, error) {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		record, err := s.loadManifest(ctx, manifestID)
		if err != nil {
			return nil, err
		}

		idx, branch := findBranch(record, branchSlug)
		if branch == nil {
			return nil, &coredispatch.NotFoundError{
				Kind:       coredispatch.NotFoundBranch,
				ManifestID: manifestID,
				BranchSlug: branchSlug,
			}
		}

		updated, err := fn(recordToSub(branch))
		if err != nil {
			return nil, err
		}
		updated.Version = branch.Version + 1

		next := subToRecord(manifestID, branch.Position, updated, formatTime(s.now()))
		err = s.manifestRepo.UpdateBranches(ctx, manifestID, []secondary.BranchUpdate{
			{Branch: next, ExpectedVersion: branch.Version},
		})
		switch {
		case err == nil:
			record.Branches[idx] = next
			return recordToManifest(record), nil
		case errors.Is(err, secondary.ErrVersionConflict):
			logging.Warn("branch dispatch changed concurrently, retrying", logging.Fields{
				"manifest_id": manifestID,
				"branch_slug": branchSlug,
				"attempt":     attempt,
			})
			continue
		case errors.Is(err, secondary.ErrNotFound):
			return nil, &coredispatch.NotFoundError{Kind: coredispatch.NotFoundManifest, ManifestID: manifestID}
		default:
			return nil, fmt.Errorf("failed to update branch dispatch: %w", err)
		}
	}

	return nil, &coredispatch.ConflictError{
		ManifestID: manifestID,
		BranchSlug: branchSlug,
		Attempts:   s.attempts,
	}
}

// loadManifest reads an active manifest, mapping a missing record to NotFoundError.
func (s *DispatchServiceImpl) loadManifest(ctx context.Context, manifestID string) (*secondary.ManifestRecord, error) {
	if strings.TrimSpace(manifestID) == "" {
		return nil, coredispatch.Invalid("manifest_id", "manifest id is required")
	}
	record, err := s.manifestRepo.GetByID(ctx, manifestID)
	if err != nil {
		if errors.Is(err, secondary.ErrNotFound) {
			return nil, &coredispatch.NotFoundError{Kind: coredispatch.NotFoundManifest, ManifestID: manifestID}
		}
		return nil, fmt.Errorf("failed to get manifest: %w", err)
	}
	return record, nil
}

// Ensure DispatchServiceImpl implements the interface
var _ primary.DispatchService = (*DispatchServiceImpl)(nil)
