package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	coredispatch "github.com/example/galley/internal/core/dispatch"
	"github.com/example/galley/internal/logging"
	"github.com/example/galley/internal/ports/primary"
	"github.com/example/galley/internal/ports/secondary"
)

// DeleteManifest moves a manifest into the archive with deletion provenance.
// Stores implementing ManifestArchiver read and move the manifest in one transaction.
func (s *DispatchServiceImpl) DeleteManifest(ctx context.Context, req primary.DeleteManifestRequest) (*primary.Manifest, error) {
	if strings.TrimSpace(req.ManifestID) == "" {
		return nil, coredispatch.Invalid("manifest_id", "manifest id is required")
	}
	stamp := secondary.ArchiveStamp{
		DeletedAt: formatTime(s.now()),
		DeletedBy: strings.TrimSpace(req.DeletedBy),
	}

	var (
		archived *secondary.ArchivedManifestRecord
		err      error
	)
	if archiver, ok := s.manifestRepo.(secondary.ManifestArchiver); ok {
		archived, err = archiver.Archive(ctx, req.ManifestID, stamp)
	} else {
		archived, err = s.appendThenDelete(ctx, req.ManifestID, stamp)
	}
	if err != nil {
		if errors.Is(err, secondary.ErrNotFound) {
			return nil, &coredispatch.NotFoundError{Kind: coredispatch.NotFoundManifest, ManifestID: req.ManifestID}
		}
		return nil, fmt.Errorf("failed to archive manifest: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.Mirror(ctx, archived); err != nil {
			// The store archive is authoritative; the mirror is best effort.
			logging.Warn("failed to mirror archived manifest", logging.Fields{
				"manifest_id": req.ManifestID,
				"error":       err,
			})
		}
	}

	return archivedToManifest(archived), nil
}

// appendThenDelete archives through the plain repositories. The archive is written
// before the active record is removed, so a crash in between leaves a duplicate
// (resolved by the next delete, which keeps the first stamp) rather than a lost manifest.
// A branch version that moved while the archive was written gets the manifest archived again.
func (s *DispatchServiceImpl) appendThenDelete(ctx context.Context, manifestID string, stamp secondary.ArchiveStamp) (*secondary.ArchivedManifestRecord, error) {
	record, err := s.manifestRepo.GetByID(ctx, manifestID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		a := &secondary.ArchivedManifestRecord{Manifest: record, DeletedAt: stamp.DeletedAt, DeletedBy: stamp.DeletedBy}
		if err := s.archiveRepo.Append(ctx, a); err != nil {
			return nil, fmt.Errorf("failed to append manifest to archive: %w", err)
		}

		current, err := s.manifestRepo.GetByID(ctx, manifestID)
		if err != nil {
			return nil, err
		}
		if sameVersions(record, current) {
			break
		}
		if attempt >= s.attempts {
			return nil, &coredispatch.ConflictError{ManifestID: manifestID, Attempts: attempt}
		}
		record = current
	}

	if err := s.manifestRepo.Delete(ctx, manifestID); err != nil {
		return nil, err
	}

	stored, err := s.archiveRepo.GetByID(ctx, manifestID)
	if err != nil {
		return nil, fmt.Errorf("failed to read archived manifest: %w", err)
	}
	return stored, nil
}

func sameVersions(a, b *secondary.ManifestRecord) bool {
	if len(a.Branches) != len(b.Branches) {
		return false
	}
	for i := range a.Branches {
		if a.Branches[i].BranchSlug != b.Branches[i].BranchSlug || a.Branches[i].Version != b.Branches[i].Version {
			return false
		}
	}
	return true
}

// ListArchived lists archived manifests.
func (s *DispatchServiceImpl) ListArchived(ctx context.Context, filters primary.ArchiveFilters) ([]*primary.Manifest, error) {
	records, err := s.archiveRepo.List(ctx, secondary.ArchiveFilters{
		DeliveryDate: filters.DeliveryDate,
		Limit:        filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list archived manifests: %w", err)
	}

	manifests := make([]*primary.Manifest, len(records))
	for i, r := range records {
		manifests[i] = archivedToManifest(r)
	}
	return manifests, nil
}

// GetArchived retrieves an archived manifest by ID.
func (s *DispatchServiceImpl) GetArchived(ctx context.Context, manifestID string) (*primary.Manifest, error) {
	record, err := s.archiveRepo.GetByID(ctx, manifestID)
	if err != nil {
		if errors.Is(err, secondary.ErrNotFound) {
			return nil, &coredispatch.NotFoundError{Kind: coredispatch.NotFoundManifest, ManifestID: manifestID}
		}
		return nil, fmt.Errorf("failed to get archived manifest: %w", err)
	}
	return archivedToManifest(record), nil
}
