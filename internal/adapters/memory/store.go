// Package memory provides in-process implementations of the persistence ports.
// Records are deep-copied on the way in and out so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/galley/internal/ports/secondary"
)

// Store holds active and archived manifests behind one lock, so Archive is atomic.
type Store struct {
	mu       sync.RWMutex
	active   map[string]*secondary.ManifestRecord
	archived map[string]*secondary.ArchivedManifestRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		active:   make(map[string]*secondary.ManifestRecord),
		archived: make(map[string]*secondary.ArchivedManifestRecord),
	}
}

// Manifests returns the store's ManifestRepository view.
func (s *Store) Manifests() *ManifestRepository { return &ManifestRepository{s: s} }

// Archive returns the store's ArchiveRepository view.
func (s *Store) Archive() *ArchiveRepository { return &ArchiveRepository{s: s} }

// ManifestRepository implements secondary.ManifestRepository in memory.
type ManifestRepository struct{ s *Store }

var (
	_ secondary.ManifestRepository = (*ManifestRepository)(nil)
	_ secondary.ManifestArchiver   = (*ManifestRepository)(nil)
	_ secondary.ArchiveRepository  = (*ArchiveRepository)(nil)
)

// Create persists a new manifest.
func (r *ManifestRepository) Create(ctx context.Context, m *secondary.ManifestRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.active[m.ID]; exists {
		return fmt.Errorf("manifest %s already exists", m.ID)
	}
	r.s.active[m.ID] = cloneManifest(m)
	return nil
}

// GetByID retrieves a manifest by its ID.
func (r *ManifestRepository) GetByID(ctx context.Context, id string) (*secondary.ManifestRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.active[id]
	if !ok {
		return nil, fmt.Errorf("manifest %s: %w", id, secondary.ErrNotFound)
	}
	return cloneManifest(m), nil
}

// List retrieves manifests matching the filters, newest delivery date first.
func (r *ManifestRepository) List(ctx context.Context, filters secondary.ManifestFilters) ([]*secondary.ManifestRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*secondary.ManifestRecord
	for _, m := range r.s.active {
		if matchesManifest(m, filters) {
			out = append(out, cloneManifest(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeliveryDate != out[j].DeliveryDate {
			return out[i].DeliveryDate > out[j].DeliveryDate
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

// UpdateBranches writes branch rows if every one is still at its expected version.
func (r *ManifestRepository) UpdateBranches(ctx context.Context, manifestID string, updates []secondary.BranchUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.active[manifestID]
	if !ok {
		return fmt.Errorf("manifest %s: %w", manifestID, secondary.ErrNotFound)
	}

	idx := make([]int, len(updates))
	for i, u := range updates {
		idx[i] = -1
		for j, b := range m.Branches {
			if b.BranchSlug == u.Branch.BranchSlug {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return fmt.Errorf("branch %s of manifest %s: %w", u.Branch.BranchSlug, manifestID, secondary.ErrNotFound)
		}
		if m.Branches[idx[i]].Version != u.ExpectedVersion {
			return fmt.Errorf("branch %s of manifest %s: %w", u.Branch.BranchSlug, manifestID, secondary.ErrVersionConflict)
		}
	}

	for i, u := range updates {
		m.Branches[idx[i]] = cloneBranch(u.Branch)
	}
	return nil
}

// Delete removes a manifest.
func (r *ManifestRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.active[id]; !ok {
		return fmt.Errorf("manifest %s: %w", id, secondary.ErrNotFound)
	}
	delete(r.s.active, id)
	return nil
}

// Archive moves the stored manifest from active to archived under a single lock.
func (r *ManifestRepository) Archive(ctx context.Context, id string, stamp secondary.ArchiveStamp) (*secondary.ArchivedManifestRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.active[id]
	if !ok {
		return nil, fmt.Errorf("manifest %s: %w", id, secondary.ErrNotFound)
	}
	stored := r.s.putArchived(&secondary.ArchivedManifestRecord{
		Manifest:  m,
		DeletedAt: stamp.DeletedAt,
		DeletedBy: stamp.DeletedBy,
	})
	delete(r.s.active, id)
	return cloneArchived(stored), nil
}

// Ping always succeeds.
func (r *ManifestRepository) Ping(ctx context.Context) error { return nil }

// ArchiveRepository implements secondary.ArchiveRepository in memory.
type ArchiveRepository struct{ s *Store }

// Append stores an archived manifest. A repeat append keeps the first deletion stamp.
func (r *ArchiveRepository) Append(ctx context.Context, a *secondary.ArchivedManifestRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.putArchived(a)
	return nil
}

// GetByID retrieves an archived manifest by its ID.
func (r *ArchiveRepository) GetByID(ctx context.Context, id string) (*secondary.ArchivedManifestRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.archived[id]
	if !ok {
		return nil, fmt.Errorf("archived manifest %s: %w", id, secondary.ErrNotFound)
	}
	return cloneArchived(a), nil
}

// List retrieves archived manifests, most recently deleted first.
func (r *ArchiveRepository) List(ctx context.Context, filters secondary.ArchiveFilters) ([]*secondary.ArchivedManifestRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*secondary.ArchivedManifestRecord
	for _, a := range r.s.archived {
		if filters.DeliveryDate != "" && a.Manifest.DeliveryDate != filters.DeliveryDate {
			continue
		}
		out = append(out, cloneArchived(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeletedAt > out[j].DeletedAt })
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

// putArchived stores a copy of a, keeping the stamp of an earlier record. Callers hold mu.
func (s *Store) putArchived(a *secondary.ArchivedManifestRecord) *secondary.ArchivedManifestRecord {
	next := cloneArchived(a)
	if prev, ok := s.archived[a.Manifest.ID]; ok {
		next.DeletedAt, next.DeletedBy = prev.DeletedAt, prev.DeletedBy
	}
	s.archived[a.Manifest.ID] = next
	return next
}

func matchesManifest(m *secondary.ManifestRecord, f secondary.ManifestFilters) bool {
	if f.DeliveryDate != "" && m.DeliveryDate != f.DeliveryDate {
		return false
	}
	if f.BranchSlug == "" && f.Status == "" {
		return true
	}
	for _, b := range m.Branches {
		if (f.BranchSlug == "" || b.BranchSlug == f.BranchSlug) && (f.Status == "" || b.Status == f.Status) {
			return true
		}
	}
	return false
}

func cloneManifest(m *secondary.ManifestRecord) *secondary.ManifestRecord {
	out := *m
	out.Branches = make([]*secondary.BranchDispatchRecord, len(m.Branches))
	for i, b := range m.Branches {
		out.Branches[i] = cloneBranch(b)
	}
	return &out
}

func cloneBranch(b *secondary.BranchDispatchRecord) *secondary.BranchDispatchRecord {
	out := *b
	out.Items = append([]secondary.ItemRecord(nil), b.Items...)
	return &out
}

func cloneArchived(a *secondary.ArchivedManifestRecord) *secondary.ArchivedManifestRecord {
	out := *a
	out.Manifest = cloneManifest(a.Manifest)
	return &out
}
