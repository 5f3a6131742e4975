package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/galley/internal/adapters/memory"
	"github.com/example/galley/internal/ports/secondary"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// Ensure mocks implement the interfaces
var (
	_ secondary.ManifestRepository = (*mockManifestRepository)(nil)
	_ secondary.ArchiveRepository  = (*mockArchiveRepository)(nil)
	_ secondary.ArchiveMirror      = (*mockMirror)(nil)
)

// mockManifestRepository implements secondary.ManifestRepository on top of the
// memory store, with error injection. It deliberately does not implement
// secondary.ManifestArchiver so the two-step archive path is exercised.
type mockManifestRepository struct {
	inner *memory.ManifestRepository
	calls *[]string

	createErr     error
	getErr        error
	updateErr     error
	deleteErr     error
	conflictsLeft int    // UpdateBranches calls to reject with ErrVersionConflict
	beforeUpdate  func() // Runs before each UpdateBranches call, simulating another writer
	afterGet      func() // Runs once after the next GetByID call, simulating another writer

	getCalls    int
	updateCalls int
}

func (m *mockManifestRepository) Create(ctx context.Context, rec *secondary.ManifestRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	return m.inner.Create(ctx, rec)
}

func (m *mockManifestRepository) GetByID(ctx context.Context, id string) (*secondary.ManifestRecord, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, err := m.inner.GetByID(ctx, id)
	if hook := m.afterGet; hook != nil {
		m.afterGet = nil
		hook()
	}
	return rec, err
}

func (m *mockManifestRepository) List(ctx context.Context, filters secondary.ManifestFilters) ([]*secondary.ManifestRecord, error) {
	return m.inner.List(ctx, filters)
}

func (m *mockManifestRepository) UpdateBranches(ctx context.Context, manifestID string, updates []secondary.BranchUpdate) error {
	m.updateCalls++
	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return fmt.Errorf("injected: %w", secondary.ErrVersionConflict)
	}
	return m.inner.UpdateBranches(ctx, manifestID, updates)
}

func (m *mockManifestRepository) Delete(ctx context.Context, id string) error {
	*m.calls = append(*m.calls, "delete:"+id)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	return m.inner.Delete(ctx, id)
}

func (m *mockManifestRepository) Ping(ctx context.Context) error { return nil }

// mockArchiveRepository implements secondary.ArchiveRepository for testing.
type mockArchiveRepository struct {
	inner     *memory.ArchiveRepository
	calls     *[]string
	appendErr error
}

func (m *mockArchiveRepository) Append(ctx context.Context, a *secondary.ArchivedManifestRecord) error {
	*m.calls = append(*m.calls, "append:"+a.Manifest.ID)
	if m.appendErr != nil {
		return m.appendErr
	}
	return m.inner.Append(ctx, a)
}

func (m *mockArchiveRepository) GetByID(ctx context.Context, id string) (*secondary.ArchivedManifestRecord, error) {
	return m.inner.GetByID(ctx, id)
}

func (m *mockArchiveRepository) List(ctx context.Context, filters secondary.ArchiveFilters) ([]*secondary.ArchivedManifestRecord, error) {
	return m.inner.List(ctx, filters)
}

// racingArchiver is a transactional store that runs before ahead of each Archive,
// so a write can commit after the service decided to delete.
type racingArchiver struct {
	*memory.ManifestRepository
	before func()
}

func (r *racingArchiver) Archive(ctx context.Context, id string, stamp secondary.ArchiveStamp) (*secondary.ArchivedManifestRecord, error) {
	if r.before != nil {
		r.before()
	}
	return r.ManifestRepository.Archive(ctx, id, stamp)
}

// mockMirror implements secondary.ArchiveMirror for testing.
type mockMirror struct {
	err      error
	mirrored []string
}

func (m *mockMirror) Mirror(ctx context.Context, a *secondary.ArchivedManifestRecord) error {
	if m.err != nil {
		return m.err
	}
	m.mirrored = append(m.mirrored, a.Manifest.ID)
	return nil
}

// ============================================================================
// Fixtures
// ============================================================================

var testNow = time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	service   *DispatchServiceImpl
	store     *memory.Store
	manifests *mockManifestRepository
	archive   *mockArchiveRepository
	calls     []string
}

func newTestEnv(opts DispatchOptions) *testEnv {
	env := &testEnv{store: memory.NewStore()}
	env.manifests = &mockManifestRepository{inner: env.store.Manifests(), calls: &env.calls}
	env.archive = &mockArchiveRepository{inner: env.store.Archive(), calls: &env.calls}

	seq := 0
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return testNow }
	}
	if opts.NewID == nil {
		opts.NewID = func() string {
			seq++
			return fmt.Sprintf("manifest-%03d", seq)
		}
	}
	if opts.UpdateRetries == 0 {
		opts.UpdateRetries = 3
	}
	env.service = NewDispatchService(env.manifests, env.archive, opts)
	return env
}
