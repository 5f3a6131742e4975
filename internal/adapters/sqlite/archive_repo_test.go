package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/galley/internal/adapters/sqlite"
	"github.com/example/galley/internal/ports/secondary"
)

func TestArchiveRepository_AppendKeepsFirstStamp(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewArchiveRepository(db)
	ctx := context.Background()
	m := newManifestRecord("MAN-001", "2025-06-10", "north")

	if err := repo.Append(ctx, &secondary.ArchivedManifestRecord{Manifest: m, DeletedAt: "2025-06-09T10:00:00.000000000Z", DeletedBy: "a"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	retry := newManifestRecord("MAN-001", "2025-06-10", "north", "south")
	if err := repo.Append(ctx, &secondary.ArchivedManifestRecord{Manifest: retry, DeletedAt: "2025-06-09T11:00:00.000000000Z", DeletedBy: "b"}); err != nil {
		t.Fatalf("second Append failed: %v", err)
	}

	list, err := repo.List(ctx, secondary.ArchiveFilters{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("archive holds %d records, want 1", len(list))
	}
	if list[0].DeletedBy != "a" || list[0].DeletedAt != "2025-06-09T10:00:00.000000000Z" {
		t.Errorf("stamp = %s by %s, want the first one", list[0].DeletedAt, list[0].DeletedBy)
	}
	if len(list[0].Manifest.Branches) != 2 {
		t.Errorf("manifest document was not refreshed: %d branches", len(list[0].Manifest.Branches))
	}
}

func TestArchiveRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewArchiveRepository(db)
	ctx := context.Background()

	_ = repo.Append(ctx, &secondary.ArchivedManifestRecord{Manifest: newManifestRecord("MAN-001", "2025-06-10", "north"), DeletedAt: "2025-06-09T10:00:00.000000000Z"})
	_ = repo.Append(ctx, &secondary.ArchivedManifestRecord{Manifest: newManifestRecord("MAN-002", "2025-06-11", "north"), DeletedAt: "2025-06-09T12:00:00.000000000Z"})
	_ = repo.Append(ctx, &secondary.ArchivedManifestRecord{Manifest: newManifestRecord("MAN-003", "2025-06-10", "north"), DeletedAt: "2025-06-09T11:00:00.000000000Z"})

	tests := []struct {
		name    string
		filters secondary.ArchiveFilters
		wantIDs []string
	}{
		{name: "most recently deleted first", filters: secondary.ArchiveFilters{}, wantIDs: []string{"MAN-002", "MAN-003", "MAN-001"}},
		{name: "by delivery date", filters: secondary.ArchiveFilters{DeliveryDate: "2025-06-10"}, wantIDs: []string{"MAN-003", "MAN-001"}},
		{name: "limit", filters: secondary.ArchiveFilters{Limit: 2}, wantIDs: []string{"MAN-002", "MAN-003"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filters)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].Manifest.ID != id {
					t.Errorf("position %d = %s, want %s", i, got[i].Manifest.ID, id)
				}
			}
		})
	}
}

func TestArchiveRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := sqlite.NewArchiveRepository(db).GetByID(context.Background(), "MAN-404")
	if !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
