package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"go.uber.org/zap"

	"journeytracker/internal/engine/arrangement"
	"journeytracker/internal/model"
	"journeytracker/internal/repository"
)

// fakeArrangementStore keeps one arrangement in memory and applies
// reorders with the same version check the pgx repository performs.
type fakeArrangementStore struct {
	version int
	entries []model.ArrangementEntry

	// conflictsLeft forces ApplyReorder to fail with a version conflict
	// this many times, bumping the version as a concurrent writer would.
	conflictsLeft int
	applyCalls    int
}

func (f *fakeArrangementStore) Create(ctx context.Context, a *model.Arrangement) error {
	a.ID = 1
	return nil
}

func (f *fakeArrangementStore) ListByCompany(ctx context.Context, companyID int64) ([]model.Arrangement, error) {
	return []model.Arrangement{{ID: 1, CompanyID: companyID, Version: f.version}}, nil
}

func (f *fakeArrangementStore) Get(ctx context.Context, id int64) (*model.Arrangement, error) {
	return &model.Arrangement{ID: id, Version: f.version}, nil
}

func (f *fakeArrangementStore) ListEntries(ctx context.Context, arrangementID int64) ([]model.ArrangementEntry, error) {
	out := make([]model.ArrangementEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeArrangementStore) ApplyReorder(ctx context.Context, arrangementID int64, expectedVersion int, insert *model.ArrangementEntry, deleteStepID string, updates []model.IndexUpdate) error {
	f.applyCalls++
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		f.version++
		return repository.ErrVersionConflict
	}
	if expectedVersion != f.version {
		return repository.ErrVersionConflict
	}
	f.version++

	if deleteStepID != "" {
		kept := f.entries[:0]
		for _, e := range f.entries {
			if e.StepID != deleteStepID {
				kept = append(kept, e)
			}
		}
		f.entries = kept
	}
	if insert != nil {
		f.entries = append(f.entries, *insert)
	}
	for _, u := range updates {
		for i := range f.entries {
			if f.entries[i].StepID == u.StepID && f.entries[i].StepID != stepIDOf(insert) {
				f.entries[i].OrderIndex = u.NewOrderIndex
			}
		}
	}
	sort.Slice(f.entries, func(i, j int) bool { return f.entries[i].OrderIndex < f.entries[j].OrderIndex })
	return nil
}

func stepIDOf(e *model.ArrangementEntry) string {
	if e == nil {
		return ""
	}
	return e.StepID
}

func seededStore() *fakeArrangementStore {
	return &fakeArrangementStore{
		version: 1,
		entries: []model.ArrangementEntry{
			{ArrangementID: 1, StepID: "X", OrderIndex: 0},
			{ArrangementID: 1, StepID: "Y", OrderIndex: 1},
			{ArrangementID: 1, StepID: "Z", OrderIndex: 2},
		},
	}
}

func arrangementCatalog() *fakeCatalog {
	return &fakeCatalog{steps: []model.Step{
		{ID: "X"}, {ID: "Y"}, {ID: "Z"}, {ID: "W"},
	}}
}

func stepOrder(store *fakeArrangementStore) []string {
	out := make([]string, len(store.entries))
	for i, e := range store.entries {
		out[i] = e.StepID
	}
	return out
}

func TestMove_AppliesDenseReorder(t *testing.T) {
	store := seededStore()
	svc := NewArrangementService(store, arrangementCatalog(), zap.NewNop())

	if err := svc.Move(context.Background(), 1, 0, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Y", "Z", "X"}
	got := stepOrder(store)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if store.version != 2 {
		t.Fatalf("version = %d, want 2", store.version)
	}
}

func TestMove_RetriesOnVersionConflict(t *testing.T) {
	store := seededStore()
	store.conflictsLeft = 2
	svc := NewArrangementService(store, arrangementCatalog(), zap.NewNop())

	if err := svc.Move(context.Background(), 1, 2, 0); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if store.applyCalls != 3 {
		t.Fatalf("applyCalls = %d, want 3", store.applyCalls)
	}
	if got := stepOrder(store); got[0] != "Z" {
		t.Fatalf("order = %v, want Z first", got)
	}
}

func TestMove_ConflictBudgetExhausted(t *testing.T) {
	store := seededStore()
	store.conflictsLeft = reorderRetries
	svc := NewArrangementService(store, arrangementCatalog(), zap.NewNop())

	err := svc.Move(context.Background(), 1, 0, 1)
	if !errors.Is(err, ErrReorderConflict) {
		t.Fatalf("expected ErrReorderConflict, got %v", err)
	}
}

func TestMove_InvalidIndexDoesNotRetry(t *testing.T) {
	store := seededStore()
	svc := NewArrangementService(store, arrangementCatalog(), zap.NewNop())

	err := svc.Move(context.Background(), 1, 0, 9)
	if !errors.Is(err, arrangement.ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
	if store.applyCalls != 0 {
		t.Fatalf("ApplyReorder called on invalid input")
	}
}

func TestMove_NoOpSkipsPersistence(t *testing.T) {
	store := seededStore()
	svc := NewArrangementService(store, arrangementCatalog(), zap.NewNop())

	if err := svc.Move(context.Background(), 1, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.applyCalls != 0 {
		t.Fatalf("no-op move reached the store")
	}
	if store.version != 1 {
		t.Fatalf("version bumped on no-op")
	}
}

func TestInsertEntry_ShiftsAndPersists(t *testing.T) {
	store := seededStore()
	svc := NewArrangementService(store, arrangementCatalog(), zap.NewNop())

	err := svc.InsertEntry(context.Background(), 1, model.ArrangementEntry{StepID: "W"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"X", "W", "Y", "Z"}
	got := stepOrder(store)
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	for i, e := range store.entries {
		if e.OrderIndex != i {
			t.Fatalf("indices not dense after insert: %+v", store.entries)
		}
	}
}

func TestInsertEntry_RejectsUnknownStep(t *testing.T) {
	store := seededStore()
	svc := NewArrangementService(store, arrangementCatalog(), zap.NewNop())

	err := svc.InsertEntry(context.Background(), 1, model.ArrangementEntry{StepID: "ghost"}, 0)
	if !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("expected ErrUnknownStep, got %v", err)
	}
}

func TestRemoveEntry_ClosesGap(t *testing.T) {
	store := seededStore()
	svc := NewArrangementService(store, arrangementCatalog(), zap.NewNop())

	if err := svc.RemoveEntry(context.Background(), 1, "Y"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"X", "Z"}
	got := stepOrder(store)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i, e := range store.entries {
		if e.OrderIndex != i {
			t.Fatalf("indices not dense after remove: %+v", store.entries)
		}
	}
}
