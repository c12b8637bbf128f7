package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"journeytracker/internal/events"
	"journeytracker/internal/model"
	"journeytracker/internal/repository"
	"journeytracker/pkg/outbox"
)

// In-memory fakes for the store interfaces.

type fakeCatalog struct {
	steps  []model.Step
	phases []model.Phase
}

func (f *fakeCatalog) ListAll(ctx context.Context) ([]model.Step, error) { return f.steps, nil }
func (f *fakeCatalog) CommunitySignals(ctx context.Context) (map[string]float64, map[string]bool, error) {
	return nil, nil, nil
}
func (f *fakeCatalog) ListActive(ctx context.Context) ([]model.Phase, error) { return f.phases, nil }

type fakeProgressStore struct {
	records    map[string]*model.ProgressRecord
	milestones map[string]bool
	getErr     error
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{
		records:    map[string]*model.ProgressRecord{},
		milestones: map[string]bool{},
	}
}

func (f *fakeProgressStore) ListByCompany(ctx context.Context, companyID int64) ([]model.ProgressRecord, error) {
	var out []model.ProgressRecord
	for _, rec := range f.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeProgressStore) Get(ctx context.Context, companyID int64, stepID string) (*model.ProgressRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if rec, ok := f.records[stepID]; ok {
		copied := *rec
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeProgressStore) Upsert(ctx context.Context, tx pgx.Tx, rec *model.ProgressRecord) error {
	copied := *rec
	f.records[rec.StepID] = &copied
	return nil
}

func (f *fakeProgressStore) CompletedPhases(ctx context.Context, companyID int64) (map[string]bool, error) {
	out := map[string]bool{}
	for k, v := range f.milestones {
		out[k] = v
	}
	return out, nil
}

func (f *fakeProgressStore) SaveMilestoneStates(ctx context.Context, tx pgx.Tx, companyID int64, states []model.MilestoneState) error {
	for _, s := range states {
		f.milestones[s.PhaseID] = s.Completed
	}
	return nil
}

type fakeStager struct {
	staged []*outbox.Event
}

func (f *fakeStager) InsertEvent(ctx context.Context, tx pgx.Tx, event *outbox.Event) error {
	f.staged = append(f.staged, event)
	return nil
}

type fakeOnce struct {
	acquired map[string]bool
}

func (f *fakeOnce) AcquireOnce(ctx context.Context, scope, key string) bool {
	k := scope + ":" + key
	if f.acquired == nil {
		f.acquired = map[string]bool{}
	}
	if f.acquired[k] {
		return false
	}
	f.acquired[k] = true
	return true
}

func (f *fakeOnce) Release(ctx context.Context, scope, key string) {
	delete(f.acquired, scope+":"+key)
}

func newProgressService(catalog *fakeCatalog, store *fakeProgressStore, stager *fakeStager, once *fakeOnce) *ProgressService {
	s := &ProgressService{
		runTx:    func(ctx context.Context, fn func(tx pgx.Tx) error) error { return fn(nil) },
		steps:    catalog,
		phases:   catalog,
		progress: store,
		events:   stager,
		once:     once,
		logger:   zap.NewNop(),
		now:      func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	return s
}

func journeyCatalog() *fakeCatalog {
	return &fakeCatalog{
		steps: []model.Step{
			{ID: "S1", PhaseID: "P", Difficulty: 2},
			{ID: "S2", PhaseID: "P", Difficulty: 3},
		},
		phases: []model.Phase{{ID: "P", Name: "Foundation", OrderIndex: 1, Active: true}},
	}
}

func TestUpdateProgress_PersistsRecordAndStagesEvent(t *testing.T) {
	store := newFakeProgressStore()
	stager := &fakeStager{}
	svc := newProgressService(journeyCatalog(), store, stager, &fakeOnce{})

	rec, err := svc.UpdateProgress(context.Background(), 1, "S1", model.StatusInProgress, 30, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != model.StatusInProgress || rec.StartedAt == nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(stager.staged) != 1 || stager.staged[0].RoutingKey != events.ProgressChanged {
		t.Fatalf("expected one progress.changed event, got %v", stager.staged)
	}
	if store.records["S1"] == nil {
		t.Fatalf("record not persisted")
	}
}

func TestUpdateProgress_FailsOnTransientReadError(t *testing.T) {
	store := newFakeProgressStore()
	store.records["S1"] = completedRec(1, "S1")
	original := *store.records["S1"]
	store.getErr = fmt.Errorf("read tcp 127.0.0.1:5432: connection reset by peer")

	stager := &fakeStager{}
	svc := newProgressService(journeyCatalog(), store, stager, &fakeOnce{})

	_, err := svc.UpdateProgress(context.Background(), 1, "S1", model.StatusInProgress, 10, "")
	if err == nil {
		t.Fatalf("expected error when the record read fails")
	}
	if len(stager.staged) != 0 {
		t.Fatalf("event staged despite read failure")
	}
	// The stored record keeps its history.
	if got := store.records["S1"]; got.Status != original.Status ||
		got.StartedAt == nil || !got.StartedAt.Equal(*original.StartedAt) ||
		got.CompletedAt == nil || !got.CompletedAt.Equal(*original.CompletedAt) {
		t.Fatalf("record mutated: %+v", got)
	}
}

func TestUpdateProgress_RejectsUnknownStep(t *testing.T) {
	svc := newProgressService(journeyCatalog(), newFakeProgressStore(), &fakeStager{}, &fakeOnce{})

	_, err := svc.UpdateProgress(context.Background(), 1, "ghost", model.StatusCompleted, 100, "")
	if err == nil {
		t.Fatalf("expected error for unknown step")
	}
}

func TestDetectMilestones_ScenarioEndToEnd(t *testing.T) {
	store := newFakeProgressStore()
	stager := &fakeStager{}
	once := &fakeOnce{}
	svc := newProgressService(journeyCatalog(), store, stager, once)
	ctx := context.Background()

	// S1 completes, S2 pending: no milestone.
	if _, err := svc.UpdateProgress(ctx, 1, "S1", model.StatusCompleted, 100, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fired, err := svc.DetectMilestones(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("milestone fired with S2 pending: %v", fired)
	}

	// S2 completes: exactly one milestone event.
	if _, err := svc.UpdateProgress(ctx, 1, "S2", model.StatusCompleted, 100, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fired, err = svc.DetectMilestones(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fired) != 1 || fired[0].PhaseID != "P" {
		t.Fatalf("expected one event for phase P, got %v", fired)
	}

	// Re-running detection with no further change fires nothing.
	fired, err = svc.DetectMilestones(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("milestone re-fired: %v", fired)
	}

	// Two progress.changed plus one milestone.completed staged overall.
	var milestoneEvents int
	for _, e := range stager.staged {
		if e.RoutingKey == events.MilestoneCompleted {
			milestoneEvents++
		}
	}
	if milestoneEvents != 1 {
		t.Fatalf("expected exactly one milestone.completed, got %d", milestoneEvents)
	}
}

func TestDetectMilestones_OnceGuardBlocksDuplicate(t *testing.T) {
	store := newFakeProgressStore()
	stager := &fakeStager{}
	once := &fakeOnce{}
	svc := newProgressService(journeyCatalog(), store, stager, once)
	ctx := context.Background()

	if _, err := svc.UpdateProgress(ctx, 1, "S1", model.StatusCompleted, 100, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateProgress(ctx, 1, "S2", model.StatusCompleted, 100, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate redelivery racing the state save: the guard is already held.
	once.AcquireOnce(ctx, "milestone", "1:P")

	fired, err := svc.DetectMilestones(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("once-guard did not block duplicate: %v", fired)
	}
}

func TestDetectMilestones_ReleasesGuardOnTxFailure(t *testing.T) {
	store := newFakeProgressStore()
	stager := &fakeStager{}
	once := &fakeOnce{}
	svc := newProgressService(journeyCatalog(), store, stager, once)
	ctx := context.Background()

	store.records["S1"] = completedRec(1, "S1")
	store.records["S2"] = completedRec(1, "S2")

	goodTx := svc.runTx
	svc.runTx = func(ctx context.Context, fn func(tx pgx.Tx) error) error {
		return fmt.Errorf("tx begin failed")
	}

	if _, err := svc.DetectMilestones(ctx, 1); err == nil {
		t.Fatalf("expected transaction failure")
	}

	// The guard must be free again so a retry can emit the event.
	svc.runTx = goodTx
	fired, err := svc.DetectMilestones(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("expected retry to fire the event, got %v", fired)
	}
}

func completedRec(companyID int64, stepID string) *model.ProgressRecord {
	done := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	started := done.AddDate(0, 0, -2)
	return &model.ProgressRecord{
		CompanyID:            companyID,
		StepID:               stepID,
		Status:               model.StatusCompleted,
		CompletionPercentage: 100,
		StartedAt:            &started,
		CompletedAt:          &done,
		UpdatedAt:            done,
	}
}
