package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"journeytracker/internal/model"
	"journeytracker/pkg/outbox"
)

// Store interfaces consumed by the services. The pgx repositories in
// internal/repository are the production implementations.

type StepCatalog interface {
	ListAll(ctx context.Context) ([]model.Step, error)
	CommunitySignals(ctx context.Context) (map[string]float64, map[string]bool, error)
}

type PhaseCatalog interface {
	ListActive(ctx context.Context) ([]model.Phase, error)
}

type CompanyStore interface {
	GetByID(ctx context.Context, id int64) (*model.Company, error)
}

type ProgressStore interface {
	ListByCompany(ctx context.Context, companyID int64) ([]model.ProgressRecord, error)
	Get(ctx context.Context, companyID int64, stepID string) (*model.ProgressRecord, error)
	Upsert(ctx context.Context, tx pgx.Tx, rec *model.ProgressRecord) error
	CompletedPhases(ctx context.Context, companyID int64) (map[string]bool, error)
	SaveMilestoneStates(ctx context.Context, tx pgx.Tx, companyID int64, states []model.MilestoneState) error
}

type ArrangementStore interface {
	Create(ctx context.Context, a *model.Arrangement) error
	ListByCompany(ctx context.Context, companyID int64) ([]model.Arrangement, error)
	Get(ctx context.Context, id int64) (*model.Arrangement, error)
	ListEntries(ctx context.Context, arrangementID int64) ([]model.ArrangementEntry, error)
	ApplyReorder(ctx context.Context, arrangementID int64, expectedVersion int, insert *model.ArrangementEntry, deleteStepID string, updates []model.IndexUpdate) error
}

// EventStager stages domain events inside a business transaction; the
// outbox dispatcher publishes them after commit.
type EventStager interface {
	InsertEvent(ctx context.Context, tx pgx.Tx, event *outbox.Event) error
}

// OnceGuard is the "already notified" marker for milestone events.
type OnceGuard interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}
