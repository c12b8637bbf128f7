package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"journeytracker/internal/engine/analytics"
	"journeytracker/internal/engine/milestone"
	"journeytracker/internal/events"
	"journeytracker/internal/model"
	"journeytracker/internal/repository"
	"journeytracker/pkg/metrics"
	"journeytracker/pkg/outbox"
	"journeytracker/pkg/trace"
)

type txRunner func(ctx context.Context, fn func(tx pgx.Tx) error) error

func poolTxRunner(db *pgxpool.Pool) txRunner {
	return func(ctx context.Context, fn func(tx pgx.Tx) error) error {
		tx, err := db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
}

type ProgressService struct {
	runTx    txRunner
	steps    StepCatalog
	phases   PhaseCatalog
	progress ProgressStore
	events   EventStager
	once     OnceGuard
	logger   *zap.Logger

	now func() time.Time
}

func NewProgressService(
	db *pgxpool.Pool,
	steps StepCatalog,
	phases PhaseCatalog,
	progress ProgressStore,
	stager EventStager,
	once OnceGuard,
	logger *zap.Logger,
) *ProgressService {
	return &ProgressService{
		runTx:    poolTxRunner(db),
		steps:    steps,
		phases:   phases,
		progress: progress,
		events:   stager,
		once:     once,
		logger:   logger,
		now:      time.Now,
	}
}

// UpdateProgress applies a status transition for one (company, step) pair.
// The record and a progress.changed outbox event share one transaction, so
// either both persist or neither does.
func (s *ProgressService) UpdateProgress(ctx context.Context, companyID int64, stepID string, status model.ProgressStatus, percentage int, notes string) (*model.ProgressRecord, error) {
	if err := s.ensureStepExists(ctx, stepID); err != nil {
		return nil, err
	}

	rec, err := s.progress.Get(ctx, companyID, stepID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		rec = &model.ProgressRecord{
			CompanyID: companyID,
			StepID:    stepID,
			Status:    model.StatusNotStarted,
		}
	default:
		// A transient read failure must not look like a fresh record, or
		// the upsert would overwrite the persisted history.
		return nil, fmt.Errorf("failed to load progress record: %w", err)
	}

	if err := rec.ApplyStatus(status, percentage, notes, s.now().UTC()); err != nil {
		return nil, err
	}

	event, err := outbox.NewEvent("progress_record", &companyID, events.ProgressChanged, events.ProgressChangedPayload{
		CompanyID: companyID,
		StepID:    stepID,
		Status:    string(status),
		TraceID:   trace.FromContext(ctx),
	})
	if err != nil {
		return nil, err
	}

	err = s.runTx(ctx, func(tx pgx.Tx) error {
		if err := s.progress.Upsert(ctx, tx, rec); err != nil {
			return err
		}
		return s.events.InsertEvent(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	metrics.ProgressTransitions.WithLabelValues(string(status)).Inc()
	s.logger.Info("Progress updated",
		zap.Int64("company_id", companyID),
		zap.String("step_id", stepID),
		zap.String("status", string(status)),
	)
	return rec, nil
}

// Analytics aggregates the company's current progress snapshot.
func (s *ProgressService) Analytics(ctx context.Context, companyID int64) (model.ProgressAnalytics, error) {
	steps, phases, records, err := s.snapshot(ctx, companyID)
	if err != nil {
		return model.ProgressAnalytics{}, err
	}
	return analytics.Aggregate(steps, phases, records)
}

// MilestoneStates computes the derived milestone view without persisting
// or emitting anything.
func (s *ProgressService) MilestoneStates(ctx context.Context, companyID int64) ([]model.MilestoneState, error) {
	steps, phases, records, err := s.snapshot(ctx, companyID)
	if err != nil {
		return nil, err
	}

	previous, err := s.progress.CompletedPhases(ctx, companyID)
	if err != nil {
		return nil, err
	}

	states, _, err := milestone.Detect(milestone.Input{
		CompanyID:          companyID,
		Phases:             phases,
		Steps:              steps,
		Records:            records,
		PreviouslyComplete: previous,
	})
	return states, err
}

// DetectMilestones runs edge-triggered milestone detection and stages one
// milestone.completed event per newly completed phase. Safe to re-run
// under at-least-once delivery: the persisted per-phase state plus the
// notification once-guard keep events from firing twice.
func (s *ProgressService) DetectMilestones(ctx context.Context, companyID int64) ([]model.MilestoneEvent, error) {
	steps, phases, records, err := s.snapshot(ctx, companyID)
	if err != nil {
		return nil, err
	}

	previous, err := s.progress.CompletedPhases(ctx, companyID)
	if err != nil {
		return nil, err
	}

	states, fired, err := milestone.Detect(milestone.Input{
		CompanyID:          companyID,
		Phases:             phases,
		Steps:              steps,
		Records:            records,
		PreviouslyComplete: previous,
	})
	if err != nil {
		return nil, err
	}

	var emitted []model.MilestoneEvent
	var staged []*outbox.Event
	for _, evt := range fired {
		key := fmt.Sprintf("%d:%s", evt.CompanyID, evt.PhaseID)
		if s.once != nil && !s.once.AcquireOnce(ctx, "milestone", key) {
			continue
		}

		event, err := outbox.NewEvent("milestone", &companyID, events.MilestoneCompleted, events.MilestoneCompletedPayload{
			CompanyID:     evt.CompanyID,
			PhaseID:       evt.PhaseID,
			MilestoneName: evt.MilestoneName,
			CompletedAt:   evt.CompletedAt,
			TraceID:       trace.FromContext(ctx),
		})
		if err != nil {
			return nil, err
		}
		staged = append(staged, event)
		emitted = append(emitted, evt)
	}

	err = s.runTx(ctx, func(tx pgx.Tx) error {
		if err := s.progress.SaveMilestoneStates(ctx, tx, companyID, states); err != nil {
			return err
		}
		for _, event := range staged {
			if err := s.events.InsertEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The events never reached the outbox; release the markers so a
		// retry can stage them again.
		if s.once != nil {
			for _, evt := range emitted {
				s.once.Release(ctx, "milestone", fmt.Sprintf("%d:%s", evt.CompanyID, evt.PhaseID))
			}
		}
		return nil, err
	}

	for _, evt := range emitted {
		metrics.MilestoneEventsPublished.Inc()
		s.logger.Info("Milestone completed",
			zap.Int64("company_id", evt.CompanyID),
			zap.String("phase_id", evt.PhaseID),
			zap.String("milestone", evt.MilestoneName),
		)
	}
	return emitted, nil
}

func (s *ProgressService) snapshot(ctx context.Context, companyID int64) ([]model.Step, []model.Phase, []model.ProgressRecord, error) {
	steps, err := s.steps.ListAll(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load step catalogue: %w", err)
	}
	phases, err := s.phases.ListActive(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load phases: %w", err)
	}
	records, err := s.progress.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load progress: %w", err)
	}
	return steps, phases, records, nil
}

func (s *ProgressService) ensureStepExists(ctx context.Context, stepID string) error {
	steps, err := s.steps.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load step catalogue: %w", err)
	}
	for _, step := range steps {
		if step.ID == stepID {
			return nil
		}
	}
	return fmt.Errorf("step %s: %w", stepID, ErrUnknownStep)
}
