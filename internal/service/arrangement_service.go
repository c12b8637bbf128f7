package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"journeytracker/internal/engine/arrangement"
	"journeytracker/internal/model"
	"journeytracker/internal/repository"
	"journeytracker/pkg/metrics"
)

func isVersionConflict(err error) bool {
	return errors.Is(err, repository.ErrVersionConflict)
}

// reorderRetries bounds the optimistic-retry loop on version conflicts.
const reorderRetries = 3

type ArrangementService struct {
	arrangements ArrangementStore
	steps        StepCatalog
	logger       *zap.Logger
}

func NewArrangementService(arrangements ArrangementStore, steps StepCatalog, logger *zap.Logger) *ArrangementService {
	return &ArrangementService{
		arrangements: arrangements,
		steps:        steps,
		logger:       logger,
	}
}

func (s *ArrangementService) Create(ctx context.Context, companyID, userID int64, name string) (*model.Arrangement, error) {
	a := &model.Arrangement{CompanyID: companyID, UserID: userID, Name: name}
	if err := s.arrangements.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *ArrangementService) List(ctx context.Context, companyID int64) ([]model.Arrangement, error) {
	return s.arrangements.ListByCompany(ctx, companyID)
}

func (s *ArrangementService) Entries(ctx context.Context, arrangementID int64) ([]model.ArrangementEntry, error) {
	if _, err := s.arrangements.Get(ctx, arrangementID); err != nil {
		return nil, err
	}
	return s.arrangements.ListEntries(ctx, arrangementID)
}

// InsertEntry places a step at atIndex, shifting later entries. The whole
// reassignment persists in one transaction; a stale snapshot is retried
// with a fresh one.
func (s *ArrangementService) InsertEntry(ctx context.Context, arrangementID int64, entry model.ArrangementEntry, atIndex int) error {
	if err := s.ensureStepExists(ctx, entry.StepID); err != nil {
		return err
	}
	entry.ArrangementID = arrangementID

	return s.withReorderRetry(ctx, "insert", arrangementID, func(version int, entries []model.ArrangementEntry) error {
		result, updates, err := arrangement.Insert(entries, entry, atIndex)
		if err != nil {
			return err
		}

		inserted := findEntry(result, entry.StepID)
		return s.arrangements.ApplyReorder(ctx, arrangementID, version, &inserted, "", updates)
	})
}

// RemoveEntry deletes a step from the arrangement and closes the index gap.
func (s *ArrangementService) RemoveEntry(ctx context.Context, arrangementID int64, stepID string) error {
	return s.withReorderRetry(ctx, "remove", arrangementID, func(version int, entries []model.ArrangementEntry) error {
		_, updates, err := arrangement.Remove(entries, stepID)
		if err != nil {
			return err
		}
		return s.arrangements.ApplyReorder(ctx, arrangementID, version, nil, stepID, updates)
	})
}

// Move relocates the entry at sourceIndex to destinationIndex.
func (s *ArrangementService) Move(ctx context.Context, arrangementID int64, sourceIndex, destinationIndex int) error {
	return s.withReorderRetry(ctx, "move", arrangementID, func(version int, entries []model.ArrangementEntry) error {
		_, updates, err := arrangement.Move(entries, sourceIndex, destinationIndex)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil // no-op move
		}
		return s.arrangements.ApplyReorder(ctx, arrangementID, version, nil, "", updates)
	})
}

// withReorderRetry fetches a fresh (version, entries) snapshot, lets op
// compute and persist against it, and retries on version conflict.
func (s *ArrangementService) withReorderRetry(ctx context.Context, op string, arrangementID int64, fn func(version int, entries []model.ArrangementEntry) error) error {
	var lastErr error
	for attempt := 0; attempt < reorderRetries; attempt++ {
		a, err := s.arrangements.Get(ctx, arrangementID)
		if err != nil {
			metrics.ArrangementReorders.WithLabelValues(op, "error").Inc()
			return err
		}
		entries, err := s.arrangements.ListEntries(ctx, arrangementID)
		if err != nil {
			metrics.ArrangementReorders.WithLabelValues(op, "error").Inc()
			return err
		}

		err = fn(a.Version, entries)
		if err == nil {
			metrics.ArrangementReorders.WithLabelValues(op, "ok").Inc()
			return nil
		}
		if errors.Is(err, arrangement.ErrInvalidIndex) || errors.Is(err, model.ErrInconsistentSnapshot) {
			metrics.ArrangementReorders.WithLabelValues(op, "invalid").Inc()
			return err
		}
		if !isVersionConflict(err) {
			metrics.ArrangementReorders.WithLabelValues(op, "error").Inc()
			return err
		}

		lastErr = err
		s.logger.Warn("Reorder hit stale snapshot, retrying",
			zap.String("operation", op),
			zap.Int64("arrangement_id", arrangementID),
			zap.Int("attempt", attempt+1),
		)
	}

	metrics.ArrangementReorders.WithLabelValues(op, "conflict").Inc()
	return fmt.Errorf("%w: %v", ErrReorderConflict, lastErr)
}

func (s *ArrangementService) ensureStepExists(ctx context.Context, stepID string) error {
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

func findEntry(entries []model.ArrangementEntry, stepID string) model.ArrangementEntry {
	for _, e := range entries {
		if e.StepID == stepID {
			return e
		}
	}
	return model.ArrangementEntry{StepID: stepID}
}
