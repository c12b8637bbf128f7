package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"journeytracker/internal/model"
	"journeytracker/pkg/metrics"
)

type ProgressRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProgressRepository(db *pgxpool.Pool, logger *zap.Logger) *ProgressRepository {
	return &ProgressRepository{db: db, logger: logger}
}

func (r *ProgressRepository) ListByCompany(ctx context.Context, companyID int64) ([]model.ProgressRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("list", "progress_records", time.Since(start))
	}()

	query := `
        SELECT company_id, step_id, status, completion_percentage, notes,
               started_at, completed_at, updated_at
        FROM progress_records
        WHERE company_id = $1
        ORDER BY step_id ASC
    `

	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list progress records",
			zap.Int64("company_id", companyID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	var records []model.ProgressRecord
	for rows.Next() {
		var rec model.ProgressRecord
		var notes *string
		if err := rows.Scan(
			&rec.CompanyID,
			&rec.StepID,
			&rec.Status,
			&rec.CompletionPercentage,
			&notes,
			&rec.StartedAt,
			&rec.CompletedAt,
			&rec.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan progress record", zap.Error(err))
			return nil, err
		}
		if notes != nil {
			rec.Notes = *notes
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Get returns the record for one (company, step) pair, or ErrNotFound.
func (r *ProgressRepository) Get(ctx context.Context, companyID int64, stepID string) (*model.ProgressRecord, error) {
	query := `
        SELECT company_id, step_id, status, completion_percentage, notes,
               started_at, completed_at, updated_at
        FROM progress_records
        WHERE company_id = $1 AND step_id = $2
    `

	var rec model.ProgressRecord
	var notes *string
	err := r.db.QueryRow(ctx, query, companyID, stepID).Scan(
		&rec.CompanyID,
		&rec.StepID,
		&rec.Status,
		&rec.CompletionPercentage,
		&notes,
		&rec.StartedAt,
		&rec.CompletedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("progress for company %d step %s: %w", companyID, stepID, ErrNotFound)
		}
		return nil, err
	}
	if notes != nil {
		rec.Notes = *notes
	}

	return &rec, nil
}

// Upsert writes the record inside the caller's transaction so it can share
// one commit with the outbox event insert.
func (r *ProgressRepository) Upsert(ctx context.Context, tx pgx.Tx, rec *model.ProgressRecord) error {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("upsert", "progress_records", time.Since(start))
	}()

	query := `
        INSERT INTO progress_records
            (company_id, step_id, status, completion_percentage, notes,
             started_at, completed_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (company_id, step_id) DO UPDATE SET
            status = EXCLUDED.status,
            completion_percentage = EXCLUDED.completion_percentage,
            notes = EXCLUDED.notes,
            started_at = EXCLUDED.started_at,
            completed_at = EXCLUDED.completed_at,
            updated_at = EXCLUDED.updated_at
    `

	_, err := tx.Exec(ctx, query,
		rec.CompanyID,
		rec.StepID,
		rec.Status,
		rec.CompletionPercentage,
		rec.Notes,
		rec.StartedAt,
		rec.CompletedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert progress record",
			zap.Int64("company_id", rec.CompanyID),
			zap.String("step_id", rec.StepID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// CompletedPhases returns the phase ids already recorded as complete for
// the company. Backs the edge-trigger input of milestone detection.
func (r *ProgressRepository) CompletedPhases(ctx context.Context, companyID int64) (map[string]bool, error) {
	query := `
        SELECT phase_id
        FROM company_milestones
        WHERE company_id = $1 AND completed = TRUE
    `

	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list completed milestones",
			zap.Int64("company_id", companyID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	completed := map[string]bool{}
	for rows.Next() {
		var phaseID string
		if err := rows.Scan(&phaseID); err != nil {
			return nil, err
		}
		completed[phaseID] = true
	}

	return completed, rows.Err()
}

// SaveMilestoneStates upserts the derived per-phase completion flags in the
// caller's transaction.
func (r *ProgressRepository) SaveMilestoneStates(ctx context.Context, tx pgx.Tx, companyID int64, states []model.MilestoneState) error {
	query := `
        INSERT INTO company_milestones (company_id, phase_id, completed, completed_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (company_id, phase_id) DO UPDATE SET
            completed = EXCLUDED.completed,
            completed_at = EXCLUDED.completed_at
    `

	for _, state := range states {
		if _, err := tx.Exec(ctx, query, companyID, state.PhaseID, state.Completed, state.CompletedAt); err != nil {
			r.logger.Error("Failed to save milestone state",
				zap.Int64("company_id", companyID),
				zap.String("phase_id", state.PhaseID),
				zap.Error(err),
			)
			return err
		}
	}

	return nil
}
