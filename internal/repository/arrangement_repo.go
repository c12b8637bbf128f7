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

// ErrVersionConflict signals that the arrangement changed between snapshot
// read and persist. Callers retry with a fresh snapshot.
var ErrVersionConflict = errors.New("arrangement version conflict")

type ArrangementRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewArrangementRepository(db *pgxpool.Pool, logger *zap.Logger) *ArrangementRepository {
	return &ArrangementRepository{db: db, logger: logger}
}

func (r *ArrangementRepository) Create(ctx context.Context, a *model.Arrangement) error {
	query := `
        INSERT INTO arrangements (company_id, user_id, name, version)
        VALUES ($1, $2, $3, 1)
        RETURNING id, version, created_at, updated_at
    `

	err := r.db.QueryRow(ctx, query, a.CompanyID, a.UserID, a.Name).
		Scan(&a.ID, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create arrangement",
			zap.Int64("company_id", a.CompanyID),
			zap.Error(err),
		)
		return err
	}

	r.logger.Info("Arrangement created",
		zap.Int64("arrangement_id", a.ID),
		zap.Int64("company_id", a.CompanyID),
	)
	return nil
}

func (r *ArrangementRepository) ListByCompany(ctx context.Context, companyID int64) ([]model.Arrangement, error) {
	query := `
        SELECT id, company_id, user_id, name, version, created_at, updated_at
        FROM arrangements
        WHERE company_id = $1
        ORDER BY id ASC
    `

	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list arrangements", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var arrangements []model.Arrangement
	for rows.Next() {
		var a model.Arrangement
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.UserID, &a.Name, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		arrangements = append(arrangements, a)
	}

	return arrangements, rows.Err()
}

func (r *ArrangementRepository) Get(ctx context.Context, id int64) (*model.Arrangement, error) {
	query := `
        SELECT id, company_id, user_id, name, version, created_at, updated_at
        FROM arrangements
        WHERE id = $1
    `

	var a model.Arrangement
	err := r.db.QueryRow(ctx, query, id).
		Scan(&a.ID, &a.CompanyID, &a.UserID, &a.Name, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("arrangement %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	return &a, nil
}

func (r *ArrangementRepository) ListEntries(ctx context.Context, arrangementID int64) ([]model.ArrangementEntry, error) {
	query := `
        SELECT arrangement_id, step_id, order_index, custom_phase_id, notes
        FROM arrangement_entries
        WHERE arrangement_id = $1
        ORDER BY order_index ASC
    `

	rows, err := r.db.Query(ctx, query, arrangementID)
	if err != nil {
		r.logger.Error("Failed to list arrangement entries",
			zap.Int64("arrangement_id", arrangementID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	var entries []model.ArrangementEntry
	for rows.Next() {
		var e model.ArrangementEntry
		var notes *string
		if err := rows.Scan(&e.ArrangementID, &e.StepID, &e.OrderIndex, &e.CustomPhaseID, &notes); err != nil {
			return nil, err
		}
		if notes != nil {
			e.Notes = *notes
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// ApplyReorder persists one computed reorder batch atomically: optionally
// inserts or deletes an entry, applies every index update, and bumps the
// arrangement version guarded by expectedVersion. Returns
// ErrVersionConflict without applying anything when the snapshot is stale.
func (r *ArrangementRepository) ApplyReorder(
	ctx context.Context,
	arrangementID int64,
	expectedVersion int,
	insert *model.ArrangementEntry,
	deleteStepID string,
	updates []model.IndexUpdate,
) error {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("reorder", "arrangement_entries", time.Since(start))
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reorder tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Version check first; also serializes concurrent reorders on the row.
	tag, err := tx.Exec(ctx, `
        UPDATE arrangements
        SET version = version + 1, updated_at = NOW()
        WHERE id = $1 AND version = $2
    `, arrangementID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to bump arrangement version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("arrangement %d at version %d: %w", arrangementID, expectedVersion, ErrVersionConflict)
	}

	if deleteStepID != "" {
		if _, err := tx.Exec(ctx, `
            DELETE FROM arrangement_entries
            WHERE arrangement_id = $1 AND step_id = $2
        `, arrangementID, deleteStepID); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
	}

	if insert != nil {
		if _, err := tx.Exec(ctx, `
            INSERT INTO arrangement_entries (arrangement_id, step_id, order_index, custom_phase_id, notes)
            VALUES ($1, $2, $3, $4, $5)
        `, arrangementID, insert.StepID, insert.OrderIndex, insert.CustomPhaseID, insert.Notes); err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}

	for _, u := range updates {
		if insert != nil && u.StepID == insert.StepID {
			continue // written with its final index above
		}
		if _, err := tx.Exec(ctx, `
            UPDATE arrangement_entries
            SET order_index = $3
            WHERE arrangement_id = $1 AND step_id = $2
        `, arrangementID, u.StepID, u.NewOrderIndex); err != nil {
			return fmt.Errorf("failed to update index for step %s: %w", u.StepID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}

	r.logger.Debug("Reorder applied",
		zap.Int64("arrangement_id", arrangementID),
		zap.Int("updates", len(updates)),
	)
	return nil
}
