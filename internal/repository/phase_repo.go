package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"journeytracker/internal/model"
)

type PhaseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPhaseRepository(db *pgxpool.Pool, logger *zap.Logger) *PhaseRepository {
	return &PhaseRepository{db: db, logger: logger}
}

func (r *PhaseRepository) ListActive(ctx context.Context) ([]model.Phase, error) {
	query := `
        SELECT id, name, order_index, active
        FROM phases
        WHERE active = TRUE
        ORDER BY order_index ASC
    `

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list phases", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var phases []model.Phase
	for rows.Next() {
		var p model.Phase
		if err := rows.Scan(&p.ID, &p.Name, &p.OrderIndex, &p.Active); err != nil {
			r.logger.Error("Failed to scan phase", zap.Error(err))
			return nil, err
		}
		phases = append(phases, p)
	}

	return phases, rows.Err()
}
