package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"journeytracker/internal/model"
)

type StepRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewStepRepository(db *pgxpool.Pool, logger *zap.Logger) *StepRepository {
	return &StepRepository{db: db, logger: logger}
}

// ListAll returns the full active step catalogue in phase order.
func (r *StepRepository) ListAll(ctx context.Context) ([]model.Step, error) {
	query := `
        SELECT s.id, s.name, s.phase_id, s.domain_id, s.difficulty,
               s.estimated_min_minutes, s.estimated_max_minutes,
               s.prerequisite_ids, s.applicable_stages
        FROM steps s
        JOIN phases p ON p.id = s.phase_id
        WHERE p.active = TRUE
        ORDER BY p.order_index ASC, s.id ASC
    `

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list steps", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var steps []model.Step
	for rows.Next() {
		var s model.Step
		if err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.PhaseID,
			&s.DomainID,
			&s.Difficulty,
			&s.EstimatedMinMinutes,
			&s.EstimatedMaxMinutes,
			&s.PrerequisiteIDs,
			&s.ApplicableStages,
		); err != nil {
			r.logger.Error("Failed to scan step", zap.Error(err))
			return nil, err
		}
		steps = append(steps, s)
	}

	return steps, rows.Err()
}

// CommunitySignals returns per-step community adoption rates and expert
// endorsement flags. Kept separate from the catalogue so the scoring
// engine receives them as explicit inputs.
func (r *StepRepository) CommunitySignals(ctx context.Context) (map[string]float64, map[string]bool, error) {
	query := `
        SELECT id, community_adoption_rate, expert_endorsed
        FROM steps
    `

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to load community signals", zap.Error(err))
		return nil, nil, err
	}
	defer rows.Close()

	adoption := map[string]float64{}
	endorsed := map[string]bool{}
	for rows.Next() {
		var id string
		var rate *float64
		var isEndorsed bool
		if err := rows.Scan(&id, &rate, &isEndorsed); err != nil {
			return nil, nil, err
		}
		if rate != nil {
			adoption[id] = *rate
		}
		if isEndorsed {
			endorsed[id] = true
		}
	}

	return adoption, endorsed, rows.Err()
}

// RelevanceTags loads the curated personalization tables used by the
// scoring engine. Loaded once at startup; the tags change rarely.
func (r *StepRepository) RelevanceTags(ctx context.Context) (map[string][]string, map[string][]string, map[string][]string, error) {
	industryTags, err := r.tagTable(ctx, `SELECT step_id, industry_id FROM step_industry_tags`)
	if err != nil {
		return nil, nil, nil, err
	}
	businessTags, err := r.tagTable(ctx, `SELECT step_id, business_model FROM step_business_model_tags`)
	if err != nil {
		return nil, nil, nil, err
	}
	learningStyles, err := r.tagTable(ctx, `SELECT domain_id, learning_style FROM domain_learning_styles`)
	if err != nil {
		return nil, nil, nil, err
	}
	return industryTags, businessTags, learningStyles, nil
}

func (r *StepRepository) tagTable(ctx context.Context, query string) (map[string][]string, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to load tag table", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	tags := map[string][]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		tags[key] = append(tags[key], value)
	}
	return tags, rows.Err()
}
