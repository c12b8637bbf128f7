package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"journeytracker/internal/model"
)

var ErrNotFound = errors.New("not found")

type CompanyRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCompanyRepository(db *pgxpool.Pool, logger *zap.Logger) *CompanyRepository {
	return &CompanyRepository{db: db, logger: logger}
}

func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*model.Company, error) {
	query := `
        SELECT id, name, maturity_score, industry_id, business_model,
               focus_areas, learning_style, created_at, updated_at
        FROM companies
        WHERE id = $1
    `

	var c model.Company
	var industry, businessModel, learningStyle *string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.Context.MaturityScore,
		&industry,
		&businessModel,
		&c.Context.FocusAreas,
		&learningStyle,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("company %d: %w", id, ErrNotFound)
		}
		r.logger.Error("Failed to get company", zap.Int64("company_id", id), zap.Error(err))
		return nil, err
	}

	if industry != nil {
		c.Context.IndustryID = *industry
	}
	if businessModel != nil {
		c.Context.BusinessModel = *businessModel
	}
	if learningStyle != nil {
		c.Context.LearningStyle = *learningStyle
	}
	c.Context = c.Context.Normalized()

	return &c, nil
}
