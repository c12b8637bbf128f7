package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"journeytracker/internal/engine/recommend"
	"journeytracker/internal/engine/scoring"
	"journeytracker/internal/model"
	"journeytracker/pkg/metrics"
)

// RecommendationCache caches computed recommendation sets per company.
type RecommendationCache interface {
	Get(ctx context.Context, companyID int64) (*model.RecommendationSet, bool)
	Set(ctx context.Context, companyID int64, set model.RecommendationSet)
	Invalidate(ctx context.Context, companyID int64)
}

type RecommendationService struct {
	steps     StepCatalog
	companies CompanyStore
	progress  ProgressStore
	engine    *scoring.Engine
	cache     RecommendationCache
	logger    *zap.Logger
}

func NewRecommendationService(
	steps StepCatalog,
	companies CompanyStore,
	progress ProgressStore,
	engine *scoring.Engine,
	cache RecommendationCache,
	logger *zap.Logger,
) *RecommendationService {
	return &RecommendationService{
		steps:     steps,
		companies: companies,
		progress:  progress,
		engine:    engine,
		cache:     cache,
		logger:    logger,
	}
}

// Recommend builds the five recommendation buckets for a company from a
// fresh snapshot, or serves the cached set when one exists.
func (s *RecommendationService) Recommend(ctx context.Context, companyID int64) (model.RecommendationSet, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, companyID); ok {
			metrics.RecommendationsServed.WithLabelValues("cache").Inc()
			return *cached, nil
		}
	}

	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return model.RecommendationSet{}, fmt.Errorf("failed to load company: %w", err)
	}

	steps, err := s.steps.ListAll(ctx)
	if err != nil {
		return model.RecommendationSet{}, fmt.Errorf("failed to load step catalogue: %w", err)
	}

	records, err := s.progress.ListByCompany(ctx, companyID)
	if err != nil {
		return model.RecommendationSet{}, fmt.Errorf("failed to load progress: %w", err)
	}

	adoption, endorsed, err := s.steps.CommunitySignals(ctx)
	if err != nil {
		return model.RecommendationSet{}, fmt.Errorf("failed to load community signals: %w", err)
	}

	completed := map[string]bool{}
	inProgress := map[string]bool{}
	for _, rec := range records {
		switch rec.Status {
		case model.StatusCompleted:
			completed[rec.StepID] = true
		case model.StatusInProgress:
			inProgress[rec.StepID] = true
		}
	}

	// Candidates are steps the company has not completed yet.
	candidates := make([]model.Step, 0, len(steps))
	for _, step := range steps {
		if !completed[step.ID] {
			candidates = append(candidates, step)
		}
	}

	scored := s.engine.Score(scoring.Input{
		Candidates:        candidates,
		Context:           company.Context,
		CompletedStepIDs:  completed,
		InProgressStepIDs: inProgress,
		AdoptionRates:     adoption,
		ExpertEndorsed:    endorsed,
	})
	set := recommend.Categorize(scored)

	if s.cache != nil {
		s.cache.Set(ctx, companyID, set)
	}
	metrics.RecommendationsServed.WithLabelValues("computed").Inc()

	s.logger.Debug("Recommendations computed",
		zap.Int64("company_id", companyID),
		zap.Int("candidates", len(candidates)),
		zap.Int("next_steps", len(set.NextSteps)),
	)
	return set, nil
}

// RedisRecommendationCache is the production RecommendationCache.
type RedisRecommendationCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisRecommendationCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisRecommendationCache {
	return &RedisRecommendationCache{rdb: rdb, ttl: ttl, logger: logger}
}

func cacheKey(companyID int64) string {
	return fmt.Sprintf("recommendations:%d", companyID)
}

func (c *RedisRecommendationCache) Get(ctx context.Context, companyID int64) (*model.RecommendationSet, bool) {
	raw, err := c.rdb.Get(ctx, cacheKey(companyID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Recommendation cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var set model.RecommendationSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		c.logger.Warn("Recommendation cache entry corrupt, dropping",
			zap.Int64("company_id", companyID),
			zap.Error(err),
		)
		c.Invalidate(ctx, companyID)
		return nil, false
	}
	return &set, true
}

func (c *RedisRecommendationCache) Set(ctx context.Context, companyID int64, set model.RecommendationSet) {
	raw, err := json.Marshal(set)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(companyID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Recommendation cache write failed", zap.Error(err))
	}
}

func (c *RedisRecommendationCache) Invalidate(ctx context.Context, companyID int64) {
	if err := c.rdb.Del(ctx, cacheKey(companyID)).Err(); err != nil {
		c.logger.Warn("Recommendation cache invalidation failed", zap.Error(err))
	}
}
