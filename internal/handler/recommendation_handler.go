package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"journeytracker/internal/model"
	"journeytracker/internal/service"
)

type RecommendationHandler struct {
	svc    *service.RecommendationService
	logger *zap.Logger
}

func NewRecommendationHandler(svc *service.RecommendationService, logger *zap.Logger) *RecommendationHandler {
	return &RecommendationHandler{svc: svc, logger: logger}
}

func (h *RecommendationHandler) GetRecommendations(c *gin.Context) {
	companyID, ok := companyIDParam(c, h.logger, "GetRecommendations")
	if !ok {
		return
	}

	set, err := h.svc.Recommend(c.Request.Context(), companyID)
	if err != nil {
		// Recommendations are advisory. A scoring failure degrades to an
		// empty set instead of breaking the page.
		h.logger.Error("GetRecommendations: falling back to empty set",
			zap.Int64("company_id", companyID),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, emptyRecommendationSet())
		return
	}

	c.JSON(http.StatusOK, set)
}

func emptyRecommendationSet() model.RecommendationSet {
	return model.RecommendationSet{
		NextSteps:          []model.ScoredStep{},
		QuickWins:          []model.ScoredStep{},
		StrategicSteps:     []model.ScoredStep{},
		CommunityFavorites: []model.ScoredStep{},
		ExpertRecommended:  []model.ScoredStep{},
	}
}

// companyIDParam parses the :id path segment shared by the company routes.
func companyIDParam(c *gin.Context, logger *zap.Logger, op string) (int64, bool) {
	raw := c.Param("id")
	companyID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || companyID <= 0 {
		logger.Warn(op+": invalid company id",
			zap.String("company_id", raw),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return 0, false
	}
	return companyID, true
}
