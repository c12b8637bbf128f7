package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"journeytracker/internal/model"
	"journeytracker/internal/service"
)

type ProgressHandler struct {
	svc    *service.ProgressService
	logger *zap.Logger
}

func NewProgressHandler(svc *service.ProgressService, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{svc: svc, logger: logger}
}

type updateProgressRequest struct {
	Status               string `json:"status" binding:"required"`
	CompletionPercentage int    `json:"completion_percentage"`
	Notes                string `json:"notes"`
}

func (h *ProgressHandler) UpdateProgress(c *gin.Context) {
	companyID, ok := companyIDParam(c, h.logger, "UpdateProgress")
	if !ok {
		return
	}
	stepID := c.Param("stepId")
	if stepID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "step id required"})
		return
	}

	var req updateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("UpdateProgress: bad request body",
			zap.Int64("company_id", companyID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	status := model.ProgressStatus(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	if req.CompletionPercentage < 0 || req.CompletionPercentage > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "completion_percentage must be between 0 and 100"})
		return
	}

	rec, err := h.svc.UpdateProgress(c.Request.Context(), companyID, stepID, status, req.CompletionPercentage, req.Notes)
	if err != nil {
		if errors.Is(err, service.ErrUnknownStep) {
			c.JSON(http.StatusNotFound, gin.H{"error": "step not found"})
			return
		}
		h.logger.Error("UpdateProgress: failed",
			zap.Int64("company_id", companyID),
			zap.String("step_id", stepID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update progress"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": rec})
}

func (h *ProgressHandler) GetAnalytics(c *gin.Context) {
	companyID, ok := companyIDParam(c, h.logger, "GetAnalytics")
	if !ok {
		return
	}

	analytics, err := h.svc.Analytics(c.Request.Context(), companyID)
	if err != nil {
		h.logger.Error("GetAnalytics: failed",
			zap.Int64("company_id", companyID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute analytics"})
		return
	}

	c.JSON(http.StatusOK, analytics)
}

func (h *ProgressHandler) GetMilestones(c *gin.Context) {
	companyID, ok := companyIDParam(c, h.logger, "GetMilestones")
	if !ok {
		return
	}

	states, err := h.svc.MilestoneStates(c.Request.Context(), companyID)
	if err != nil {
		h.logger.Error("GetMilestones: failed",
			zap.Int64("company_id", companyID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute milestones"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"milestones": states})
}
