package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"journeytracker/internal/engine/arrangement"
	"journeytracker/internal/model"
	"journeytracker/internal/repository"
	"journeytracker/internal/service"
)

type ArrangementHandler struct {
	svc    *service.ArrangementService
	logger *zap.Logger
}

func NewArrangementHandler(svc *service.ArrangementService, logger *zap.Logger) *ArrangementHandler {
	return &ArrangementHandler{svc: svc, logger: logger}
}

type createArrangementRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *ArrangementHandler) Create(c *gin.Context) {
	companyID, ok := companyIDParam(c, h.logger, "CreateArrangement")
	if !ok {
		return
	}

	var req createArrangementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}

	userID := authedUserID(c)
	a, err := h.svc.Create(c.Request.Context(), companyID, userID, req.Name)
	if err != nil {
		h.logger.Error("CreateArrangement: failed",
			zap.Int64("company_id", companyID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create arrangement"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"arrangement": a})
}

func (h *ArrangementHandler) List(c *gin.Context) {
	companyID, ok := companyIDParam(c, h.logger, "ListArrangements")
	if !ok {
		return
	}

	arrangements, err := h.svc.List(c.Request.Context(), companyID)
	if err != nil {
		h.logger.Error("ListArrangements: failed",
			zap.Int64("company_id", companyID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list arrangements"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"arrangements": arrangements})
}

func (h *ArrangementHandler) Entries(c *gin.Context) {
	arrangementID, ok := arrangementIDParam(c, h.logger, "ListEntries")
	if !ok {
		return
	}

	entries, err := h.svc.Entries(c.Request.Context(), arrangementID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "arrangement not found"})
			return
		}
		h.logger.Error("ListEntries: failed",
			zap.Int64("arrangement_id", arrangementID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list entries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

type insertEntryRequest struct {
	StepID string `json:"step_id" binding:"required"`
	Index  int    `json:"index"`
}

func (h *ArrangementHandler) InsertEntry(c *gin.Context) {
	arrangementID, ok := arrangementIDParam(c, h.logger, "InsertEntry")
	if !ok {
		return
	}

	var req insertEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "step_id required"})
		return
	}

	entry := model.ArrangementEntry{StepID: req.StepID}
	err := h.svc.InsertEntry(c.Request.Context(), arrangementID, entry, req.Index)
	if h.respondReorder(c, "InsertEntry", arrangementID, err) {
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

func (h *ArrangementHandler) RemoveEntry(c *gin.Context) {
	arrangementID, ok := arrangementIDParam(c, h.logger, "RemoveEntry")
	if !ok {
		return
	}
	stepID := c.Param("stepId")
	if stepID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "step id required"})
		return
	}

	err := h.svc.RemoveEntry(c.Request.Context(), arrangementID, stepID)
	if h.respondReorder(c, "RemoveEntry", arrangementID, err) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type moveRequest struct {
	SourceIndex      int `json:"source_index"`
	DestinationIndex int `json:"destination_index"`
}

func (h *ArrangementHandler) Move(c *gin.Context) {
	arrangementID, ok := arrangementIDParam(c, h.logger, "Move")
	if !ok {
		return
	}

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.svc.Move(c.Request.Context(), arrangementID, req.SourceIndex, req.DestinationIndex)
	if h.respondReorder(c, "Move", arrangementID, err) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondReorder maps reorder errors to responses. Returns true when it
// already wrote one.
func (h *ArrangementHandler) respondReorder(c *gin.Context, op string, arrangementID int64, err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "arrangement not found"})
	case errors.Is(err, service.ErrUnknownStep):
		c.JSON(http.StatusNotFound, gin.H{"error": "step not found"})
	case errors.Is(err, arrangement.ErrInvalidIndex):
		c.JSON(http.StatusBadRequest, gin.H{"error": "index out of range"})
	case errors.Is(err, service.ErrReorderConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "could not save your new order, please retry"})
	default:
		h.logger.Error(op+": failed",
			zap.Int64("arrangement_id", arrangementID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update arrangement"})
	}
	return true
}

func arrangementIDParam(c *gin.Context, logger *zap.Logger, op string) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		logger.Warn(op+": invalid arrangement id",
			zap.String("arrangement_id", raw),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid arrangement id"})
		return 0, false
	}
	return id, true
}

func authedUserID(c *gin.Context) int64 {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
