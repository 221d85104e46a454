package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artomate-backend/internal/core"
)

// GenerationHandler starts generation runs and reports their progress.
type GenerationHandler struct {
	generationService core.GenerationService
	logger            *zap.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(gs core.GenerationService, logger *zap.Logger) *GenerationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationHandler{generationService: gs, logger: logger}
}

// Start handles POST /campaigns/:campaignId/generate. The run continues after the response.
func (h *GenerationHandler) Start(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	progress, err := h.generationService.Start(c.Request.Context(), userID, c.Param("campaignId"))
	if err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, progress)
}

// Retry handles POST /campaigns/:campaignId/generation/retry
func (h *GenerationHandler) Retry(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	progress, err := h.generationService.Retry(c.Request.Context(), userID, c.Param("campaignId"))
	if err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, progress)
}

// Progress handles GET /campaigns/:campaignId/generation
func (h *GenerationHandler) Progress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	progress, err := h.generationService.Progress(c.Request.Context(), userID, c.Param("campaignId"))
	if err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
