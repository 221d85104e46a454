package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artomate-backend/internal/core"
	"artomate-backend/internal/models"
)

// CampaignHandler handles the review step and the campaign pages.
type CampaignHandler struct {
	campaignService core.CampaignService
	logger          *zap.Logger
}

// NewCampaignHandler creates a new CampaignHandler.
func NewCampaignHandler(cs core.CampaignService, logger *zap.Logger) *CampaignHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignHandler{campaignService: cs, logger: logger}
}

// mapCampaignErrorToStatus maps campaign, upload and generation errors to HTTP responses.
func mapCampaignErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var payErr *core.PaymentRequiredError
	if errors.As(err, &payErr) {
		c.JSON(http.StatusPaymentRequired, PaymentRequiredResponse{
			Error:           "Choose a plan to publish this campaign",
			RequiresPayment: true,
			CampaignID:      payErr.CampaignID,
			Plans:           payErr.Plans,
		})
		return
	}

	var statusCode int
	var errResponse ErrorResponse
	switch {
	case errors.Is(err, core.ErrCampaignNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrCampaignNotFound.Error()}
	case errors.Is(err, core.ErrInvalidUpload),
		errors.Is(err, core.ErrInvalidStatusFilter),
		errors.Is(err, core.ErrInvalidCaptionVariant),
		errors.Is(err, core.ErrInvalidTitle):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Invalid request", Details: err.Error()}
	case errors.Is(err, core.ErrUploadTooLarge):
		statusCode = http.StatusRequestEntityTooLarge
		errResponse = ErrorResponse{Error: core.ErrUploadTooLarge.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrBundleMissing):
		statusCode = http.StatusConflict
		errResponse = ErrorResponse{Error: "Generate content for this campaign first", Details: err.Error()}
	case errors.Is(err, core.ErrGenerationInProgress), errors.Is(err, core.ErrCampaignPublished):
		statusCode = http.StatusConflict
		errResponse = ErrorResponse{Error: err.Error()}
	case errors.Is(err, core.ErrNotificationUnavailable), errors.Is(err, core.ErrDispatchFailed):
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: err.Error()}
	case errors.Is(err, core.ErrUserNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "User profile not found"}
	case errors.Is(err, core.ErrInvalidProfile):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Profile is incomplete", Details: err.Error()}
	default:
		logger.Error("Internal Server Error in campaign endpoints", zap.String("path", c.FullPath()), zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// ListCampaigns handles GET /campaigns?status=all|published|draft|processing|failed
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var q CampaignListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid query", Details: bindingErrorDetails(err)})
		return
	}

	campaigns, err := h.campaignService.List(c.Request.Context(), userID, q.Status)
	if err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, campaigns)
}

// GetCampaign handles GET /campaigns/:campaignId
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	campaign, err := h.campaignService.Get(c.Request.Context(), userID, c.Param("campaignId"))
	if err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// UpdateCampaign handles PATCH /campaigns/:campaignId
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: bindingErrorDetails(err)})
		return
	}

	campaign, err := h.campaignService.UpdateTitle(c.Request.Context(), userID, c.Param("campaignId"), req)
	if err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// DeleteCampaign handles DELETE /campaigns/:campaignId. The wizard's discard uses it too.
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.campaignService.Delete(c.Request.Context(), userID, c.Param("campaignId")); err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Preview handles GET /campaigns/:campaignId/preview
func (h *CampaignHandler) Preview(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	preview, err := h.campaignService.Preview(c.Request.Context(), userID, c.Param("campaignId"))
	if err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// SelectCaption handles PUT /campaigns/:campaignId/caption
func (h *CampaignHandler) SelectCaption(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.SelectCaptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: bindingErrorDetails(err)})
		return
	}

	preview, err := h.campaignService.SelectCaption(c.Request.Context(), userID, c.Param("campaignId"), req.Variant)
	if err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// SaveDraft handles POST /campaigns/:campaignId/draft
func (h *CampaignHandler) SaveDraft(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	campaign, err := h.campaignService.SaveDraft(c.Request.Context(), userID, c.Param("campaignId"))
	if err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Campaign saved as draft", Data: campaign})
}

// Publish handles POST /campaigns/:campaignId/publish. Free creators get 402 with the plan list.
func (h *CampaignHandler) Publish(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	campaign, err := h.campaignService.Publish(c.Request.Context(), userID, c.Param("campaignId"))
	if err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Campaign published", Data: campaign})
}

// SendTestEmail handles POST /campaigns/:campaignId/email/test
func (h *CampaignHandler) SendTestEmail(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.campaignService.SendTestEmail(c.Request.Context(), userID, c.Param("campaignId")); err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Test email sent"})
}

// Dashboard handles GET /dashboard
func (h *CampaignHandler) Dashboard(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	stats, err := h.campaignService.Dashboard(c.Request.Context(), userID)
	if err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
