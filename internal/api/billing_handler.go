package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artomate-backend/internal/core"
	"artomate-backend/internal/models"
)

// maxWebhookBytes bounds webhook payloads; Stripe events are far smaller.
const maxWebhookBytes = 65536

// BillingHandler handles billing-related API endpoints.
type BillingHandler struct {
	billingService core.BillingService
	logger         *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(bs core.BillingService, logger *zap.Logger) *BillingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingHandler{billingService: bs, logger: logger}
}

// mapBillingErrorToStatus maps errors from core.BillingService to HTTP status codes and ErrorResponse.
func mapBillingErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrPlanNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "Plan not found", Details: err.Error()}
	case errors.Is(err, core.ErrCheckoutNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "Checkout session not found"}
	case errors.Is(err, core.ErrCampaignNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrCampaignNotFound.Error()}
	case errors.Is(err, core.ErrUserNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "User profile not found"}
	case errors.Is(err, core.ErrCampaignRequired):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: core.ErrCampaignRequired.Error()}
	case errors.Is(err, core.ErrCampaignAlreadyPaid), errors.Is(err, core.ErrAlreadySubscribed):
		statusCode = http.StatusConflict
		errResponse = ErrorResponse{Error: err.Error()}
	case errors.Is(err, core.ErrWebhookSignature):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Webhook signature verification failed"}
	case errors.Is(err, core.ErrUserStripeNotLinked), errors.Is(err, core.ErrNoActiveSubscription):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: err.Error()}
	case errors.Is(err, core.ErrPaymentGateway):
		logger.Error("Payment gateway error", zap.Error(err))
		statusCode = http.StatusBadGateway
		errResponse = ErrorResponse{Error: "Payment provider error", Details: "Could not complete the operation with the payment provider."}
	default:
		logger.Error("Internal Server Error in BillingHandler", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// ListPlans handles GET /billing/plans
func (h *BillingHandler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, h.billingService.Plans())
}

// CreateCheckout handles POST /billing/checkout
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: bindingErrorDetails(err)})
		return
	}

	session, err := h.billingService.CreateCheckout(c.Request.Context(), userID, req)
	if err != nil {
		mapBillingErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// ConfirmCheckout handles POST /billing/checkout/:sessionId/confirm after the gateway redirect.
func (h *BillingHandler) ConfirmCheckout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	result, err := h.billingService.ConfirmCheckout(c.Request.Context(), userID, c.Param("sessionId"))
	if err != nil {
		mapBillingErrorToStatus(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if result.Status == core.CheckoutPending {
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

// CreatePortal handles POST /billing/portal
func (h *BillingHandler) CreatePortal(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	portalURL, err := h.billingService.CreatePortal(c.Request.Context(), userID)
	if err != nil {
		mapBillingErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, PortalResponse{URL: portalURL})
}

// CancelSubscription handles POST /billing/subscription/cancel
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.billingService.CancelSubscription(c.Request.Context(), userID)
	if err != nil {
		mapBillingErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Subscription cancelled", Data: user})
}

// PaymentHistory handles GET /billing/payments
func (h *BillingHandler) PaymentHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	list, err := h.billingService.PaymentHistory(c.Request.Context(), userID)
	if err != nil {
		mapBillingErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// HandleStripeWebhook handles POST /billing/webhooks/stripe
// This endpoint is public; the gateway authenticates it with the Stripe-Signature header.
func (h *BillingHandler) HandleStripeWebhook(c *gin.Context) {
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing Stripe-Signature header"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Error("Failed to read webhook payload", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Failed to read webhook payload"})
		return
	}

	if err := h.billingService.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		h.logger.Warn("Webhook handling failed", zap.Error(err))
		mapBillingErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Webhook received successfully"})
}
