package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artomate-backend/internal/config"
	"artomate-backend/internal/core"
)

// Services are the dependencies of the HTTP handlers.
type Services struct {
	Users      core.UserService
	Auth       core.AuthService
	Uploads    core.UploadService
	Generation core.GenerationService
	Campaigns  core.CampaignService
	Billing    core.BillingService
}

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (logging, recovery, CORS) is applied to router in main before this call.
// requireAuth verifies the caller's ID token.
func SetupRoutes(
	router *gin.Engine,
	appConfig *config.Config,
	logger *zap.Logger,
	requireAuth gin.HandlerFunc,
	svc Services,
) error {
	if err := RegisterValidators(); err != nil {
		return err
	}

	authHandler := NewAuthHandler(svc.Users, svc.Auth, logger)
	userHandler := NewUserHandler(svc.Users, logger)
	uploadHandler := NewUploadHandler(svc.Uploads, appConfig.MaxUploadBytes(), logger)
	campaignHandler := NewCampaignHandler(svc.Campaigns, logger)
	generationHandler := NewGenerationHandler(svc.Generation, logger)
	billingHandler := NewBillingHandler(svc.Billing, logger)

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Artomate backend is healthy."})
	}
	router.GET("/ping", health)
	router.GET("/health", health)

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.SignUp)
			authGroup.POST("/password-reset", authHandler.SendPasswordReset)
			authGroup.POST("/signout", requireAuth, authHandler.SignOut)
			authGroup.GET("/session", requireAuth, authHandler.Session)
		}

		usersGroup := apiV1.Group("/users", requireAuth)
		{
			// Called after client-side sign-in to ensure the profile exists.
			usersGroup.POST("/initialize", authHandler.InitializeUserProfile)
			usersGroup.GET("/me", userHandler.GetCurrentUserProfile)
			usersGroup.PATCH("/me", userHandler.UpdateProfile)
			usersGroup.PUT("/me/notifications", userHandler.UpdateNotifications)
		}

		apiV1.GET("/content-types", uploadHandler.ContentTypes)
		apiV1.GET("/dashboard", requireAuth, campaignHandler.Dashboard)

		campaigns := apiV1.Group("/campaigns", requireAuth)
		{
			campaigns.GET("", campaignHandler.ListCampaigns)
			campaigns.POST("", uploadHandler.CreateCampaign)
			campaigns.GET("/:campaignId", campaignHandler.GetCampaign)
			campaigns.PATCH("/:campaignId", campaignHandler.UpdateCampaign)
			campaigns.DELETE("/:campaignId", campaignHandler.DeleteCampaign)

			campaigns.POST("/:campaignId/generate", generationHandler.Start)
			campaigns.GET("/:campaignId/generation", generationHandler.Progress)
			campaigns.POST("/:campaignId/generation/retry", generationHandler.Retry)

			campaigns.GET("/:campaignId/preview", campaignHandler.Preview)
			campaigns.PUT("/:campaignId/caption", campaignHandler.SelectCaption)
			campaigns.POST("/:campaignId/draft", campaignHandler.SaveDraft)
			campaigns.POST("/:campaignId/publish", campaignHandler.Publish)
			campaigns.POST("/:campaignId/email/test", campaignHandler.SendTestEmail)
		}

		billing := apiV1.Group("/billing")
		{
			billing.GET("/plans", billingHandler.ListPlans)
			billing.POST("/checkout", requireAuth, billingHandler.CreateCheckout)
			billing.POST("/checkout/:sessionId/confirm", requireAuth, billingHandler.ConfirmCheckout)
			billing.POST("/portal", requireAuth, billingHandler.CreatePortal)
			billing.POST("/subscription/cancel", requireAuth, billingHandler.CancelSubscription)
			billing.GET("/payments", requireAuth, billingHandler.PaymentHistory)

			// Public: the gateway signs webhook deliveries.
			billing.POST("/webhooks/stripe", billingHandler.HandleStripeWebhook)
		}
	}

	logger.Info("API routes configured under /api/v1, /ping and /health")
	return nil
}
