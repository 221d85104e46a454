package core

import (
	"context"

	"artomate-backend/internal/config"
	"artomate-backend/internal/models"
)

// UserService defines the interface for creator profile operations.
type UserService interface {
	// GetOrCreate retrieves a user by ID. If the user doesn't exist, it creates a new one with default values.
	GetOrCreate(ctx context.Context, userID, email, displayName, photoURL string) (*models.User, bool, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error)
	UpdateNotifications(ctx context.Context, userID string, req models.UpdateNotificationsRequest) (*models.User, error)
	// SetSubscription is called by billing fulfillment and subscription webhooks.
	SetSubscription(ctx context.Context, userID, tier, customerID, subscriptionID string) (*models.User, error)
}

// AuthService covers the account operations the server performs on behalf of the client SDK.
type AuthService interface {
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.User, error)
	SendPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context, userID string) error
}

// UploadService validates wizard step one and turns an upload into a draft campaign.
type UploadService interface {
	ContentTypes() []models.ContentTypeInfo
	AcceptedExtensions(contentType string) []string
	// Validate normalises req in place and rejects incomplete or mismatched uploads.
	Validate(req *models.UploadRequest) error
	Upload(ctx context.Context, userID string, req models.UploadRequest) (*models.Campaign, error)
}

// GenerationService runs the text, image and video pipeline for a campaign.
type GenerationService interface {
	Start(ctx context.Context, userID, campaignID string) (*models.GenerationProgress, error)
	Retry(ctx context.Context, userID, campaignID string) (*models.GenerationProgress, error)
	Progress(ctx context.Context, userID, campaignID string) (*models.GenerationProgress, error)
	// Run executes one job to completion. Failures are recorded on the campaign and returned.
	Run(ctx context.Context, job models.GenerationJob) error
	// Shutdown waits for in-process jobs to finish or ctx to expire.
	Shutdown(ctx context.Context) error
}

// CampaignService covers review, publish and the campaign pages.
type CampaignService interface {
	List(ctx context.Context, userID, status string) ([]*models.Campaign, error)
	Get(ctx context.Context, userID, campaignID string) (*models.Campaign, error)
	UpdateTitle(ctx context.Context, userID, campaignID string, req models.UpdateCampaignRequest) (*models.Campaign, error)
	Delete(ctx context.Context, userID, campaignID string) error
	Preview(ctx context.Context, userID, campaignID string) (*CampaignPreview, error)
	SelectCaption(ctx context.Context, userID, campaignID, variant string) (*CampaignPreview, error)
	SaveDraft(ctx context.Context, userID, campaignID string) (*models.Campaign, error)
	Publish(ctx context.Context, userID, campaignID string) (*models.Campaign, error)
	// MarkPaidAndPublish is used by per-campaign checkout fulfillment.
	MarkPaidAndPublish(ctx context.Context, userID, campaignID string) (*models.Campaign, error)
	Dashboard(ctx context.Context, userID string) (*models.DashboardStats, error)
	SendTestEmail(ctx context.Context, userID, campaignID string) error
}

// BillingService handles plans, checkout and subscription state.
type BillingService interface {
	Plans() []config.Plan
	CreateCheckout(ctx context.Context, userID string, req models.CheckoutRequest) (*CheckoutSession, error)
	ConfirmCheckout(ctx context.Context, userID, sessionID string) (*CheckoutResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	CreatePortal(ctx context.Context, userID string) (string, error)
	CancelSubscription(ctx context.Context, userID string) (*models.User, error)
	PaymentHistory(ctx context.Context, userID string) ([]*models.Payment, error)
}

// AuditService defines the interface for audit logging operations.
type AuditService interface {
	CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error
	// Record writes an entry and only logs failures.
	Record(ctx context.Context, userID, action, targetType, targetID string, details map[string]interface{})
}

// Notifier sends transactional email.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, link string) error
	SendCampaignEmail(ctx context.Context, to string, email models.EmailCopy, campaignTitle string) error
}

// IdentityProvider manages accounts in the hosted identity service.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email, password, displayName string) (string, error)
	PasswordResetLink(ctx context.Context, email string) (string, error)
	RevokeSessions(ctx context.Context, uid string) error
}

// JobDispatcher hands a generation job to whatever executes it.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job models.GenerationJob) error
}

// JobRunner executes a generation job.
type JobRunner interface {
	Run(ctx context.Context, job models.GenerationJob) error
}
