package db

import (
	"context"

	"artomate-backend/internal/models"
)

// UserRepository defines the interface for user profile storage operations.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	// FindByStripeCustomerID resolves subscription webhooks back to a profile.
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
}

// CampaignListOptions narrows a campaign listing.
type CampaignListOptions struct {
	Status string // empty or "all" means every status
	Limit  int
}

// CampaignRepository stores campaigns under their owner's profile.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) (string, error) // Returns new campaign ID
	GetByID(ctx context.Context, ownerID, campaignID string) (*models.Campaign, error)
	ListByOwner(ctx context.Context, ownerID string, opts CampaignListOptions) ([]*models.Campaign, error)
	// Update fails with ErrNotFound when the campaign no longer exists.
	Update(ctx context.Context, campaign *models.Campaign) error
	// Transition is an atomic read-modify-write; fn may reject the change by returning an error.
	Transition(ctx context.Context, ownerID, campaignID string, fn func(*models.Campaign) error) (*models.Campaign, error)
	Delete(ctx context.Context, ownerID, campaignID string) error
}

// PaymentRepository stores fulfilled checkouts keyed by session ID.
type PaymentRepository interface {
	// Create fails with ErrAlreadyExists when the session was already recorded.
	Create(ctx context.Context, payment *models.Payment) error
	// Get returns ErrNotFound when the session has not been fulfilled.
	Get(ctx context.Context, sessionID string) (*models.Payment, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Payment, error)
}

// AuditRepository defines the interface for audit log data storage operations.
type AuditRepository interface {
	Create(ctx context.Context, logEntry models.AuditLog) error
}
