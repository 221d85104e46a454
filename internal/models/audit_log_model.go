package models

import "time"

// Audit actions.
const (
	AuditUserCreated              = "USER_CREATED"
	AuditCampaignCreated          = "CAMPAIGN_CREATED"
	AuditCampaignGenerated        = "CAMPAIGN_GENERATED"
	AuditCampaignGenerationFailed = "CAMPAIGN_GENERATION_FAILED"
	AuditCampaignDraftSaved       = "CAMPAIGN_DRAFT_SAVED"
	AuditCampaignPublished        = "CAMPAIGN_PUBLISHED"
	AuditCampaignDeleted          = "CAMPAIGN_DELETED"
	AuditCheckoutStarted          = "CHECKOUT_STARTED"
	AuditPaymentCompleted         = "PAYMENT_COMPLETED"
	AuditSubscriptionChanged      = "SUBSCRIPTION_CHANGED"
)

// Audit target types.
const (
	TargetUser     = "USER"
	TargetCampaign = "CAMPAIGN"
	TargetPayment  = "PAYMENT"
)

// AuditLog represents an audit trail event.
type AuditLog struct {
	ID         string                 `json:"id" firestore:"-"`
	Timestamp  time.Time              `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	UserID     string                 `json:"userId" firestore:"userId"`                                 // Who performed the action
	Action     string                 `json:"action" firestore:"action"`                                 // One of the Audit* constants
	TargetType string                 `json:"targetType,omitempty" firestore:"targetType,omitempty"`     // e.g., "CAMPAIGN", "PAYMENT"
	TargetID   string                 `json:"targetId,omitempty" firestore:"targetId,omitempty"`         // ID of the affected entity
	Details    map[string]interface{} `json:"details,omitempty" firestore:"details,omitempty"`
}
