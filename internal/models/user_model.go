package models

import "time"

// Subscription tiers.
const (
	TierFree = "free"
	TierPro  = "pro"
)

// User represents a creator profile, stored at users/{uid}.
type User struct {
	ID                   string                  `json:"uid" firestore:"-"` // Firebase Auth UID, also the document ID
	Email                string                  `json:"email" firestore:"email"`
	DisplayName          string                  `json:"displayName" firestore:"displayName"`
	PhotoURL             string                  `json:"photoURL" firestore:"photoURL"`
	SubscriptionStatus   string                  `json:"subscriptionStatus" firestore:"subscriptionStatus"` // TierFree or TierPro
	Bio                  string                  `json:"bio,omitempty" firestore:"bio,omitempty"`
	Website              string                  `json:"website,omitempty" firestore:"website,omitempty"`
	Notifications        NotificationPreferences `json:"notifications" firestore:"notifications"`
	StripeCustomerID     string                  `json:"stripeCustomerId,omitempty" firestore:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string                  `json:"stripeSubscriptionId,omitempty" firestore:"stripeSubscriptionId,omitempty"`
	CreatedAt            time.Time               `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt            time.Time               `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// IsPro reports whether the profile can publish without per-campaign payment.
func (u *User) IsPro() bool {
	return u != nil && u.SubscriptionStatus == TierPro
}

// NotificationPreferences are the per-user email toggles.
type NotificationPreferences struct {
	CampaignUpdates bool `json:"campaignUpdates" firestore:"campaignUpdates"`
	MarketingTips   bool `json:"marketingTips" firestore:"marketingTips"`
	ProductUpdates  bool `json:"productUpdates" firestore:"productUpdates"`
}

// DefaultNotificationPreferences is what a freshly bootstrapped profile gets.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		CampaignUpdates: true,
		MarketingTips:   false,
		ProductUpdates:  true,
	}
}
