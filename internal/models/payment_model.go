package models

import "time"

// Checkout modes.
const (
	PaymentModeOneTime      = "payment"
	PaymentModeSubscription = "subscription"
)

// Payment records a fulfilled checkout. The document ID is the gateway session ID,
// so a session can only be fulfilled once.
type Payment struct {
	SessionID   string    `json:"sessionId" firestore:"-"`
	UserID      string    `json:"userId" firestore:"userId"`
	CampaignID  string    `json:"campaignId,omitempty" firestore:"campaignId,omitempty"`
	PlanID      string    `json:"planId" firestore:"planId"`
	Mode        string    `json:"mode" firestore:"mode"`
	AmountCents int64     `json:"amount" firestore:"amount"`
	Currency    string    `json:"currency" firestore:"currency"`
	Status      string    `json:"status" firestore:"status"`
	Description string    `json:"description" firestore:"description"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}
