// Package payments talks to the payment gateway: hosted checkout, the billing
// portal, subscription cancellation and webhook verification.
package payments

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidSignature is returned when a webhook payload fails verification.
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	// ErrSessionNotFound is returned when the gateway has no such checkout session.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrSubscriptionNotFound is returned when the gateway has no such subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Checkout modes.
const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"
)

// Webhook event types handled by billing.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// CheckoutParams describes a hosted checkout session to create.
type CheckoutParams struct {
	Mode              string
	PriceID           string // gateway price; when empty the inline amount below is used
	ProductName       string
	Description       string
	AmountCents       int64
	Currency          string
	Interval          string // subscriptions only
	CustomerEmail     string
	CustomerID        string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
}

// Session is the gateway's view of a checkout session.
type Session struct {
	ID             string
	URL            string
	Mode           string
	Paid           bool
	Complete       bool
	CustomerID     string
	SubscriptionID string
	AmountTotal    int64
	Currency       string
	Metadata       map[string]string
}

// Subscription is the gateway's view of a recurring subscription.
type Subscription struct {
	ID         string
	CustomerID string
	Status     string
	Metadata   map[string]string
}

// Event is a verified webhook event.
type Event struct {
	ID           string
	Type         string
	Session      *Session
	Subscription *Subscription
}

// Gateway is implemented by the Stripe client and the mock.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*Session, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// IsEntitlingStatus reports whether a subscription status still grants the paid tier.
func IsEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing", "past_due":
		return true
	default:
		return false
	}
}
