package payments

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/stripe/stripe-go/v81"
)

// MockGateway is an in-process gateway. Every checkout session it creates is
// already paid and complete, so redirect confirmation fulfils immediately.
// Webhook payloads use Stripe's event JSON shape and are accepted only when
// the signature header equals the configured secret.
type MockGateway struct {
	mu            sync.Mutex
	seq           int
	sessions      map[string]*Session
	subscriptions map[string]*Subscription
	secret        string
}

// NewMockGateway returns a mock gateway that accepts webhooks signed with secret.
func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{
		sessions:      make(map[string]*Session),
		subscriptions: make(map[string]*Subscription),
		secret:        secret,
	}
}

func (m *MockGateway) CreateCheckoutSession(_ context.Context, p CheckoutParams) (*Session, error) {
	if p.Mode != ModePayment && p.Mode != ModeSubscription {
		return nil, fmt.Errorf("mock: unsupported checkout mode %q", p.Mode)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	id := fmt.Sprintf("mock_%s_session_%d", p.Mode, m.seq)
	s := &Session{
		ID:          id,
		URL:         withSessionID(p.SuccessURL, id),
		Mode:        p.Mode,
		Paid:        true,
		Complete:    true,
		CustomerID:  p.CustomerID,
		AmountTotal: p.AmountCents,
		Currency:    p.Currency,
		Metadata:    copyMetadata(p.Metadata),
	}
	if s.CustomerID == "" {
		s.CustomerID = fmt.Sprintf("mock_customer_%d", m.seq)
	}
	if p.Mode == ModeSubscription {
		s.SubscriptionID = fmt.Sprintf("mock_subscription_%d", m.seq)
		m.subscriptions[s.SubscriptionID] = &Subscription{
			ID:         s.SubscriptionID,
			CustomerID: s.CustomerID,
			Status:     "active",
			Metadata:   copyMetadata(p.Metadata),
		}
	}
	m.sessions[id] = s

	out := *s
	return &out, nil
}

func (m *MockGateway) GetCheckoutSession(_ context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
	}
	out := *s
	return &out, nil
}

func (m *MockGateway) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	if customerID == "" {
		return "", fmt.Errorf("mock: customer id is required")
	}
	return returnURL, nil
}

func (m *MockGateway) GetSubscription(_ context.Context, subscriptionID string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", subscriptionID, ErrSubscriptionNotFound)
	}
	out := *sub
	out.Metadata = copyMetadata(sub.Metadata)
	return &out, nil
}

// PutSubscription registers or replaces a subscription, for sessions that
// arrive by webhook rather than through CreateCheckoutSession.
func (m *MockGateway) PutSubscription(sub Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub.Metadata = copyMetadata(sub.Metadata)
	m.subscriptions[sub.ID] = &sub
}

func (m *MockGateway) CancelSubscription(_ context.Context, subscriptionID string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		sub = &Subscription{ID: subscriptionID}
		m.subscriptions[subscriptionID] = sub
	}
	sub.Status = "canceled"
	out := *sub
	return &out, nil
}

func (m *MockGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if m.secret == "" || subtle.ConstantTimeCompare([]byte(signature), []byte(m.secret)) != 1 {
		return nil, ErrInvalidSignature
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	return eventFromStripe(event)
}

func withSessionID(rawURL, sessionID string) string {
	u, err := url.Parse(rawURL)
	if err != nil || rawURL == "" {
		return rawURL
	}
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String()
}

func copyMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
