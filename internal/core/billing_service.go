package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"artomate-backend/internal/config"
	"artomate-backend/internal/db"
	"artomate-backend/internal/models"
	"artomate-backend/internal/payments"
)

// Errors for billing operations.
var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrCampaignRequired     = errors.New("campaign is required for a per-campaign purchase")
	ErrCampaignAlreadyPaid  = errors.New("campaign is already paid for")
	ErrAlreadySubscribed    = errors.New("user already has an active subscription")
	ErrCheckoutNotFound     = errors.New("checkout session not found")
	ErrWebhookSignature     = errors.New("webhook signature verification failed")
	ErrUserStripeNotLinked  = errors.New("user does not have a billing customer")
	ErrNoActiveSubscription = errors.New("user has no active subscription")
	ErrPaymentGateway       = errors.New("payment gateway operation failed")
)

const (
	paymentHistoryLimit = 50
	checkoutPlaceholder = "session_id={CHECKOUT_SESSION_ID}"
)

// Checkout result statuses.
const (
	CheckoutPaid    = "paid"
	CheckoutPending = "pending"
)

// BillingURLs are the redirect targets handed to the gateway.
type BillingURLs struct {
	CampaignSuccess     string
	CampaignCancel      string
	SubscriptionSuccess string
	SubscriptionCancel  string
	PortalReturn        string
}

// CheckoutSession is returned to the client so it can redirect to the hosted page.
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	PlanID    string `json:"planId"`
	Mode      string `json:"mode"`
}

// CheckoutResult reports what confirming a checkout did.
type CheckoutResult struct {
	SessionID        string           `json:"sessionId"`
	Status           string           `json:"status"`
	PlanID           string           `json:"planId,omitempty"`
	AlreadyFulfilled bool             `json:"alreadyFulfilled"`
	Campaign         *models.Campaign `json:"campaign,omitempty"`
	User             *models.User     `json:"user,omitempty"`
}

type billingService struct {
	gateway     payments.Gateway
	plans       *config.PlanCatalog
	users       UserService
	userRepo    db.UserRepository
	campaigns   CampaignService
	paymentRepo db.PaymentRepository
	audit       AuditService
	urls        BillingURLs
	logger      *zap.Logger
	now         func() time.Time
}

// NewBillingService creates the billing service around a payment gateway.
func NewBillingService(
	gateway payments.Gateway,
	plans *config.PlanCatalog,
	users UserService,
	userRepo db.UserRepository,
	campaigns CampaignService,
	paymentRepo db.PaymentRepository,
	audit AuditService,
	urls BillingURLs,
	logger *zap.Logger,
) BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if plans == nil {
		plans = config.DefaultPlans()
	}
	return &billingService{
		gateway:     gateway,
		plans:       plans,
		users:       users,
		userRepo:    userRepo,
		campaigns:   campaigns,
		paymentRepo: paymentRepo,
		audit:       audit,
		urls:        urls,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *billingService) Plans() []config.Plan {
	return s.plans.Plans
}

func (s *billingService) CreateCheckout(ctx context.Context, userID string, req models.CheckoutRequest) (*CheckoutSession, error) {
	plan, ok := s.plans.Find(req.PlanID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPlanNotFound, req.PlanID)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	params := payments.CheckoutParams{
		PriceID:           plan.PriceID,
		ProductName:       plan.Name,
		Description:       plan.Description,
		AmountCents:       plan.AmountCents,
		Currency:          plan.Currency,
		Interval:          plan.Interval,
		CustomerEmail:     user.Email,
		CustomerID:        user.StripeCustomerID,
		ClientReferenceID: userID,
		Metadata: map[string]string{
			"userId":   userID,
			"planType": plan.ID,
		},
	}

	if plan.IsSubscription() {
		if user.IsPro() {
			return nil, ErrAlreadySubscribed
		}
		params.Mode = payments.ModeSubscription
		params.SuccessURL = withCheckoutPlaceholder(s.urls.SubscriptionSuccess)
		params.CancelURL = s.urls.SubscriptionCancel
	} else {
		if strings.TrimSpace(req.CampaignID) == "" {
			return nil, ErrCampaignRequired
		}
		campaign, err := s.campaigns.Get(ctx, userID, req.CampaignID)
		if err != nil {
			return nil, err
		}
		if campaign.Paid || campaign.Status == models.StatusPublished {
			return nil, fmt.Errorf("%w: %s", ErrCampaignAlreadyPaid, campaign.ID)
		}
		params.Mode = payments.ModePayment
		params.SuccessURL = withCheckoutPlaceholder(s.urls.CampaignSuccess)
		params.CancelURL = s.urls.CampaignCancel
		params.Metadata["campaignId"] = campaign.ID
		params.Metadata["campaignType"] = campaign.ContentType
		params.Metadata["campaignTheme"] = campaign.Theme
		params.Description = fmt.Sprintf("Publish \"%s\"", campaign.Title)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	s.logger.Info("Checkout session created",
		zap.String("userID", userID),
		zap.String("planID", plan.ID),
		zap.String("sessionID", session.ID))
	if s.audit != nil {
		s.audit.Record(ctx, userID, models.AuditCheckoutStarted, models.TargetPayment, session.ID,
			map[string]interface{}{"planId": plan.ID, "campaignId": req.CampaignID})
	}
	return &CheckoutSession{SessionID: session.ID, URL: session.URL, PlanID: plan.ID, Mode: params.Mode}, nil
}

func withCheckoutPlaceholder(u string) string {
	if u == "" || strings.Contains(u, "{CHECKOUT_SESSION_ID}") {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + checkoutPlaceholder
}

// ConfirmCheckout is called after the gateway redirects back to the success page.
func (s *billingService) ConfirmCheckout(ctx context.Context, userID, sessionID string) (*CheckoutResult, error) {
	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payments.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCheckoutNotFound, sessionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	if session.Metadata["userId"] != userID {
		return nil, fmt.Errorf("%w: %s", ErrCheckoutNotFound, sessionID)
	}
	if !sessionSettled(session) {
		return &CheckoutResult{SessionID: sessionID, Status: CheckoutPending, PlanID: session.Metadata["planType"]}, nil
	}
	return s.fulfill(ctx, session)
}

// sessionSettled reports whether a session can be fulfilled. Subscription
// sessions may complete without a charge, for example during a trial.
func sessionSettled(s *payments.Session) bool {
	return s.Paid || (s.Complete && s.Mode == payments.ModeSubscription)
}

// fulfill applies a settled session once. The payment document keyed by
// session ID is checked first, so a replayed confirmation or a redelivered
// webhook cannot re-apply a purchase the user has since undone.
func (s *billingService) fulfill(ctx context.Context, session *payments.Session) (*CheckoutResult, error) {
	userID := session.Metadata["userId"]
	planID := session.Metadata["planType"]
	plan, ok := s.plans.Find(planID)
	if !ok || userID == "" {
		return nil, fmt.Errorf("%w: session %s carries plan %q for user %q", ErrPlanNotFound, session.ID, planID, userID)
	}

	result := &CheckoutResult{SessionID: session.ID, Status: CheckoutPaid, PlanID: plan.ID}
	if _, err := s.paymentRepo.Get(ctx, session.ID); err == nil {
		result.AlreadyFulfilled = true
		return result, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up payment for session '%s': %w", session.ID, err)
	}

	payment := &models.Payment{
		SessionID:   session.ID,
		UserID:      userID,
		PlanID:      plan.ID,
		AmountCents: session.AmountTotal,
		Currency:    session.Currency,
		Status:      CheckoutPaid,
		Description: plan.Name,
		CreatedAt:   s.now(),
	}
	if payment.AmountCents == 0 {
		payment.AmountCents = plan.AmountCents
	}
	if payment.Currency == "" {
		payment.Currency = plan.Currency
	}

	if plan.IsSubscription() {
		payment.Mode = models.PaymentModeSubscription
		user, err := s.activateSubscription(ctx, userID, session)
		if err != nil {
			return nil, err
		}
		result.User = user
	} else {
		campaignID := session.Metadata["campaignId"]
		payment.Mode = models.PaymentModeOneTime
		payment.CampaignID = campaignID
		if theme := session.Metadata["campaignTheme"]; theme != "" {
			payment.Description = fmt.Sprintf("%s: %s", plan.Name, theme)
		}
		campaign, err := s.campaigns.MarkPaidAndPublish(ctx, userID, campaignID)
		if err != nil {
			return nil, fmt.Errorf("failed to fulfil campaign '%s': %w", campaignID, err)
		}
		result.Campaign = campaign
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			result.AlreadyFulfilled = true
			return result, nil
		}
		return nil, fmt.Errorf("failed to record payment for session '%s': %w", session.ID, err)
	}

	s.logger.Info("Checkout fulfilled",
		zap.String("userID", userID),
		zap.String("planID", plan.ID),
		zap.String("sessionID", session.ID))
	if s.audit != nil {
		s.audit.Record(ctx, userID, models.AuditPaymentCompleted, models.TargetPayment, session.ID,
			map[string]interface{}{"planId": plan.ID, "amount": payment.AmountCents, "campaignId": payment.CampaignID})
	}
	return result, nil
}

// activateSubscription grants the pro tier only while the gateway still
// reports the session's subscription as entitling.
func (s *billingService) activateSubscription(ctx context.Context, userID string, session *payments.Session) (*models.User, error) {
	if session.SubscriptionID == "" {
		return nil, fmt.Errorf("%w: session %s has no subscription", ErrPaymentGateway, session.ID)
	}
	sub, err := s.gateway.GetSubscription(ctx, session.SubscriptionID)
	if err != nil && !errors.Is(err, payments.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	if sub == nil || !payments.IsEntitlingStatus(sub.Status) {
		status := "missing"
		if sub != nil {
			status = sub.Status
		}
		s.logger.Warn("Subscription no longer entitles pro, recording payment only",
			zap.String("userID", userID),
			zap.String("subscriptionID", session.SubscriptionID),
			zap.String("status", status))
		return s.users.GetByID(ctx, userID)
	}

	user, err := s.users.SetSubscription(ctx, userID, models.TierPro, session.CustomerID, session.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to activate subscription for user '%s': %w", userID, err)
	}
	return user, nil
}

func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return fmt.Errorf("%w: %v", ErrWebhookSignature, err)
		}
		return err
	}

	switch event.Type {
	case payments.EventCheckoutCompleted:
		if event.Session == nil {
			return fmt.Errorf("event %s has no checkout session", event.ID)
		}
		if !sessionSettled(event.Session) {
			s.logger.Info("Checkout completed without payment yet", zap.String("sessionID", event.Session.ID))
			return nil
		}
		_, err := s.fulfill(ctx, event.Session)
		return err

	case payments.EventSubscriptionUpdated, payments.EventSubscriptionDeleted:
		if event.Subscription == nil {
			return fmt.Errorf("event %s has no subscription", event.ID)
		}
		return s.syncSubscription(ctx, event.Type, event.Subscription)

	default:
		s.logger.Debug("Ignoring webhook event", zap.String("type", event.Type), zap.String("eventID", event.ID))
		return nil
	}
}

func (s *billingService) syncSubscription(ctx context.Context, eventType string, sub *payments.Subscription) error {
	userID := sub.Metadata["userId"]
	if userID == "" {
		if sub.CustomerID == "" {
			return fmt.Errorf("subscription %s has neither user metadata nor customer", sub.ID)
		}
		user, err := s.userRepo.FindByStripeCustomerID(ctx, sub.CustomerID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				s.logger.Warn("Subscription event for unknown customer", zap.String("customerID", sub.CustomerID))
				return nil
			}
			return err
		}
		userID = user.ID
	}

	tier := models.TierFree
	if eventType != payments.EventSubscriptionDeleted && payments.IsEntitlingStatus(sub.Status) {
		tier = models.TierPro
	}
	subscriptionID := sub.ID
	if tier == models.TierFree {
		subscriptionID = ""
	}
	if _, err := s.users.SetSubscription(ctx, userID, tier, sub.CustomerID, subscriptionID); err != nil {
		return fmt.Errorf("failed to sync subscription %s: %w", sub.ID, err)
	}
	s.logger.Info("Subscription synced",
		zap.String("userID", userID),
		zap.String("status", sub.Status),
		zap.String("tier", tier))
	return nil
}

func (s *billingService) CreatePortal(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID == "" {
		return "", ErrUserStripeNotLinked
	}
	url, err := s.gateway.CreatePortalSession(ctx, user.StripeCustomerID, s.urls.PortalReturn)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	return url, nil
}

func (s *billingService) CancelSubscription(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.StripeSubscriptionID == "" {
		return nil, ErrNoActiveSubscription
	}
	if _, err := s.gateway.CancelSubscription(ctx, user.StripeSubscriptionID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	return s.users.SetSubscription(ctx, userID, models.TierFree, "", "")
}

func (s *billingService) PaymentHistory(ctx context.Context, userID string) ([]*models.Payment, error) {
	list, err := s.paymentRepo.ListByUser(ctx, userID, paymentHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for user '%s': %w", userID, err)
	}
	if list == nil {
		list = []*models.Payment{}
	}
	return list, nil
}
