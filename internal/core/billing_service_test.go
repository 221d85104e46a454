package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artomate-backend/internal/config"
	"artomate-backend/internal/models"
	"artomate-backend/internal/payments"
)

const testWebhookSecret = "whsec_mock"

type billingFixture struct {
	*testEnv
	gateway   *payments.MockGateway
	campaigns CampaignService
	billing   BillingService
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	env := newTestEnv(t)
	f := &billingFixture{testEnv: env, gateway: payments.NewMockGateway(testWebhookSecret)}
	f.campaigns = newCampaignService(env)
	f.billing = NewBillingService(f.gateway, config.DefaultPlans(), env.userSvc, env.users, f.campaigns, env.payments, env.audit,
		BillingURLs{
			CampaignSuccess:     "https://app.example.com/campaign-success",
			CampaignCancel:      "https://app.example.com/campaign-cancel",
			SubscriptionSuccess: "https://app.example.com/subscription-success",
			SubscriptionCancel:  "https://app.example.com/subscription-cancel",
			PortalReturn:        "https://app.example.com/settings",
		}, nil)
	return f
}

func webhookPayload(t *testing.T, eventType string, object map[string]interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":     "evt_test",
		"object": "event",
		"type":   eventType,
		"data":   map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return payload
}

func TestBillingService_PerCampaignCheckout(t *testing.T) {
	f := newBillingFixture(t)
	f.addUser("u1", models.TierFree)
	f.addCampaign("c1", "u1", models.StatusDraft, testBundle(), time.Now())
	ctx := context.Background()

	session, err := f.billing.CreateCheckout(ctx, "u1", models.CheckoutRequest{PlanID: config.PlanPerCampaign, CampaignID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, payments.ModePayment, session.Mode)
	assert.Contains(t, session.URL, "session_id="+session.SessionID)

	stored, err := f.gateway.GetCheckoutSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.Metadata["userId"])
	assert.Equal(t, "c1", stored.Metadata["campaignId"])
	assert.Equal(t, models.ContentMusic, stored.Metadata["campaignType"])
	assert.Equal(t, int64(200), stored.AmountTotal)

	result, err := f.billing.ConfirmCheckout(ctx, "u1", session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, CheckoutPaid, result.Status)
	assert.False(t, result.AlreadyFulfilled)
	require.NotNil(t, result.Campaign)
	assert.Equal(t, models.StatusPublished, result.Campaign.Status)

	published := f.testEnv.campaigns.get("c1")
	assert.True(t, published.Paid)
	assert.Equal(t, models.StatusPublished, published.Status)

	history, err := f.billing.PaymentHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "c1", history[0].CampaignID)
	assert.Equal(t, models.PaymentModeOneTime, history[0].Mode)
	assert.Equal(t, "Pay Per Campaign: Midnight Dreams", history[0].Description)
	assert.Contains(t, f.audits.actions(), models.AuditPaymentCompleted)

	// Confirming twice does not record a second payment.
	again, err := f.billing.ConfirmCheckout(ctx, "u1", session.SessionID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyFulfilled)
	history, err = f.billing.PaymentHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = f.billing.CreateCheckout(ctx, "u1", models.CheckoutRequest{PlanID: config.PlanPerCampaign, CampaignID: "c1"})
	assert.ErrorIs(t, err, ErrCampaignAlreadyPaid)
}

func TestBillingService_CheckoutValidation(t *testing.T) {
	f := newBillingFixture(t)
	f.addUser("u1", models.TierFree)
	f.addUser("pro", models.TierPro)
	ctx := context.Background()

	_, err := f.billing.CreateCheckout(ctx, "u1", models.CheckoutRequest{PlanID: "enterprise"})
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = f.billing.CreateCheckout(ctx, "u1", models.CheckoutRequest{PlanID: config.PlanPerCampaign})
	assert.ErrorIs(t, err, ErrCampaignRequired)

	_, err = f.billing.CreateCheckout(ctx, "u1", models.CheckoutRequest{PlanID: config.PlanPerCampaign, CampaignID: "missing"})
	assert.ErrorIs(t, err, ErrCampaignNotFound)

	_, err = f.billing.CreateCheckout(ctx, "pro", models.CheckoutRequest{PlanID: config.PlanProSubscription})
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
}

func TestBillingService_ConfirmOtherUsersSession(t *testing.T) {
	f := newBillingFixture(t)
	f.addUser("u1", models.TierFree)
	ctx := context.Background()

	session, err := f.billing.CreateCheckout(ctx, "u1", models.CheckoutRequest{PlanID: config.PlanProSubscription})
	require.NoError(t, err)

	_, err = f.billing.ConfirmCheckout(ctx, "intruder", session.SessionID)
	assert.ErrorIs(t, err, ErrCheckoutNotFound)

	_, err = f.billing.ConfirmCheckout(ctx, "u1", "cs_unknown")
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
	assert.Equal(t, models.TierFree, f.users.get("u1").SubscriptionStatus)
}

func TestBillingService_SubscriptionLifecycle(t *testing.T) {
	f := newBillingFixture(t)
	f.addUser("u1", models.TierFree)
	ctx := context.Background()

	session, err := f.billing.CreateCheckout(ctx, "u1", models.CheckoutRequest{PlanID: config.PlanProSubscription})
	require.NoError(t, err)
	assert.Equal(t, payments.ModeSubscription, session.Mode)

	result, err := f.billing.ConfirmCheckout(ctx, "u1", session.SessionID)
	require.NoError(t, err)
	require.NotNil(t, result.User)
	assert.True(t, result.User.IsPro())

	u := f.users.get("u1")
	assert.Equal(t, models.TierPro, u.SubscriptionStatus)
	assert.NotEmpty(t, u.StripeCustomerID)
	assert.NotEmpty(t, u.StripeSubscriptionID)

	portal, err := f.billing.CreatePortal(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/settings", portal)

	cancelled, err := f.billing.CancelSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, cancelled.SubscriptionStatus)
	assert.Empty(t, f.users.get("u1").StripeSubscriptionID)

	_, err = f.billing.CancelSubscription(ctx, "u1")
	assert.ErrorIs(t, err, ErrNoActiveSubscription)
}

func TestBillingService_ConfirmAfterCancelKeepsFreeTier(t *testing.T) {
	f := newBillingFixture(t)
	f.addUser("u1", models.TierFree)
	ctx := context.Background()

	session, err := f.billing.CreateCheckout(ctx, "u1", models.CheckoutRequest{PlanID: config.PlanProSubscription})
	require.NoError(t, err)
	_, err = f.billing.ConfirmCheckout(ctx, "u1", session.SessionID)
	require.NoError(t, err)
	_, err = f.billing.CancelSubscription(ctx, "u1")
	require.NoError(t, err)

	again, err := f.billing.ConfirmCheckout(ctx, "u1", session.SessionID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyFulfilled)
	assert.Equal(t, models.TierFree, f.users.get("u1").SubscriptionStatus)
	assert.Empty(t, f.users.get("u1").StripeSubscriptionID)

	history, err := f.billing.PaymentHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestBillingService_WebhookAfterSubscriptionEnded(t *testing.T) {
	checkout := func(t *testing.T, sessionID string) []byte {
		return webhookPayload(t, payments.EventCheckoutCompleted, map[string]interface{}{
			"id":             sessionID,
			"object":         "checkout.session",
			"mode":           "subscription",
			"status":         "complete",
			"payment_status": "paid",
			"customer":       "cus_123",
			"subscription":   "sub_123",
			"metadata":       map[string]string{"userId": "u1", "planType": config.PlanProSubscription},
		})
	}
	deleted := func(t *testing.T) []byte {
		return webhookPayload(t, payments.EventSubscriptionDeleted, map[string]interface{}{
			"id": "sub_123", "object": "subscription", "customer": "cus_123", "status": "canceled",
		})
	}

	t.Run("redelivery after deletion", func(t *testing.T) {
		f := newBillingFixture(t)
		f.addUser("u1", models.TierFree)
		f.gateway.PutSubscription(payments.Subscription{ID: "sub_123", CustomerID: "cus_123", Status: "active"})
		ctx := context.Background()

		require.NoError(t, f.billing.HandleWebhook(ctx, checkout(t, "cs_1"), testWebhookSecret))
		require.Equal(t, models.TierPro, f.users.get("u1").SubscriptionStatus)

		f.gateway.PutSubscription(payments.Subscription{ID: "sub_123", CustomerID: "cus_123", Status: "canceled"})
		require.NoError(t, f.billing.HandleWebhook(ctx, deleted(t), testWebhookSecret))
		require.NoError(t, f.billing.HandleWebhook(ctx, checkout(t, "cs_1"), testWebhookSecret))
		assert.Equal(t, models.TierFree, f.users.get("u1").SubscriptionStatus)
	})

	t.Run("first delivery after deletion", func(t *testing.T) {
		f := newBillingFixture(t)
		f.addUser("u1", models.TierFree)
		f.gateway.PutSubscription(payments.Subscription{ID: "sub_123", CustomerID: "cus_123", Status: "canceled"})
		ctx := context.Background()

		require.NoError(t, f.billing.HandleWebhook(ctx, checkout(t, "cs_2"), testWebhookSecret))
		assert.Equal(t, models.TierFree, f.users.get("u1").SubscriptionStatus)

		history, err := f.billing.PaymentHistory(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, history, 1, "the charge is still recorded")
	})
}

func TestBillingService_PortalRequiresCustomer(t *testing.T) {
	f := newBillingFixture(t)
	f.addUser("u1", models.TierFree)

	_, err := f.billing.CreatePortal(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrUserStripeNotLinked)
}

func TestBillingService_WebhookCheckoutCompleted(t *testing.T) {
	f := newBillingFixture(t)
	f.addUser("u1", models.TierFree)
	f.gateway.PutSubscription(payments.Subscription{ID: "sub_123", CustomerID: "cus_123", Status: "active"})
	ctx := context.Background()

	payload := webhookPayload(t, payments.EventCheckoutCompleted, map[string]interface{}{
		"id":             "cs_webhook_1",
		"object":         "checkout.session",
		"mode":           "subscription",
		"status":         "complete",
		"payment_status": "paid",
		"amount_total":   1000,
		"currency":       "usd",
		"customer":       "cus_123",
		"subscription":   "sub_123",
		"metadata":       map[string]string{"userId": "u1", "planType": config.PlanProSubscription},
	})

	require.NoError(t, f.billing.HandleWebhook(ctx, payload, testWebhookSecret))
	u := f.users.get("u1")
	assert.Equal(t, models.TierPro, u.SubscriptionStatus)
	assert.Equal(t, "cus_123", u.StripeCustomerID)
	assert.Equal(t, "sub_123", u.StripeSubscriptionID)

	// Redelivery is harmless.
	require.NoError(t, f.billing.HandleWebhook(ctx, payload, testWebhookSecret))
	history, err := f.billing.PaymentHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	err = f.billing.HandleWebhook(ctx, payload, "wrong")
	assert.ErrorIs(t, err, ErrWebhookSignature)
}

func TestBillingService_WebhookSubscriptionSync(t *testing.T) {
	f := newBillingFixture(t)
	u := f.addUser("u1", models.TierPro)
	u.StripeCustomerID = "cus_123"
	u.StripeSubscriptionID = "sub_123"
	f.users.users["u1"] = *u
	ctx := context.Background()

	pastDue := webhookPayload(t, payments.EventSubscriptionUpdated, map[string]interface{}{
		"id": "sub_123", "object": "subscription", "customer": "cus_123", "status": "past_due",
	})
	require.NoError(t, f.billing.HandleWebhook(ctx, pastDue, testWebhookSecret))
	assert.Equal(t, models.TierPro, f.users.get("u1").SubscriptionStatus)

	unpaid := webhookPayload(t, payments.EventSubscriptionUpdated, map[string]interface{}{
		"id": "sub_123", "object": "subscription", "customer": "cus_123", "status": "unpaid",
	})
	require.NoError(t, f.billing.HandleWebhook(ctx, unpaid, testWebhookSecret))
	assert.Equal(t, models.TierFree, f.users.get("u1").SubscriptionStatus)

	reactivated := webhookPayload(t, payments.EventSubscriptionUpdated, map[string]interface{}{
		"id": "sub_123", "object": "subscription", "customer": "cus_123", "status": "active",
		"metadata": map[string]string{"userId": "u1"},
	})
	require.NoError(t, f.billing.HandleWebhook(ctx, reactivated, testWebhookSecret))
	assert.Equal(t, models.TierPro, f.users.get("u1").SubscriptionStatus)

	deleted := webhookPayload(t, payments.EventSubscriptionDeleted, map[string]interface{}{
		"id": "sub_123", "object": "subscription", "customer": "cus_123", "status": "active",
	})
	require.NoError(t, f.billing.HandleWebhook(ctx, deleted, testWebhookSecret))
	assert.Equal(t, models.TierFree, f.users.get("u1").SubscriptionStatus)
	assert.Empty(t, f.users.get("u1").StripeSubscriptionID)

	unknown := webhookPayload(t, payments.EventSubscriptionDeleted, map[string]interface{}{
		"id": "sub_999", "object": "subscription", "customer": "cus_unknown", "status": "canceled",
	})
	assert.NoError(t, f.billing.HandleWebhook(ctx, unknown, testWebhookSecret))

	ignored := webhookPayload(t, "invoice.paid", map[string]interface{}{"id": "in_1", "object": "invoice"})
	assert.NoError(t, f.billing.HandleWebhook(ctx, ignored, testWebhookSecret))
}
