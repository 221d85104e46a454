package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"artomate-backend/internal/aigen"
	"artomate-backend/internal/config"
	"artomate-backend/internal/payments"
	"artomate-backend/pkg/storage"
)

func TestNewGenerator_MockMode(t *testing.T) {
	gen, err := NewGenerator(context.Background(), &config.Config{AIMode: config.ModeMock})
	require.NoError(t, err)
	mock, ok := gen.(*aigen.MockGenerator)
	require.True(t, ok)
	assert.Equal(t, mockStepDelay, mock.Delay)
}

func TestNewAssetStore_Memory(t *testing.T) {
	store, err := NewAssetStore(context.Background(), &config.Config{StorageMode: config.ModeMemory})
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, store)
}

func TestNewPaymentGateway(t *testing.T) {
	gw, err := NewPaymentGateway(&config.Config{PaymentMode: config.ModeMock})
	require.NoError(t, err)
	mock, ok := gw.(*payments.MockGateway)
	require.True(t, ok)

	_, err = mock.ParseWebhook([]byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{}}}`), mockWebhookSecret)
	assert.NoError(t, err)

	gw, err = NewPaymentGateway(&config.Config{PaymentMode: config.ModeStripe, StripeSecretKey: "sk_test", StripeWebhookSecret: "whsec_test"})
	require.NoError(t, err)
	assert.IsType(t, &payments.StripeGateway{}, gw)
}

func TestNewCache_MemoryWithoutRedis(t *testing.T) {
	a := &App{Config: &config.Config{}, Logger: zap.NewNop()}
	c, err := a.newCache(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), "k", "v", 0))
	v, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Empty(t, a.closers)
}

func TestConnectQueue_Disabled(t *testing.T) {
	a := &App{Config: &config.Config{}, Logger: zap.NewNop()}
	require.NoError(t, a.connectQueue())
	assert.Nil(t, a.Queue)
	a.Close()
}
