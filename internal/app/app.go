// Package app builds the dependency graph shared by the API server and the
// generation worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"artomate-backend/internal/aigen"
	"artomate-backend/internal/api"
	"artomate-backend/internal/config"
	"artomate-backend/internal/core"
	"artomate-backend/internal/db"
	"artomate-backend/internal/identity"
	"artomate-backend/internal/media"
	"artomate-backend/internal/payments"
	"artomate-backend/pkg/cache"
	"artomate-backend/pkg/mailer"
	"artomate-backend/pkg/messagequeue"
	"artomate-backend/pkg/storage"
)

// mockStepDelay keeps mock generation slow enough for the client to show each step.
const mockStepDelay = 2 * time.Second

// mockWebhookSecret signs webhooks for the mock gateway when none is configured.
const mockWebhookSecret = "whsec_mock"

// App holds the services and the clients that need closing on shutdown.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Services   api.Services
	AuthClient *auth.Client

	// Queue is nil when RABBITMQ_URL is not set and jobs run in-process.
	Queue messagequeue.MessageQueue

	closers []func() error
}

// Build initialises Firebase and every integration selected by cfg, then wires the services.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := db.InitFirestore(ctx, cfg, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %w", err)
	}
	a := &App{Config: cfg, Logger: logger}
	a.closers = append(a.closers, db.Close)

	fsClient := db.GetFirestoreClient()
	a.AuthClient = db.GetFirebaseAuthClient()
	if fsClient == nil || a.AuthClient == nil {
		return nil, errors.New("firebase clients are nil after initialization")
	}

	userRepo := db.NewFirestoreUserRepository(fsClient)
	auditRepo := db.NewFirestoreAuditRepository(fsClient)
	campaignRepo := db.NewFirestoreCampaignRepository(fsClient)
	paymentRepo := db.NewFirestorePaymentRepository(fsClient)

	store, err := NewAssetStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	progressCache, err := a.newCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	generator, err := NewGenerator(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	assembler, err := media.NewAssembler(media.VideoOptions{
		Width:    cfg.VideoWidth,
		Height:   cfg.VideoHeight,
		FPS:      cfg.VideoFPS,
		Duration: cfg.VideoDuration,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create video assembler: %w", err)
	}
	gateway, err := NewPaymentGateway(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	plans, err := config.LoadPlans(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	idp, err := identity.NewFirebaseProvider(a.AuthClient)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.connectQueue(); err != nil {
		a.Close()
		return nil, err
	}

	var dispatcher core.JobDispatcher
	if a.Queue != nil {
		dispatcher = core.NewQueueDispatcher(a.Queue, cfg.GenerationQueue)
	}

	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		Sender:   cfg.SMTPSender,
	})
	if !mail.Configured() {
		logger.Warn("SMTP is not configured; password reset and test emails are unavailable")
	}

	audit := core.NewAuditService(auditRepo, logger)
	users := core.NewUserService(userRepo, audit, logger)
	notifier := core.NewMailNotifier(mail, logger)
	campaigns := core.NewCampaignService(campaignRepo, users, store, plans, notifier, audit, cfg.AssetURLTTL, logger)

	generation := core.NewGenerationService(campaignRepo, generator, assembler, store, progressCache,
		dispatcher, audit, cfg.GenerationTimeout, logger)
	billing := core.NewBillingService(gateway, plans, users, userRepo, campaigns, paymentRepo, audit, core.BillingURLs{
		CampaignSuccess:     cfg.CampaignSuccessURL,
		CampaignCancel:      cfg.CampaignCancelURL,
		SubscriptionSuccess: cfg.SubscriptionSuccessURL,
		SubscriptionCancel:  cfg.SubscriptionCancelURL,
		PortalReturn:        cfg.PortalReturnURL,
	}, logger)

	a.Services = api.Services{
		Users:      users,
		Auth:       core.NewAuthService(idp, users, notifier, logger),
		Uploads:    core.NewUploadService(campaignRepo, store, audit, cfg.MaxUploadBytes(), logger),
		Generation: generation,
		Campaigns:  campaigns,
		Billing:    billing,
	}

	logger.Info("Services initialized",
		zap.String("aiMode", cfg.AIMode),
		zap.String("paymentMode", cfg.PaymentMode),
		zap.String("storageMode", cfg.StorageMode),
		zap.Bool("queue", a.Queue != nil))
	return a, nil
}

// NewGenerator returns the Gemini generator in live mode and the mock otherwise.
func NewGenerator(ctx context.Context, cfg *config.Config) (aigen.Generator, error) {
	if cfg.AIMode == config.ModeLive {
		gen, err := aigen.NewGeminiGenerator(ctx, aigen.GeminiConfig{
			APIKey:     cfg.GeminiAPIKey,
			TextModel:  cfg.GeminiTextModel,
			ImageModel: cfg.ImagenModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return gen, nil
	}
	return &aigen.MockGenerator{Delay: mockStepDelay}, nil
}

// NewAssetStore returns the S3 store when STORAGE_MODE=s3 and an in-memory store otherwise.
func NewAssetStore(ctx context.Context, cfg *config.Config) (storage.AssetStore, error) {
	if cfg.StorageMode != config.ModeS3 {
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		EndpointURL:     cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 asset store: %w", err)
	}
	return store, nil
}

// NewPaymentGateway returns the Stripe gateway when PAYMENT_MODE=stripe and the mock otherwise.
func NewPaymentGateway(cfg *config.Config) (payments.Gateway, error) {
	if cfg.PaymentMode == config.ModeStripe {
		gw, err := payments.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to create Stripe gateway: %w", err)
		}
		return gw, nil
	}
	secret := cfg.StripeWebhookSecret
	if secret == "" {
		secret = mockWebhookSecret
	}
	return payments.NewMockGateway(secret), nil
}

// newCache connects to Redis when REDIS_ADDR is set. Without it progress
// snapshots are kept in memory, which only works with in-process generation.
func (a *App) newCache(ctx context.Context) (cache.Cache, error) {
	if a.Config.RedisAddr == "" {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(ctx, cache.NewRedisCacheConfig{
		Address:  a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.closers = append(a.closers, rc.Close)
	return rc, nil
}

func (a *App) connectQueue() error {
	if a.Config.RabbitMQURL == "" {
		return nil
	}
	mq, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: a.Config.RabbitMQURL}, a.Logger)
	if err != nil {
		return err
	}
	if a.Config.RedisAddr == "" {
		a.Logger.Warn("RABBITMQ_URL is set without REDIS_ADDR; step progress from workers falls back to campaign status")
	}
	a.Queue = mq
	a.closers = append(a.closers, mq.Close)
	return nil
}

// Close releases every client in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("Failed to close client", zap.Error(err))
		}
	}
	a.closers = nil
}
