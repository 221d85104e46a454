package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Modes for the pluggable integrations.
const (
	ModeLive   = "live"
	ModeMock   = "mock"
	ModeStripe = "stripe"
	ModeS3     = "s3"
	ModeMemory = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string `mapstructure:"PORT"`
	GinMode                          string `mapstructure:"GIN_MODE"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	ClientURL                        string `mapstructure:"CLIENT_URL"`

	// Generative content
	AIMode          string `mapstructure:"AI_MODE"`
	GeminiAPIKey    string `mapstructure:"GEMINI_API_KEY"`
	GeminiTextModel string `mapstructure:"GEMINI_TEXT_MODEL"`
	ImagenModel     string `mapstructure:"IMAGEN_MODEL"`

	// Generation pipeline
	GenerationTimeout time.Duration `mapstructure:"GENERATION_TIMEOUT"`
	GenerationQueue   string        `mapstructure:"GENERATION_QUEUE"`
	VideoWidth        int           `mapstructure:"VIDEO_WIDTH"`
	VideoHeight       int           `mapstructure:"VIDEO_HEIGHT"`
	VideoFPS          int           `mapstructure:"VIDEO_FPS"`
	VideoDuration     time.Duration `mapstructure:"VIDEO_DURATION"`
	MaxUploadMB       int64         `mapstructure:"MAX_UPLOAD_MB"`

	// Payments
	PaymentMode                string `mapstructure:"PAYMENT_MODE"`
	StripeSecretKey            string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret        string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripePricePerCampaign     string `mapstructure:"STRIPE_PRICE_PER_CAMPAIGN"`
	StripePriceProSubscription string `mapstructure:"STRIPE_PRICE_PRO_SUBSCRIPTION"`
	CampaignSuccessURL         string `mapstructure:"CAMPAIGN_SUCCESS_URL"`
	CampaignCancelURL          string `mapstructure:"CAMPAIGN_CANCEL_URL"`
	SubscriptionSuccessURL     string `mapstructure:"SUBSCRIPTION_SUCCESS_URL"`
	SubscriptionCancelURL      string `mapstructure:"SUBSCRIPTION_CANCEL_URL"`
	PortalReturnURL            string `mapstructure:"PORTAL_RETURN_URL"`
	PlansFile                  string `mapstructure:"PLANS_FILE"`

	// Infrastructure
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RabbitMQURL   string `mapstructure:"RABBITMQ_URL"`

	StorageMode       string        `mapstructure:"STORAGE_MODE"`
	S3Bucket          string        `mapstructure:"S3_BUCKET"`
	S3Region          string        `mapstructure:"S3_REGION"`
	S3Endpoint        string        `mapstructure:"S3_ENDPOINT"`
	S3AccessKeyID     string        `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `mapstructure:"S3_SECRET_ACCESS_KEY"`
	AssetURLTTL       time.Duration `mapstructure:"ASSET_URL_TTL"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     string `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPSender   string `mapstructure:"SMTP_SENDER"`
}

var appConfig *Config

var defaults = map[string]interface{}{
	"PORT":                     "8080",
	"GIN_MODE":                 "debug",
	"AI_MODE":                  ModeMock,
	"GEMINI_TEXT_MODEL":        "gemini-2.0-flash",
	"IMAGEN_MODEL":             "imagen-3.0-generate-002",
	"GENERATION_TIMEOUT":       "5m",
	"GENERATION_QUEUE":         "artomate.generation",
	"VIDEO_WIDTH":              270,
	"VIDEO_HEIGHT":             480,
	"VIDEO_FPS":                8,
	"VIDEO_DURATION":           "15s",
	"MAX_UPLOAD_MB":            100,
	"PAYMENT_MODE":             ModeMock,
	"CAMPAIGN_SUCCESS_URL":     "https://univesst.cloud/campaign-success",
	"CAMPAIGN_CANCEL_URL":      "https://univesst.cloud/campaign-cancel",
	"SUBSCRIPTION_SUCCESS_URL": "https://univesst.cloud/subscription-success",
	"SUBSCRIPTION_CANCEL_URL":  "https://univesst.cloud/subscription-cancel",
	"REDIS_DB":                 0,
	"STORAGE_MODE":             ModeMemory,
	"S3_REGION":                "us-east-1",
	"ASSET_URL_TTL":            "1h",
	"SMTP_PORT":                "587",
}

// LoadConfig loads configuration from environment variables using Viper.
// Outside release mode a local .env file is loaded first when present.
func LoadConfig() (*Config, error) {
	if !strings.EqualFold(os.Getenv("GIN_MODE"), "release") {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range envKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfig = &cfg
	return appConfig, nil
}

func (c *Config) normalize() {
	c.AIMode = strings.ToLower(strings.TrimSpace(c.AIMode))
	c.PaymentMode = strings.ToLower(strings.TrimSpace(c.PaymentMode))
	c.StorageMode = strings.ToLower(strings.TrimSpace(c.StorageMode))
	if c.PortalReturnURL == "" {
		c.PortalReturnURL = c.ClientURL
	}
}

// Validate checks required fields. What is required depends on the selected modes.
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}

	switch c.AIMode {
	case ModeMock:
	case ModeLive:
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required when AI_MODE=live")
		}
	default:
		return fmt.Errorf("AI_MODE must be %q or %q, got %q", ModeLive, ModeMock, c.AIMode)
	}

	switch c.PaymentMode {
	case ModeMock:
	case ModeStripe:
		if c.StripeSecretKey == "" {
			return errors.New("STRIPE_SECRET_KEY is required when PAYMENT_MODE=stripe")
		}
		if c.StripeWebhookSecret == "" {
			return errors.New("STRIPE_WEBHOOK_SECRET is required when PAYMENT_MODE=stripe")
		}
	default:
		return fmt.Errorf("PAYMENT_MODE must be %q or %q, got %q", ModeStripe, ModeMock, c.PaymentMode)
	}

	switch c.StorageMode {
	case ModeMemory:
	case ModeS3:
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when STORAGE_MODE=s3")
		}
	default:
		return fmt.Errorf("STORAGE_MODE must be %q or %q, got %q", ModeS3, ModeMemory, c.StorageMode)
	}
	// Workers run in another process and cannot see an in-memory store.
	if c.RabbitMQURL != "" && c.StorageMode != ModeS3 {
		return errors.New("STORAGE_MODE=s3 is required when RABBITMQ_URL is set")
	}

	if c.VideoWidth <= 0 || c.VideoHeight <= 0 || c.VideoFPS <= 0 || c.VideoDuration <= 0 {
		return errors.New("VIDEO_WIDTH, VIDEO_HEIGHT, VIDEO_FPS and VIDEO_DURATION must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// IsRelease reports whether gin should run in release mode.
func (c *Config) IsRelease() bool {
	return strings.EqualFold(c.GinMode, "release")
}

// GetConfig returns the loaded application configuration.
// It will panic if LoadConfig has not been called successfully.
func GetConfig() *Config {
	if appConfig == nil {
		panic("config not loaded; call LoadConfig first")
	}
	return appConfig
}

func envKeys() []string {
	return []string{
		"PORT", "GIN_MODE", "FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS",
		"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64", "CLIENT_URL",
		"AI_MODE", "GEMINI_API_KEY", "GEMINI_TEXT_MODEL", "IMAGEN_MODEL",
		"GENERATION_TIMEOUT", "GENERATION_QUEUE", "VIDEO_WIDTH", "VIDEO_HEIGHT", "VIDEO_FPS",
		"VIDEO_DURATION", "MAX_UPLOAD_MB",
		"PAYMENT_MODE", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "STRIPE_PRICE_PER_CAMPAIGN",
		"STRIPE_PRICE_PRO_SUBSCRIPTION", "CAMPAIGN_SUCCESS_URL", "CAMPAIGN_CANCEL_URL",
		"SUBSCRIPTION_SUCCESS_URL", "SUBSCRIPTION_CANCEL_URL", "PORTAL_RETURN_URL", "PLANS_FILE",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "RABBITMQ_URL",
		"STORAGE_MODE", "S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_ACCESS_KEY_ID",
		"S3_SECRET_ACCESS_KEY", "ASSET_URL_TTL",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_SENDER",
	}
}
