// Package config loads settings from the environment, with an optional
// .env file for development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/homekeep/internal/billing"
	"github.com/dukerupert/homekeep/internal/documents"
	"github.com/dukerupert/homekeep/internal/ocr"
	"github.com/dukerupert/homekeep/internal/push"
)

const prefix = "HOMEKEEP_"

// ErrMissingSecret is returned by Validate when no JWT secret is set.
var ErrMissingSecret = errors.New("HOMEKEEP_JWT_SECRET is required")

type Config struct {
	Port         string
	DBPath       string
	LogLevel     string
	LogFormat    string
	StoreTimeout time.Duration
	BaseURL      string
	// AllowedOrigins are host patterns accepted on /ws besides same origin.
	AllowedOrigins []string

	JWTSecret string
	JWTIssuer string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	OCRURL    string
	OCRAPIKey string

	StripeSecretKey     string
	StripePriceID       string
	StripeWebhookSecret string
}

// Load reads the given .env files, or ./.env when none are named, and then
// the environment. Missing files are ignored and variables already set in
// the environment win over file values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:      get("PORT", "8080"),
		DBPath:    get("DB_PATH", "homekeep.db"),
		LogLevel:  get("LOG_LEVEL", "info"),
		LogFormat: get("LOG_FORMAT", "text"),
		BaseURL:   strings.TrimRight(get("BASE_URL", "http://localhost:8080"), "/"),

		JWTSecret: get("JWT_SECRET", ""),
		JWTIssuer: get("JWT_ISSUER", ""),

		VAPIDPublicKey:  get("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: get("VAPID_PRIVATE_KEY", ""),
		VAPIDSubscriber: get("VAPID_SUBSCRIBER", "mailto:admin@localhost"),

		S3Endpoint:  get("S3_ENDPOINT", ""),
		S3Bucket:    get("S3_BUCKET", ""),
		S3Region:    get("S3_REGION", "us-east-1"),
		S3AccessKey: get("S3_ACCESS_KEY", ""),
		S3SecretKey: get("S3_SECRET_KEY", ""),

		OCRURL:    get("OCR_URL", ""),
		OCRAPIKey: get("OCR_API_KEY", ""),

		StripeSecretKey:     get("STRIPE_SECRET_KEY", ""),
		StripePriceID:       get("STRIPE_PRICE_ID", ""),
		StripeWebhookSecret: get("STRIPE_WEBHOOK_SECRET", ""),
	}

	timeout, err := time.ParseDuration(get("STORE_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("parse %sSTORE_TIMEOUT: %w", prefix, err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%sSTORE_TIMEOUT must be positive", prefix)
	}
	cfg.StoreTimeout = timeout

	for _, o := range strings.Split(get("ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingSecret
	}
	return nil
}

func (c *Config) Push() push.Config {
	return push.Config{
		VAPIDPublicKey:  c.VAPIDPublicKey,
		VAPIDPrivateKey: c.VAPIDPrivateKey,
		Subscriber:      c.VAPIDSubscriber,
	}
}

func (c *Config) Documents() documents.Config {
	return documents.Config{
		Endpoint:  c.S3Endpoint,
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
	}
}

func (c *Config) OCR() ocr.Config {
	return ocr.Config{URL: c.OCRURL, APIKey: c.OCRAPIKey}
}

func (c *Config) Billing() billing.Config {
	return billing.Config{
		SecretKey:     c.StripeSecretKey,
		PriceID:       c.StripePriceID,
		WebhookSecret: c.StripeWebhookSecret,
		SuccessURL:    c.BaseURL + "/settings?subscription=success",
		CancelURL:     c.BaseURL + "/settings?subscription=cancelled",
	}
}

func get(key, fallback string) string {
	if v, ok := os.LookupEnv(prefix + key); ok && v != "" {
		return v
	}
	return fallback
}
