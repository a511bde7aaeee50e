// Package config provides configuration loading and validation for the
// Lodgeline services. It uses koanf to merge environment variables with
// optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server and the
// channel sync worker.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (availability cache, shared rate limits)
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`

	// JWT authentication. JWTPreviousSecret supports zero-downtime
	// rotation and may be empty.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Stripe
	StripeAPIKey        string `koanf:"stripe_api_key"`
	StripeWebhookSecret string `koanf:"stripe_webhook_secret"`
	CheckoutSuccessURL  string `koanf:"checkout_success_url"`
	CheckoutCancelURL   string `koanf:"checkout_cancel_url"`

	// Channel manager feed
	ChannelFeedURL   string `koanf:"channel_feed_url"`
	ChannelFeedToken string `koanf:"channel_feed_token"`

	// Object storage (R2/S3) for audit archives
	ArchiveBucketName      string `koanf:"archive_bucket_name"`
	ArchiveAccessKeyID     string `koanf:"archive_access_key_id"`
	ArchiveSecretAccessKey string `koanf:"archive_secret_access_key"`
	ArchiveEndpoint        string `koanf:"archive_endpoint"`

	// Booking behavior
	HoldTTLMinutes         int     `koanf:"hold_ttl_minutes"`
	CancellationFeePercent float64 `koanf:"cancellation_fee_percent"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL         = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret           = errors.New("JWT_SECRET is required")
	ErrMissingStripeAPIKey        = errors.New("STRIPE_API_KEY is required")
	ErrMissingStripeWebhookSecret = errors.New("STRIPE_WEBHOOK_SECRET is required")
	ErrMissingCheckoutSuccessURL  = errors.New("CHECKOUT_SUCCESS_URL is required")
	ErrMissingCheckoutCancelURL   = errors.New("CHECKOUT_CANCEL_URL is required")
	ErrMissingArchiveBucketName   = errors.New("ARCHIVE_BUCKET_NAME is required")
	ErrMissingArchiveAccessKeyID  = errors.New("ARCHIVE_ACCESS_KEY_ID is required")
	ErrMissingArchiveSecret       = errors.New("ARCHIVE_SECRET_ACCESS_KEY is required")
	ErrMissingArchiveEndpoint     = errors.New("ARCHIVE_ENDPOINT is required")
	ErrMissingChannelFeedURL      = errors.New("CHANNEL_FEED_URL is required")
	ErrInvalidPort                = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort                   = 8080
	DefaultEnv                    = "development"
	DefaultRedisAddr              = "localhost:6379"
	DefaultHoldTTLMinutes         = 30
	DefaultCancellationFeePercent = 10.0
)

// HoldTTL returns the hold TTL as a duration.
func (c *Config) HoldTTL() time.Duration {
	return time.Duration(c.HoldTTLMinutes) * time.Minute
}

// Load reads configuration from environment variables and an optional
// YAML file; environment variables take precedence. Returns the loaded
// config and all validation errors (empty if valid).
func Load(configFilePath string) (*Config, []error) {
	cfg, loadErrs := readConfig(configFilePath)
	if cfg == nil {
		return nil, loadErrs
	}
	return cfg, append(loadErrs, cfg.Validate()...)
}

// LoadChannelSync reads configuration for the channel sync worker. Only
// the feed URL is required; the worker falls back to in-memory state
// when Postgres and Redis are not configured.
func LoadChannelSync(configFilePath string) (*Config, []error) {
	cfg, loadErrs := readConfig(configFilePath)
	if cfg == nil {
		return nil, loadErrs
	}
	if cfg.ChannelFeedURL == "" {
		loadErrs = append(loadErrs, ErrMissingChannelFeedURL)
	}
	return cfg, loadErrs
}

func readConfig(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"LODGELINE_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	holdTTL, holdErr := getEnvIntOrDefault("HOLD_TTL_MINUTES", k.Int("hold_ttl_minutes"), DefaultHoldTTLMinutes)
	if holdErr != nil {
		loadErrs = append(loadErrs, holdErr)
	}

	feePercent, feeErr := getEnvFloatOrDefault("CANCELLATION_FEE_PERCENT", k.Float64("cancellation_fee_percent"), DefaultCancellationFeePercent)
	if feeErr != nil {
		loadErrs = append(loadErrs, feeErr)
	}

	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"LODGELINE_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:              getEnvOrDefault("REDIS_ADDR", k.String("redis_addr"), DefaultRedisAddr),
		RedisPassword:          getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),
		JWTSecret:              getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:      getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		StripeAPIKey:           getEnvOrKoanf("STRIPE_API_KEY", k, "stripe_api_key"),
		StripeWebhookSecret:    getEnvOrKoanf("STRIPE_WEBHOOK_SECRET", k, "stripe_webhook_secret"),
		CheckoutSuccessURL:     getEnvOrKoanf("CHECKOUT_SUCCESS_URL", k, "checkout_success_url"),
		CheckoutCancelURL:      getEnvOrKoanf("CHECKOUT_CANCEL_URL", k, "checkout_cancel_url"),
		ChannelFeedURL:         getEnvOrKoanf("CHANNEL_FEED_URL", k, "channel_feed_url"),
		ChannelFeedToken:       getEnvOrKoanf("CHANNEL_FEED_TOKEN", k, "channel_feed_token"),
		ArchiveBucketName:      getEnvOrKoanf("ARCHIVE_BUCKET_NAME", k, "archive_bucket_name"),
		ArchiveAccessKeyID:     getEnvOrKoanf("ARCHIVE_ACCESS_KEY_ID", k, "archive_access_key_id"),
		ArchiveSecretAccessKey: getEnvOrKoanf("ARCHIVE_SECRET_ACCESS_KEY", k, "archive_secret_access_key"),
		ArchiveEndpoint:        getEnvOrKoanf("ARCHIVE_ENDPOINT", k, "archive_endpoint"),
		HoldTTLMinutes:         holdTTL,
		CancellationFeePercent: feePercent,
	}

	return cfg, loadErrs
}

func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.StripeAPIKey == "" {
		errs = append(errs, ErrMissingStripeAPIKey)
	}
	if c.StripeWebhookSecret == "" {
		errs = append(errs, ErrMissingStripeWebhookSecret)
	}
	if c.CheckoutSuccessURL == "" {
		errs = append(errs, ErrMissingCheckoutSuccessURL)
	}
	if c.CheckoutCancelURL == "" {
		errs = append(errs, ErrMissingCheckoutCancelURL)
	}

	// Archive storage is optional. Only validate fields if any value is set.
	if c.ArchiveBucketName != "" || c.ArchiveAccessKeyID != "" || c.ArchiveSecretAccessKey != "" || c.ArchiveEndpoint != "" {
		if c.ArchiveBucketName == "" {
			errs = append(errs, ErrMissingArchiveBucketName)
		}
		if c.ArchiveAccessKeyID == "" {
			errs = append(errs, ErrMissingArchiveAccessKeyID)
		}
		if c.ArchiveSecretAccessKey == "" {
			errs = append(errs, ErrMissingArchiveSecret)
		}
		if c.ArchiveEndpoint == "" {
			errs = append(errs, ErrMissingArchiveEndpoint)
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for
// logging. All secrets are masked.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                      fmt.Sprintf("%d", c.Port),
		"env":                       c.Env,
		"database_url":              maskDatabaseURL(c.DatabaseURL),
		"redis_addr":                c.RedisAddr,
		"redis_password":            maskSecret(c.RedisPassword),
		"jwt_secret":                maskSecret(c.JWTSecret),
		"jwt_previous_secret":       maskSecret(c.JWTPreviousSecret),
		"stripe_api_key":            maskStripeKey(c.StripeAPIKey),
		"stripe_webhook_secret":     maskSecret(c.StripeWebhookSecret),
		"checkout_success_url":      c.CheckoutSuccessURL,
		"checkout_cancel_url":       c.CheckoutCancelURL,
		"channel_feed_url":          c.ChannelFeedURL,
		"channel_feed_token":        maskSecret(c.ChannelFeedToken),
		"archive_bucket_name":       c.ArchiveBucketName,
		"archive_access_key_id":     maskSecret(c.ArchiveAccessKeyID),
		"archive_secret_access_key": maskSecret(c.ArchiveSecretAccessKey),
		"archive_endpoint":          c.ArchiveEndpoint,
		"hold_ttl_minutes":          fmt.Sprintf("%d", c.HoldTTLMinutes),
		"cancellation_fee_percent":  fmt.Sprintf("%.1f", c.CancellationFeePercent),
	}
}

// maskSecret shows only the first 4 characters of a secret. Values
// shorter than 8 characters are fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskStripeKey preserves the key prefix (sk_live_, sk_test_, ...) so
// logs show which mode is active.
func maskStripeKey(s string) string {
	if s == "" {
		return "<not set>"
	}
	parts := strings.SplitN(s, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + parts[1] + "_****"
	}
	return maskSecret(s)
}

// maskDatabaseURL masks the password in a database URL.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
