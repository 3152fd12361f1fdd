// Package config loads runtime configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// confirmCalls is the most dependency calls a CONFIRM makes while holding the
// per-phone lock, each bounded by DependencyTimeout.
const confirmCalls = 5

// Session store backends
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config holds all runtime configuration values.
type Config struct {
	Env           string // development, production, test
	Port          string
	LogLevel      string
	PublicBaseURL string

	// Database
	DatabaseURL            string // full DSN, wins over the DB_* values
	DBHost                 string
	DBPort                 string
	DBUser                 string
	DBPass                 string
	DBName                 string
	DBSSLMode              string
	InstanceConnectionName string // Cloud SQL unix socket
	UseMemoryStore         bool

	// Sessions
	SessionBackend string
	SessionTTL     time.Duration
	SessionSweep   time.Duration
	LockWait       time.Duration
	LockLease      time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	DependencyTimeout time.Duration
	MenuCacheTTL      time.Duration
	Timezone          string

	// Twilio
	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioFromNumber         string
	DisableWebhookValidation bool

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string
	PaymentSuccessURL   string
	PaymentCancelURL    string

	// Messaging and jobs
	RabbitMQURL      string
	OwnerPhone       string
	AdminJWTSecret   string
	BroadcastAt      string // HH:MM local time
	BroadcastEnabled bool
	DormantAfter     time.Duration

	PaymentLinkRetryInterval time.Duration
	PaymentLinkRetryAfter    time.Duration
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Env:           envStr("APP_ENV", "development"),
		Port:          envStr("PORT", "8080"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		PublicBaseURL: strings.TrimRight(envStr("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		DatabaseURL:            os.Getenv("DATABASE_URL"),
		DBHost:                 envStr("DB_HOST", "localhost"),
		DBPort:                 envStr("DB_PORT", "5432"),
		DBUser:                 envStr("DB_USER", "postgres"),
		DBPass:                 os.Getenv("DB_PASS"),
		DBName:                 envStr("DB_NAME", "eatcaterly"),
		DBSSLMode:              envStr("DB_SSLMODE", "disable"),
		InstanceConnectionName: os.Getenv("INSTANCE_CONNECTION_NAME"),
		UseMemoryStore:         envBool("USE_MEMORY_STORE", false, &errs),

		SessionBackend: strings.ToLower(envStr("SESSION_BACKEND", SessionBackendMemory)),
		SessionTTL:     envDur("SESSION_TTL", 30*time.Minute, &errs),
		SessionSweep:   envDur("SESSION_SWEEP_INTERVAL", 5*time.Minute, &errs),
		LockWait:       envDur("LOCK_WAIT", 5*time.Second, &errs),
		LockLease:      envDur("LOCK_LEASE", 60*time.Second, &errs),

		RedisAddr:     redisAddr(),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0, &errs),
		RedisTLS:      envBool("REDIS_TLS", false, &errs),

		DependencyTimeout: envDur("DEPENDENCY_TIMEOUT", 10*time.Second, &errs),
		MenuCacheTTL:      envDur("MENU_CACHE_TTL", 30*time.Second, &errs),
		Timezone:          envStr("TIMEZONE", "UTC"),

		TwilioAccountSID:         os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:          os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:         os.Getenv("TWILIO_PHONE_NUMBER"),
		DisableWebhookValidation: envBool("DISABLE_WEBHOOK_VALIDATION", false, &errs),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:            strings.ToLower(envStr("CURRENCY", "usd")),

		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		OwnerPhone:       os.Getenv("OWNER_PHONE"),
		AdminJWTSecret:   os.Getenv("ADMIN_JWT_SECRET"),
		BroadcastAt:      envStr("BROADCAST_AT", "10:00"),
		BroadcastEnabled: envBool("BROADCAST_ENABLED", false, &errs),
		DormantAfter:     envDur("DORMANT_AFTER", 30*24*time.Hour, &errs),

		PaymentLinkRetryInterval: envDur("PAYMENT_LINK_RETRY_INTERVAL", 5*time.Minute, &errs),
		PaymentLinkRetryAfter:    envDur("PAYMENT_LINK_RETRY_AFTER", time.Minute, &errs),
	}
	cfg.PaymentSuccessURL = envStr("PAYMENT_SUCCESS_URL", cfg.PublicBaseURL+"/payment/success")
	cfg.PaymentCancelURL = envStr("PAYMENT_CANCEL_URL", cfg.PublicBaseURL+"/payment/cancel")

	errs = append(errs, cfg.validate()...)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location returns the business time zone used to pick today's menu.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BroadcastClock parses BroadcastAt into hour and minute.
func (c *Config) BroadcastClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.BroadcastAt)
	if err != nil {
		return 0, 0, fmt.Errorf("BROADCAST_AT must be HH:MM: %w", err)
	}
	return t.Hour(), t.Minute(), nil
}

func (c *Config) validate() []error {
	var errs []error
	switch c.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND must be %q or %q, got %q",
			SessionBackendMemory, SessionBackendRedis, c.SessionBackend))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.DependencyTimeout <= 0 {
		errs = append(errs, errors.New("DEPENDENCY_TIMEOUT must be positive"))
	}
	if limit := confirmCalls * c.DependencyTimeout; c.LockLease <= limit {
		errs = append(errs, fmt.Errorf("LOCK_LEASE must exceed %s (%d x DEPENDENCY_TIMEOUT), got %s",
			limit, confirmCalls, c.LockLease))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	if _, _, err := c.BroadcastClock(); err != nil {
		errs = append(errs, err)
	}
	if c.IsProduction() {
		if c.AdminJWTSecret == "" {
			errs = append(errs, errors.New("ADMIN_JWT_SECRET is required in production"))
		}
		if c.TwilioAuthToken == "" && !c.DisableWebhookValidation {
			errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required to validate webhooks in production"))
		}
	}
	return errs
}

func redisAddr() string {
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		return host + ":" + port
	}
	return envStr("REDIS_ADDR", "localhost:6379")
}

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int, errs *[]error) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid int for %s: %q", key, v))
		return def
	}
	return n
}

func envBool(key string, def bool, errs *[]error) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid bool for %s: %q", key, v))
		return def
	}
	return b
}

func envDur(key string, def time.Duration, errs *[]error) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid duration for %s: %q", key, v))
		return def
	}
	return d
}
