package config

import (
	"fmt"

	pkgconfig "github.com/nexlane/solutionhub/pkg/config"
)

// Config holds all configuration for the solutionhub server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"solutionhub"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"solutionhub_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"solutionhub_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (webhook deduplication)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	NotificationTopic string   `env:"NOTIFICATION_TOPIC" envDefault:"notification.requested"`
	DomainEventTopic  string   `env:"DOMAIN_EVENT_TOPIC" envDefault:"solutionhub.events"`

	// Billing provider
	BillingBaseURL       string `env:"BILLING_BASE_URL" envDefault:"https://api.billing.example.com"`
	BillingAPIKey        string `env:"BILLING_API_KEY"`
	BillingWebhookSecret string `env:"BILLING_WEBHOOK_SECRET"`

	// Checkout redirect targets handed to the billing provider.
	CheckoutSuccessURL string `env:"CHECKOUT_SUCCESS_URL" envDefault:"https://solutionhub.example.com/bookings/success"`
	CheckoutCancelURL  string `env:"CHECKOUT_CANCEL_URL" envDefault:"https://solutionhub.example.com/bookings/cancelled"`

	// Auth
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Tracing
	TracingEnabled  bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint    string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSampleRate float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("at least one Kafka broker is required")
	}
	if c.Environment != "development" && c.BillingWebhookSecret == "" {
		return fmt.Errorf("BILLING_WEBHOOK_SECRET is required outside development")
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
