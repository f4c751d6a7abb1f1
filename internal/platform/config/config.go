// Package config builds runtime configuration from the environment so main
// stays lean. Every knob has a development default; production deployments
// override via env.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full server configuration.
type Config struct {
	Addr string

	// Postgres connection string. Empty means in-memory stores (dev mode).
	PostgresURL string

	// Redis connection URL for webhook delivery dedupe. Empty disables the
	// redis deduper and falls back to the in-process one.
	RedisURL string

	// Kafka brokers for the outbound notification topic. Empty disables the
	// kafka publisher.
	KafkaBrokers []string
	// NotifyTopic is the topic applicant-facing events are produced to.
	NotifyTopic string

	// AdminJWTSecret signs/validates admin bearer tokens (HS256).
	AdminJWTSecret string
	// WebhookSecret authenticates inbound verification provider callbacks.
	WebhookSecret string

	Persona PersonaConfig

	// RequireVerifiedPersona, when set, makes a VERIFIED or OVERRIDDEN
	// persona sub-status a precondition for approval.
	RequireVerifiedPersona bool

	// TxTimeout bounds every transactional unit of work.
	TxTimeout time.Duration
}

// PersonaConfig configures the external identity verification provider.
type PersonaConfig struct {
	// BaseURL of the provider API. Empty selects the sandbox provider, which
	// mints inquiries locally.
	BaseURL string
	APIKey  string
	// TemplateID selects the provider-side verification flow.
	TemplateID string
	Timeout    time.Duration
}

// RedisConfig tunes the redis client pool.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv reads the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Addr:                   envOr("BAZAAR_ADDR", ":8080"),
		PostgresURL:            os.Getenv("BAZAAR_POSTGRES_URL"),
		RedisURL:               os.Getenv("BAZAAR_REDIS_URL"),
		KafkaBrokers:           splitList(os.Getenv("BAZAAR_KAFKA_BROKERS")),
		NotifyTopic:            envOr("BAZAAR_NOTIFY_TOPIC", "bazaar.vendor-events"),
		AdminJWTSecret:         envOr("BAZAAR_ADMIN_JWT_SECRET", "dev-secret-change-in-production"),
		WebhookSecret:          os.Getenv("BAZAAR_WEBHOOK_SECRET"),
		RequireVerifiedPersona: envBool("BAZAAR_REQUIRE_VERIFIED_PERSONA"),
		TxTimeout:              envDuration("BAZAAR_TX_TIMEOUT", 5*time.Second),
		Persona: PersonaConfig{
			BaseURL:    os.Getenv("PERSONA_BASE_URL"),
			APIKey:     os.Getenv("PERSONA_API_KEY"),
			TemplateID: envOr("PERSONA_TEMPLATE_ID", "itmpl_vendor_default"),
			Timeout:    envDuration("PERSONA_TIMEOUT", 10*time.Second),
		},
	}
}

// Redis derives the redis pool settings from the top-level URL.
func (c Config) Redis() RedisConfig {
	return RedisConfig{
		URL:          c.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
