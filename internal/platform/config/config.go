package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. Match thresholds and weights
// do NOT live here: those are rows in match_config so they can be tuned
// without a restart.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	JWTSigningKey string

	// Kafka audit pipeline. Empty brokers disables publishing and
	// materialization.
	KafkaBrokers       []string
	KafkaAuditTopic    string
	KafkaConsumerGroup string

	// DefaultPhoneRegion is the country-code prefix assumed for phone numbers
	// ingested without one.
	DefaultPhoneRegion string

	// MatchBatchSize bounds how many candidate pairs one sub-batch scores.
	MatchBatchSize int

	// StaleRunWindow is how long an ingest run may stay `running` before the
	// repair surface considers it stuck.
	StaleRunWindow time.Duration

	// PhoneticsEnabled gates the phonetic backend; when false the encoder
	// runs in degraded mode and the scorer redistributes weights.
	PhoneticsEnabled bool
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:               envOr("UNIFY_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("UNIFY_DATABASE_URL"),
		RedisURL:           os.Getenv("UNIFY_REDIS_URL"),
		JWTSigningKey:      envOr("UNIFY_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		KafkaAuditTopic:    envOr("UNIFY_KAFKA_AUDIT_TOPIC", "unify.audit"),
		KafkaConsumerGroup: envOr("UNIFY_KAFKA_CONSUMER_GROUP", "unify-audit-materializer"),
		DefaultPhoneRegion: envOr("UNIFY_DEFAULT_PHONE_REGION", "1"),
		MatchBatchSize:     envInt("UNIFY_MATCH_BATCH_SIZE", 500),
		StaleRunWindow:     envDuration("UNIFY_STALE_RUN_WINDOW", 6*time.Hour),
		PhoneticsEnabled:   os.Getenv("UNIFY_DISABLE_PHONETICS") != "true",
	}
	if brokers := os.Getenv("UNIFY_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
