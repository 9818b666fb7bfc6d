package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "studbook/pkg/platform/strings"
)

// Config captures process-level configuration. Built once in main from the
// environment; everything else receives plain values.
type Config struct {
	Addr          string
	PostgresURL   string
	JWTSigningKey string

	// OperatorTokenHash is the bcrypt hash of the token that gates cutover.
	// Empty disables the gate (development only).
	OperatorTokenHash string

	Redis    RedisConfig
	Kafka    KafkaConfig
	Backfill BackfillConfig
}

// RedisConfig configures the optional Redis client (checkpoint store).
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit outbox relay. Empty seeds disable it.
type KafkaConfig struct {
	Seeds []string
	Topic string
}

// BackfillConfig holds defaults for the migration engine's batch job.
type BackfillConfig struct {
	ChunkSize int
	Workers   int
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("STUDBOOK_ADDR", ":8080"),
		PostgresURL:       os.Getenv("STUDBOOK_POSTGRES_URL"),
		JWTSigningKey:     envOr("STUDBOOK_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		OperatorTokenHash: os.Getenv("STUDBOOK_OPERATOR_TOKEN_HASH"),
		Redis: RedisConfig{
			URL:          os.Getenv("STUDBOOK_REDIS_URL"),
			PoolSize:     envIntOr("STUDBOOK_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("STUDBOOK_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Seeds: platformstrings.DedupeAndTrim(strings.Split(os.Getenv("STUDBOOK_KAFKA_SEEDS"), ",")),
			Topic: envOr("STUDBOOK_AUDIT_TOPIC", "studbook.operator-audit"),
		},
		Backfill: BackfillConfig{
			ChunkSize: envIntOr("STUDBOOK_BACKFILL_CHUNK_SIZE", 500),
			Workers:   envIntOr("STUDBOOK_BACKFILL_WORKERS", 1),
		},
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
