package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean. Unset values fall back to development defaults.
type Config struct {
	Addr          string
	JWTSigningKey string

	PostgresURL string
	RedisURL    string

	KafkaBrokers    []string
	KafkaAuditTopic string

	// MatchThreshold is the minimum score a candidate pair must reach to be
	// reported as a conflict.
	MatchThreshold int
	// HighConfidenceThreshold splits Medium from High confidence.
	HighConfidenceThreshold int

	// ConflictSLA is how long a conflict may stay pending before the queue
	// flags it overdue.
	ConflictSLA time.Duration

	// CodeListFile points at the YAML file pinning canonical code-list
	// versions. Empty means compiled-in defaults.
	CodeListFile string

	// PrefixCacheTTL bounds how long cached name-prefix lookups stay fresh.
	PrefixCacheTTL time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:                    envOr("TRRCMS_ADDR", ":8080"),
		JWTSigningKey:           envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresURL:             os.Getenv("POSTGRES_URL"),
		RedisURL:                os.Getenv("REDIS_URL"),
		KafkaAuditTopic:         envOr("KAFKA_AUDIT_TOPIC", "trrcms.audit"),
		MatchThreshold:          envInt("MATCH_THRESHOLD", 70),
		HighConfidenceThreshold: envInt("MATCH_HIGH_CONFIDENCE", 90),
		ConflictSLA:             envDuration("CONFLICT_SLA", 72*time.Hour),
		CodeListFile:            os.Getenv("CODE_LIST_FILE"),
		PrefixCacheTTL:          envDuration("PREFIX_CACHE_TTL", 5*time.Minute),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
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
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
