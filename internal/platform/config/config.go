package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr          string
	PostgresURL   string
	JWTSigningKey string

	// SelfCheckEnabled gates the kiosk self-check channel; representative and
	// offline sync stay available regardless.
	SelfCheckEnabled bool

	Redis RedisConfig
	Kafka KafkaConfig
}

// RedisConfig holds the optional analytics cache backend settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds the optional audit sink settings.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:             envOr("TIMECLOCK_ADDR", ":8080"),
		PostgresURL:      os.Getenv("TIMECLOCK_POSTGRES_URL"),
		JWTSigningKey:    os.Getenv("TIMECLOCK_JWT_SIGNING_KEY"),
		SelfCheckEnabled: envOr("TIMECLOCK_SELF_CHECK_ENABLED", "true") == "true",
		Redis: RedisConfig{
			URL:          os.Getenv("TIMECLOCK_REDIS_URL"),
			PoolSize:     envIntOr("TIMECLOCK_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("TIMECLOCK_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			AuditTopic: envOr("TIMECLOCK_AUDIT_TOPIC", "timeclock.audit"),
		},
	}
	if brokers := os.Getenv("TIMECLOCK_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitComma(brokers)
	}
	if cfg.JWTSigningKey == "" {
		// Development default - must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
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
	if err != nil {
		return fallback
	}
	return n
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
