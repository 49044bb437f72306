package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr           string
	DatabaseURL    string
	RedisAddr      string
	KafkaBrokers   []string
	TierTablePath  string
	JWTSigningKey  string
	AdminTokenHash string
	ConfirmTimeout time.Duration
}

// FromEnv builds a Server config from environment variables. An empty
// DatabaseURL selects the in-memory stores; likewise for Redis and Kafka,
// which are optional capabilities, not hard dependencies.
func FromEnv() Server {
	addr := os.Getenv("WEEKCHAIN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	confirmTimeout := 5 * time.Second
	if v := os.Getenv("CONFIRM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			confirmTimeout = d
		}
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = strings.Split(v, ",")
	}

	return Server{
		Addr:           addr,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		KafkaBrokers:   brokers,
		TierTablePath:  os.Getenv("TIER_TABLE_PATH"),
		JWTSigningKey:  jwtSigningKey,
		AdminTokenHash: os.Getenv("ADMIN_TOKEN_HASH"),
		ConfirmTimeout: confirmTimeout,
	}
}
