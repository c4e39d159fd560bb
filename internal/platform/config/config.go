package config

import (
	"os"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	PostgresDSN   string
	Redis         RedisConfig
	SigningKey    string
	SweepInterval time.Duration
}

// RedisConfig captures connection settings for the optional Redis cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RoundInfoCacheTTL bounds staleness of cached round metadata.
var RoundInfoCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("FIELDKEY_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	signingKey := os.Getenv("FIELDKEY_SIGNING_KEY")
	if signingKey == "" {
		// Use a default for development - should be overridden in production
		signingKey = "dev-secret-key-change-in-production"
	}

	sweepInterval := 10 * time.Minute
	if raw := os.Getenv("FIELDKEY_SWEEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			sweepInterval = d
		}
	}

	return Server{
		Addr:          addr,
		PostgresDSN:   os.Getenv("FIELDKEY_POSTGRES_DSN"),
		SigningKey:    signingKey,
		SweepInterval: sweepInterval,
		Redis: RedisConfig{
			URL:          os.Getenv("FIELDKEY_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}
