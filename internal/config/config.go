package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the runtime settings for the marketplace engine. Every value
// has a development default so the server starts with no environment set.
type Config struct {
	Port             string
	DatabasePath     string
	JWTSecret        string
	SweepInterval    time.Duration
	PlatformFeeRate  float64
	MinimumIncrement float64
	AMQPURL          string
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Port:             getString("PORT", "8080"),
		DatabasePath:     getString("DATABASE_PATH", "market.db"),
		JWTSecret:        getString("JWT_SECRET", "ethermon-dev-secret"),
		SweepInterval:    getDuration("SWEEP_INTERVAL", 5*time.Minute),
		PlatformFeeRate:  getFloat("PLATFORM_FEE_RATE", 0.025),
		MinimumIncrement: getFloat("MINIMUM_INCREMENT", 1.0),
		AMQPURL:          os.Getenv("AMQP_URL"), // empty means log-only event sink
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
