// Package config builds runtime configuration from environment variables so
// main stays lean. Every value has a development default.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the matching service needs at startup.
type Config struct {
	Addr string

	PostgresDSN string
	RedisURL    string

	KafkaBrokers []string
	KafkaGroup   string

	MLServiceURL    string
	MLEnabled       bool
	FallbackEnabled bool

	DonorServiceURL     string
	RecipientServiceURL string

	EngineInterval  time.Duration
	SweepInterval   time.Duration
	ConfirmationTTL time.Duration

	TopN      int
	Threshold float64
}

// FromEnv reads configuration from the environment.
func FromEnv() Config {
	return Config{
		Addr:                getEnv("MATCHING_ADDR", ":8086"),
		PostgresDSN:         os.Getenv("MATCHING_POSTGRES_DSN"),
		RedisURL:            os.Getenv("MATCHING_REDIS_URL"),
		KafkaBrokers:        splitList(getEnv("MATCHING_KAFKA_BROKERS", "localhost:9092")),
		KafkaGroup:          getEnv("MATCHING_KAFKA_GROUP", "matching-service-group"),
		MLServiceURL:        getEnv("MATCHING_ML_URL", "http://localhost:8000"),
		MLEnabled:           getBool("MATCHING_ML_ENABLED", true),
		FallbackEnabled:     getBool("MATCHING_RULE_FALLBACK_ENABLED", true),
		DonorServiceURL:     getEnv("MATCHING_DONOR_SERVICE_URL", "http://localhost:8081"),
		RecipientServiceURL: getEnv("MATCHING_RECIPIENT_SERVICE_URL", "http://localhost:8082"),
		EngineInterval:      getDuration("MATCHING_ENGINE_INTERVAL", 10*time.Minute),
		SweepInterval:       getDuration("MATCHING_SWEEP_INTERVAL", 15*time.Minute),
		ConfirmationTTL:     getDuration("MATCHING_CONFIRMATION_TTL", 48*time.Hour),
		TopN:                getInt("MATCHING_TOP_N", 10),
		Threshold:           getFloat("MATCHING_SCORE_THRESHOLD", 0.5),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
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

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
