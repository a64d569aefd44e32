package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	BackendURL     string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	InsightTimeout time.Duration
	ChatTimeout    time.Duration
	PageSize       int

	HTTPAddr        string
	AllowedOrigins  []string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Forecast cache configuration.
	ForecastCacheSize int
	ForecastCacheTTL  time.Duration

	// Incident publishing configuration.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaIncidentTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	requestTimeout, err := parsePositiveDuration("REQUEST_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	insightTimeout, err := parsePositiveDuration("INSIGHT_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	chatTimeout, err := parsePositiveDuration("CHAT_TIMEOUT", "120s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("FORECAST_CACHE_TTL", "15m")
	if err != nil {
		return nil, err
	}

	pageSize, err := parseIntInRange("PAGE_SIZE", 10, 1, 100)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseIntInRange("FORECAST_CACHE_SIZE", 256, 1, 100000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BackendURL:     strings.TrimRight(sharedcfg.EnvOrDefault("BACKEND_URL", "http://localhost:8000"), "/"),
		PollInterval:   pollInterval,
		RequestTimeout: requestTimeout,
		InsightTimeout: insightTimeout,
		ChatTimeout:    chatTimeout,
		PageSize:       pageSize,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		AllowedOrigins:  splitList(sharedcfg.EnvOrDefault("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		ForecastCacheSize: cacheSize,
		ForecastCacheTTL:  cacheTTL,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaIncidentTopic: sharedcfg.EnvOrDefault("KAFKA_INCIDENT_TOPIC", "drought-incidents"),
	}

	if u, err := url.Parse(cfg.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("invalid BACKEND_URL")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaIncidentTopic == "" {
		return nil, errors.New("KAFKA_INCIDENT_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseIntInRange(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be between %d and %d", key, lo, hi)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
