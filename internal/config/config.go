package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Store drivers.
const (
	DriverXLSX     = "xlsx"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverSheets   = "sheets"
)

// DefaultUserAgent mimics a desktop browser; the source site rejects bare clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config holds all service settings, populated from environment variables.
type Config struct {
	SourceURL       string
	SourceUserAgent string
	FetchTimeout    time.Duration
	FetchRetries    int

	StoreDriver   string
	StoreDir      string
	SQLitePath    string
	DatabaseURL   string
	Credentials   string
	ShareWith     string
	ZonesFile     string
	AllCallsStore string
	AppendDelay   time.Duration

	RunInterval     time.Duration
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Publishing of appended records; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// PublishEnabled reports whether appended records are published to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	runInterval, err := parsePositiveDuration("RUN_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	appendDelay, err := time.ParseDuration(sharedcfg.EnvOrDefault("APPEND_DELAY", "100ms"))
	if err != nil || appendDelay < 0 {
		return nil, errors.New("invalid APPEND_DELAY")
	}

	retries, err := strconv.Atoi(sharedcfg.EnvOrDefault("FETCH_RETRIES", "3"))
	if err != nil || retries < 0 {
		return nil, errors.New("invalid FETCH_RETRIES")
	}

	var brokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		SourceURL:       sharedcfg.EnvOrDefault("SOURCE_URL", "https://slmpd.org/calls/"),
		SourceUserAgent: sharedcfg.EnvOrDefault("SOURCE_USER_AGENT", DefaultUserAgent),
		FetchTimeout:    fetchTimeout,
		FetchRetries:    retries,

		StoreDriver:   strings.ToLower(sharedcfg.EnvOrDefault("STORE_DRIVER", DriverXLSX)),
		StoreDir:      sharedcfg.EnvOrDefault("STORE_DIR", "data"),
		SQLitePath:    sharedcfg.EnvOrDefault("SQLITE_PATH", "data/police_calls.db"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Credentials:   os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		ShareWith:     os.Getenv("SHARE_WITH_EMAIL"),
		ZonesFile:     os.Getenv("ZONES_FILE"),
		AllCallsStore: allCallsStore(),
		AppendDelay:   appendDelay,

		RunInterval:     runInterval,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "police-calls"),
	}

	if cfg.SourceURL == "" {
		return nil, errors.New("SOURCE_URL is required")
	}
	switch cfg.StoreDriver {
	case DriverXLSX, DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case DriverSheets:
		if cfg.Credentials == "" {
			return nil, errors.New("GOOGLE_CREDENTIALS_FILE is required when STORE_DRIVER is sheets")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.PublishEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// allCallsStore distinguishes unset (default store) from set-but-empty (disabled).
func allCallsStore() string {
	v, ok := os.LookupEnv("ALL_CALLS_STORE")
	if !ok {
		return "STLPoliceCalls"
	}
	return strings.TrimSpace(v)
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
