package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ETA board service
type Config struct {
	// HTTP
	Port           string   `yaml:"port" validate:"required,numeric"`
	AllowedOrigins []string `yaml:"allowed_origins" validate:"min=1"`

	// Upstream operators
	KMBBaseURL     string `yaml:"kmb_base_url" validate:"required,url"`
	CTBBaseURL     string `yaml:"ctb_base_url" validate:"required,url"`
	CTBOperatorTag string `yaml:"ctb_operator_tag" validate:"required,alphanum"`

	// Resilient fetch
	FetchMaxAttempts int           `yaml:"fetch_max_attempts" validate:"gte=1,lte=10"`
	FetchBackoff     time.Duration `yaml:"fetch_backoff" validate:"gte=0"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout" validate:"gt=0"`

	// Stop metadata fan-out for the on-demand operator
	StopFetchConcurrency int `yaml:"stop_fetch_concurrency" validate:"gte=1"`

	// ETA polling
	PollInterval time.Duration `yaml:"eta_poll_interval" validate:"gte=1s"`
	TickInterval time.Duration `yaml:"eta_tick_interval" validate:"gte=100ms"`

	// Poll history
	HistoryEnabled   bool          `yaml:"history_enabled"`
	SQLitePath       string        `yaml:"sqlite_database"`
	DatabaseURL      string        `yaml:"database_url"`
	HistoryRetention time.Duration `yaml:"history_retention" validate:"gt=0"`
}

// Defaults returns the configuration used when nothing is overridden
func Defaults() *Config {
	return &Config{
		Port:                 "8080",
		AllowedOrigins:       []string{"http://localhost:3000", "http://localhost:5173"},
		KMBBaseURL:           "https://data.etabus.gov.hk/v1/transport/kmb",
		CTBBaseURL:           "https://rt.data.gov.hk/v2/transport/citybus",
		CTBOperatorTag:       "CTB",
		FetchMaxAttempts:     3,
		FetchBackoff:         time.Second,
		FetchTimeout:         5 * time.Second,
		StopFetchConcurrency: 8,
		PollInterval:         15 * time.Second,
		TickInterval:         5 * time.Second,
		HistoryEnabled:       true,
		SQLitePath:           "data/eta.db",
		HistoryRetention:     24 * time.Hour,
	}
}

// Load reads .env files, an optional YAML file (CONFIG_FILE) and environment
// variables, in that order of increasing precedence, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)

	c.KMBBaseURL = strings.TrimRight(getEnv("KMB_BASE_URL", c.KMBBaseURL), "/")
	c.CTBBaseURL = strings.TrimRight(getEnv("CTB_BASE_URL", c.CTBBaseURL), "/")
	c.CTBOperatorTag = getEnv("CTB_OPERATOR_TAG", c.CTBOperatorTag)

	c.FetchMaxAttempts = getEnvInt("FETCH_MAX_ATTEMPTS", c.FetchMaxAttempts)
	c.FetchBackoff = getEnvDuration("FETCH_BACKOFF", c.FetchBackoff)
	c.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", c.FetchTimeout)
	c.StopFetchConcurrency = getEnvInt("STOP_FETCH_CONCURRENCY", c.StopFetchConcurrency)

	c.PollInterval = getEnvDuration("ETA_POLL_INTERVAL", c.PollInterval)
	c.TickInterval = getEnvDuration("ETA_TICK_INTERVAL", c.TickInterval)

	c.HistoryEnabled = getEnvBool("HISTORY_ENABLED", c.HistoryEnabled)
	c.SQLitePath = getEnv("SQLITE_DATABASE", c.SQLitePath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.HistoryRetention = time.Duration(getEnvInt("HISTORY_RETENTION_HOURS", int(c.HistoryRetention/time.Hour))) * time.Hour
}

// Validate checks the struct constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
