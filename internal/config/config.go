// Package config loads leaderboard service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

// Snapshot sources.
const (
	SourceFile     = "file"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

var validate = validator.New()

// Config holds all settings for leaderboardd.
type Config struct {
	Port            int           `validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	// Source selects the snapshot loader.
	Source       string `validate:"oneof=file sqlite postgres"`
	SnapshotFile string `validate:"required_if=Source file"`
	SQLitePath   string `validate:"required_if=Source sqlite"`
	DatabaseURL  string `validate:"required_if=Source postgres"` // Pooled Postgres URL for queries.
	NotifyURL    string // Direct Postgres URL for LISTEN/NOTIFY; empty disables it.
	PollInterval time.Duration `validate:"gt=0"`

	CacheTTL    time.Duration `validate:"gt=0"`
	CacheSize   int           `validate:"gt=0"`
	MaxLimit    int           `validate:"min=1"`
	LoadTimeout time.Duration `validate:"gt=0"`
	LoadRetries int           `validate:"min=0,max=10"`

	// RateLimit is the sustained request rate per second; zero disables it.
	RateLimit float64 `validate:"min=0"`
	RateBurst int     `validate:"min=1"`

	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string `validate:"required"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`
}

// Load reads configuration from environment variables with defaults.
// Malformed values are reported rather than silently replaced.
func Load() (Config, error) {
	var errs []error
	str := func(key, def string) string { return envStr(key, def) }
	num := func(key string, def int) int {
		v, err := envInt(key, def)
		errs = append(errs, err)
		return v
	}
	dur := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		errs = append(errs, err)
		return v
	}
	flt := func(key string, def float64) float64 {
		v, err := envFloat(key, def)
		errs = append(errs, err)
		return v
	}
	flag := func(key string, def bool) bool {
		v, err := envBool(key, def)
		errs = append(errs, err)
		return v
	}

	cfg := Config{
		Port:            num("LEADERBOARD_PORT", 8080),
		ReadTimeout:     dur("LEADERBOARD_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    dur("LEADERBOARD_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: dur("LEADERBOARD_SHUTDOWN_TIMEOUT", 15*time.Second),
		Source:          strings.ToLower(str("LEADERBOARD_SOURCE", SourceFile)),
		SnapshotFile:    str("LEADERBOARD_SNAPSHOT_FILE", "agents.json"),
		SQLitePath:      str("LEADERBOARD_SQLITE_PATH", "leaderboard.db"),
		DatabaseURL:     str("DATABASE_URL", ""),
		NotifyURL:       str("NOTIFY_URL", ""),
		PollInterval:    dur("LEADERBOARD_POLL_INTERVAL", 2*time.Second),
		CacheTTL:        dur("LEADERBOARD_CACHE_TTL", 45*time.Second),
		CacheSize:       num("LEADERBOARD_CACHE_SIZE", 1024),
		MaxLimit:        num("LEADERBOARD_MAX_LIMIT", 200),
		LoadTimeout:     dur("LEADERBOARD_LOAD_TIMEOUT", 10*time.Second),
		LoadRetries:     num("LEADERBOARD_LOAD_RETRIES", 2),
		RateLimit:       flt("LEADERBOARD_RATE_LIMIT", 50),
		RateBurst:       num("LEADERBOARD_RATE_BURST", 100),
		OTELEndpoint:    str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:    flag("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:     str("OTEL_SERVICE_NAME", "leaderboard"),
		LogLevel:        strings.ToLower(str("LEADERBOARD_LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(str("LEADERBOARD_LOG_FORMAT", "json")),
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w: %w", domain.ErrInvalidConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("config: %w: %s", domain.ErrInvalidConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w: %w", domain.ErrInvalidConfiguration, err)
	}
	if c.NotifyURL != "" && c.Source != SourcePostgres {
		return fmt.Errorf("config: %w: NOTIFY_URL requires LEADERBOARD_SOURCE=postgres", domain.ErrInvalidConfiguration)
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
