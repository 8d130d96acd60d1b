// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"toon-shelf/storage"
)

// Run modes for the daemon.
const (
	RunModeScheduler = "scheduler"
	RunModeOnce      = "once"
)

// Config is read once at startup and not modified afterwards.
type Config struct {
	// Storage
	DataPath   string
	Backend    string
	Origin     string
	QuotaBytes int64

	// Catalog
	CatalogBaseURL string
	CatalogPath    string
	CatalogTTL     time.Duration
	FetchTimeout   time.Duration

	// Scheduler
	RunMode         string
	RunAtStartup    bool
	RefreshSchedule string
	SweepSchedule   string

	// Logging
	LogLevel string
	LogFile  string

	// Metrics
	MetricsAddr string
}

// Load reads the configuration. Malformed optional values fall back to their
// defaults; an unknown backend, run mode or catalog URL is an error.
func Load() (*Config, error) {
	cfg := &Config{
		DataPath:        getEnvString("DATA_PATH", "./data"),
		Backend:         strings.ToLower(getEnvString("STORE_BACKEND", storage.BackendSQLite)),
		Origin:          getEnvString("STORE_ORIGIN", "default"),
		QuotaBytes:      getEnvInt64("STORE_QUOTA_BYTES", 5242880),
		CatalogBaseURL:  getEnvString("CATALOG_BASE_URL", "http://localhost:8000/"),
		CatalogPath:     getEnvString("CATALOG_PATH", "data/cartoons.json"),
		CatalogTTL:      getEnvDuration("CATALOG_TTL", 24*time.Hour),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		RunMode:         strings.ToLower(getEnvString("RUN_MODE", RunModeScheduler)),
		RunAtStartup:    getEnvBool("RUN_AT_STARTUP", false),
		RefreshSchedule: getEnvString("REFRESH_SCHEDULE", "0 0 */6 * * *"),
		SweepSchedule:   getEnvString("SWEEP_SCHEDULE", "0 30 3 * * *"),
		LogLevel:        getEnvString("LOG_LEVEL", "info"),
		LogFile:         getEnvString("LOG_FILE", ""),
		MetricsAddr:     getEnvString("METRICS_ADDR", ""),
	}

	switch cfg.Backend {
	case storage.BackendSQLite, storage.BackendFile, storage.BackendMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Backend)
	}

	switch cfg.RunMode {
	case RunModeScheduler, RunModeOnce:
	default:
		return nil, fmt.Errorf("unknown RUN_MODE %q", cfg.RunMode)
	}

	if _, err := cfg.CatalogURL(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnvFile seeds the environment from a .env file. Variables that are
// already set win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// CatalogURL resolves CatalogPath against CatalogBaseURL.
func (c *Config) CatalogURL() (string, error) {
	base, err := url.Parse(c.CatalogBaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid CATALOG_BASE_URL %q: %w", c.CatalogBaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid CATALOG_BASE_URL %q: missing scheme or host", c.CatalogBaseURL)
	}
	ref, err := url.Parse(c.CatalogPath)
	if err != nil {
		return "", fmt.Errorf("invalid CATALOG_PATH %q: %w", c.CatalogPath, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// StorageOptions returns the options for storage.Open.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:  c.Backend,
		DataPath: c.DataPath,
		Origin:   c.Origin,
		MaxBytes: c.QuotaBytes,
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
