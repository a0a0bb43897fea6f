package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/typedock-labs/typedock/internal/branding"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Config keys.
const (
	KeyIndexURL       = "registry.index_url"
	KeyBaseURL        = "registry.base_url"
	KeyIndexTTLHours  = "registry.index_ttl_hours"
	KeyHTTPTimeoutSec = "http.timeout_seconds"
	KeyHTTPRetryMax   = "http.retry_max"
)

// Dir returns the path to the TypeDock config directory (~/.typedock/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.typedock/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	viper.SetDefault(KeyIndexURL, branding.RegistryIndexURL())
	viper.SetDefault(KeyBaseURL, branding.RegistryBaseURL())
	viper.SetDefault(KeyIndexTTLHours, 24)
	viper.SetDefault(KeyHTTPTimeoutSec, 30)
	viper.SetDefault(KeyHTTPRetryMax, 3)

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}
	viper.Set(key, value)
	if err := viper.WriteConfigAs(FilePath()); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// IndexURL returns the configured registry index URL.
func IndexURL() string { return viper.GetString(KeyIndexURL) }

// BaseURL returns the configured package metadata/tarball base URL.
func BaseURL() string { return viper.GetString(KeyBaseURL) }

// IndexTTL returns how long a registry index snapshot stays fresh.
func IndexTTL() time.Duration {
	return time.Duration(viper.GetInt(KeyIndexTTLHours)) * time.Hour
}

// HTTPTimeout returns the per-request HTTP timeout.
func HTTPTimeout() time.Duration {
	return time.Duration(viper.GetInt(KeyHTTPTimeoutSec)) * time.Second
}

// HTTPRetryMax returns the maximum number of HTTP retries.
func HTTPRetryMax() int { return viper.GetInt(KeyHTTPRetryMax) }
