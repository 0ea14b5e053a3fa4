// internal/common/config/config.go
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// APIConfig points the transport at the loan-origination backend.
type APIConfig struct {
	BaseURL   string  `mapstructure:"base_url"`
	APIPrefix string  `mapstructure:"api_prefix"`
	Timeout   int     `mapstructure:"timeout"`    // milliseconds, 0 = no client timeout
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst int     `mapstructure:"rate_burst"`
}

// SessionConfig selects where the access token and UI preferences persist.
type SessionConfig struct {
	Store string      `mapstructure:"store"` // file | redis | memory
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// APIURL joins the base URL and the API prefix.
func (a APIConfig) APIURL() string {
	return strings.TrimRight(a.BaseURL, "/") + "/" + strings.Trim(a.APIPrefix, "/")
}

// DefaultSessionPath is ~/.loan-console/state.json, or a relative path when
// the home directory cannot be resolved.
func DefaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".loan-console", "state.json")
	}
	return filepath.Join(home, ".loan-console", "state.json")
}
