// Package common provides shared utilities for FolioSync
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for FolioSync
type Config struct {
	Environment string              `toml:"environment"`
	Server      ServerConfig        `toml:"server"`
	Sheet       SheetConfig         `toml:"sheet"`
	TimeSeries  TimeSeriesConfig    `toml:"timeseries"`
	Sync        SyncConfig          `toml:"sync"`
	Columns     map[string][]string `toml:"columns"` // per-field header alias overrides
	Logging     LoggingConfig       `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SheetConfig holds the spreadsheet source configuration
type SheetConfig struct {
	SpreadsheetID   string `toml:"spreadsheet_id"`
	ReadRange       string `toml:"read_range"`
	CredentialsFile string `toml:"credentials_file"` // path to service account JSON
	CredentialsJSON string `toml:"credentials_json"` // inline service account JSON, wins over the file
	RateLimit       int    `toml:"rate_limit"`
	Timeout         string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *SheetConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Configured reports whether the sheet source has enough settings to be used
func (c *SheetConfig) Configured() bool {
	return c.SpreadsheetID != "" && (c.CredentialsFile != "" || c.CredentialsJSON != "")
}

// TimeSeriesConfig holds the time-series store configuration
type TimeSeriesConfig struct {
	URL       string `toml:"url"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Database  string `toml:"database"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *TimeSeriesConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Configured reports whether the store has enough settings to be used
func (c *TimeSeriesConfig) Configured() bool {
	return c.URL != ""
}

// SyncConfig holds sync scheduling and failure policy
type SyncConfig struct {
	Interval string `toml:"interval"`
	Auto     bool   `toml:"auto"`     // run scheduled syncs
	OnStart  bool   `toml:"on_start"` // run one sync immediately at startup
	// When a cycle fetched fresh data but the store write failed, still
	// surface the fresh snapshot instead of the previous one.
	UpdateDisplayOnWriteFailure bool `toml:"update_display_on_write_failure"`
}

// GetInterval parses and returns the sync interval
func (c *SyncConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Sheet: SheetConfig{
			ReadRange: "A1:Z3000",
			RateLimit: 5,
			Timeout:   "30s",
		},
		TimeSeries: TimeSeriesConfig{
			URL:       "http://localhost:8086",
			Database:  "portfolio",
			RateLimit: 10,
			Timeout:   "30s",
		},
		Sync: SyncConfig{
			Interval:                    "30m",
			Auto:                        true,
			OnStart:                     true,
			UpdateDisplayOnWriteFailure: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIO_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FOLIO_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FOLIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if id := os.Getenv("FOLIO_SHEET_ID"); id != "" {
		config.Sheet.SpreadsheetID = id
	}
	if rng := os.Getenv("FOLIO_SHEET_RANGE"); rng != "" {
		config.Sheet.ReadRange = rng
	}
	if path := os.Getenv("FOLIO_SHEET_CREDENTIALS"); path != "" {
		config.Sheet.CredentialsFile = path
	}
	// Standard Google env var applies only when nothing else set the path
	if config.Sheet.CredentialsFile == "" && config.Sheet.CredentialsJSON == "" {
		if path := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
			config.Sheet.CredentialsFile = path
		}
	}

	if url := os.Getenv("FOLIO_INFLUX_URL"); url != "" {
		config.TimeSeries.URL = url
	}
	if user := os.Getenv("FOLIO_INFLUX_USERNAME"); user != "" {
		config.TimeSeries.Username = user
	}
	if pass := os.Getenv("FOLIO_INFLUX_PASSWORD"); pass != "" {
		config.TimeSeries.Password = pass
	}
	if db := os.Getenv("FOLIO_INFLUX_DATABASE"); db != "" {
		config.TimeSeries.Database = db
	}

	if interval := os.Getenv("FOLIO_SYNC_INTERVAL"); interval != "" {
		config.Sync.Interval = interval
	}
	if auto := os.Getenv("FOLIO_SYNC_AUTO"); auto != "" {
		if b, err := strconv.ParseBool(auto); err == nil {
			config.Sync.Auto = b
		}
	}
}

// ValidateRequired returns the settings that must be present before the
// sheet source can sync. The server still starts without them; sync and
// status report the unconfigured state instead.
func (c *Config) ValidateRequired() []string {
	var missing []string
	if c.Sheet.SpreadsheetID == "" {
		missing = append(missing, "sheet.spreadsheet_id")
	}
	if c.Sheet.CredentialsFile == "" && c.Sheet.CredentialsJSON == "" {
		missing = append(missing, "sheet.credentials_file or sheet.credentials_json")
	}
	if c.TimeSeries.URL == "" {
		missing = append(missing, "timeseries.url")
	}
	if c.TimeSeries.Database == "" {
		missing = append(missing, "timeseries.database")
	}
	return missing
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
