package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	TrustedProxies     []string

	// Persistence
	DataBackend  string
	SQLiteDBPath string
	SeedDir      string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID         string
	GoogleAlertsSheetName       string
	GoogleTransactionsSheetName string
	GoogleOAuthClientFile       string
	GoogleOAuthTokenFile        string
	GoogleOAuthClientJSON       string
	GoogleOAuthTokenJSON        string
	SheetsWritesPerMinute       int

	// Alerts
	AlertStartupDelay          time.Duration
	AlertRefreshInterval       time.Duration
	AlertDueWindowDays         int
	AlertSpikeThresholdPercent int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/saldo.db"),
		SeedDir:      getEnv("SEED_DIR", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "saldo"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "alerts"),

		GoogleSpreadsheetID:         getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleAlertsSheetName:       getEnv("GOOGLE_ALERTS_SHEET_NAME", "Alerts"),
		GoogleTransactionsSheetName: getEnv("GOOGLE_TRANSACTIONS_SHEET_NAME", "Transactions"),
		GoogleOAuthClientFile:       getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:        getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON:       getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:        getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
		SheetsWritesPerMinute:       getEnvInt("SHEETS_WRITES_PER_MINUTE", 60),

		AlertStartupDelay:          getEnvDuration("ALERT_STARTUP_DELAY", time.Second),
		AlertRefreshInterval:       getEnvDuration("ALERT_REFRESH_INTERVAL", time.Hour),
		AlertDueWindowDays:         getEnvInt("ALERT_DUE_WINDOW_DAYS", 3),
		AlertSpikeThresholdPercent: getEnvInt("ALERT_SPIKE_THRESHOLD_PERCENT", 20),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR such as 203.0.113.0/24", cidr))
		}
	}

	switch c.DataBackend {
	case BackendMemory:
		if c.SeedDir != "" {
			if info, err := os.Stat(c.SeedDir); err != nil || !info.IsDir() {
				errors = append(errors, fmt.Sprintf("seed directory does not exist: %s", c.SeedDir))
			}
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, []string{BackendMemory, BackendSQLite}))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsWritesPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid sheets write rate %d: must be 0 (unlimited) or positive", c.SheetsWritesPerMinute))
	}

	if c.AlertStartupDelay < 0 {
		errors = append(errors, fmt.Sprintf("invalid alert startup delay %v: must not be negative", c.AlertStartupDelay))
	}
	if c.AlertRefreshInterval != 0 && c.AlertRefreshInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid alert refresh interval %v: must be 0 (disabled) or at least 1 second", c.AlertRefreshInterval))
	} else if c.AlertRefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid alert refresh interval %v: must be at most 24 hours", c.AlertRefreshInterval))
	}
	if c.AlertDueWindowDays < 1 || c.AlertDueWindowDays > 365 {
		errors = append(errors, fmt.Sprintf("invalid due window %d: must be between 1 and 365 days", c.AlertDueWindowDays))
	}
	if c.AlertSpikeThresholdPercent < 0 || c.AlertSpikeThresholdPercent > 1000 {
		errors = append(errors, fmt.Sprintf("invalid spike threshold %d: must be between 0 and 1000 percent", c.AlertSpikeThresholdPercent))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateSheets checks the settings needed by the Google Sheets components.
// Only the binaries that talk to Sheets call it.
func (c *Config) ValidateSheets() error {
	var errors []string

	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required")
	}
	if c.GoogleAlertsSheetName == "" {
		errors = append(errors, "GOOGLE_ALERTS_SHEET_NAME cannot be empty")
	}
	if c.GoogleTransactionsSheetName == "" {
		errors = append(errors, "GOOGLE_TRANSACTIONS_SHEET_NAME cannot be empty")
	}

	hasClientFile := c.GoogleOAuthClientFile != ""
	if !hasClientFile && c.GoogleOAuthClientJSON == "" {
		errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided")
	}
	hasTokenFile := c.GoogleOAuthTokenFile != ""
	if !hasTokenFile && c.GoogleOAuthTokenJSON == "" {
		errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided")
	}
	if hasClientFile {
		if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
		}
	}
	if hasTokenFile {
		if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("sheets configuration invalid:\n- %s", strings.Join(errors, "\n- "))
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
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
