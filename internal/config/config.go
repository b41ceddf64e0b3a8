package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	DataBackendREST   = "rest"
	DataBackendMemory = "memory"

	StateBackendSQLite = "sqlite"
	StateBackendFile   = "file"
	StateBackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port          string
	SecureCookies bool

	// Ledger API
	APIBaseURL  string
	DataBackend string

	// Client state
	StateBackend string
	SQLiteDBPath string
	StateFile    string
	Profile      string

	// Sessions and caching
	SessionCacheSize int
	SessionIdleTTL   time.Duration
	ListCacheTTL     time.Duration

	// UI
	RedirectDelay  time.Duration
	CurrencySymbol string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export (optional)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8081"),
		SecureCookies: getEnvBool("SECURE_COOKIES", false),

		APIBaseURL:  getEnv("API_BASE_URL", "http://localhost:5000"),
		DataBackend: getEnv("DATA_BACKEND", DataBackendREST),

		StateBackend: getEnv("STATE_BACKEND", StateBackendSQLite),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledgerly.db"),
		StateFile:    getEnv("STATE_FILE", defaultStateFile()),
		Profile:      getEnv("PROFILE", "default"),

		SessionCacheSize: getEnvInt("SESSION_CACHE_SIZE", 1000),
		SessionIdleTTL:   getEnvDuration("SESSION_IDLE_TTL", 12*time.Hour),
		ListCacheTTL:     getEnvDuration("LIST_CACHE_TTL", 0),

		RedirectDelay:  getEnvDuration("REDIRECT_DELAY", 1500*time.Millisecond),
		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "₹"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledgerly.events"),
		AMQPQueue:    getEnv("AMQP_QUEUE", ""),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ExportEnabled reports whether a target spreadsheet is configured.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// EventsEnabled reports whether an AMQP broker is configured.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validData := []string{DataBackendREST, DataBackendMemory}
	if !slices.Contains(validData, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validData))
	}
	if c.DataBackend == DataBackendREST {
		if u, err := url.Parse(c.APIBaseURL); err != nil || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s'", c.APIBaseURL))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	}

	validState := []string{StateBackendSQLite, StateBackendFile, StateBackendMemory}
	if !slices.Contains(validState, c.StateBackend) {
		errors = append(errors, fmt.Sprintf("invalid state backend '%s': must be one of %v", c.StateBackend, validState))
	}
	switch c.StateBackend {
	case StateBackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite state backend")
		} else if err := ensureDir(c.SQLiteDBPath); err != nil {
			errors = append(errors, err.Error())
		}
	case StateBackendFile:
		if c.StateFile == "" {
			errors = append(errors, "state file path cannot be empty when using file state backend")
		}
	}

	if strings.TrimSpace(c.Profile) == "" {
		errors = append(errors, "profile name cannot be empty")
	}

	if c.SessionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid session cache size %d: must be at least 1", c.SessionCacheSize))
	}
	if c.SessionIdleTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session idle TTL %v: must be at least 1 minute", c.SessionIdleTTL))
	}
	if c.ListCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid list cache TTL %v: must not be negative", c.ListCacheTTL))
	}
	if c.RedirectDelay < 0 || c.RedirectDelay > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid redirect delay %v: must be between 0 and 1 minute", c.RedirectDelay))
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
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create SQLite database directory '%s': %v", dir, err)
		}
	}
	return nil
}

func defaultStateFile() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ledgerly", "state.json")
	}
	return ".ledgerly-state.json"
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
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
