// Package config provides configuration management for complaintdesk.
//
// This package handles loading configuration from environment variables,
// validating required settings, and providing sensible defaults for optional
// parameters. Configuration is loaded once at startup and remains immutable
// during runtime for thread-safety.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. A .env file in the working directory
//  3. Embedded defaults.env (fallback, included in binary)
//  4. Hard-coded defaults registered with viper (lowest priority)
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// embeddedEnv contains defaults.env embedded at build time.
//
// This lets the binary run standalone. It only carries template values;
// real credentials belong in the environment or a local .env file.
//
//go:embed defaults.env
var embeddedEnv string

// Config holds all application configuration.
//
// Keys map one-to-one to upper-case environment variables
// (base_url ↔ BASE_URL).
type Config struct {
	// Complaint service endpoints
	BaseURL    string `mapstructure:"base_url"`
	SignupPath string `mapstructure:"signup_path"`
	LoginPath  string `mapstructure:"login_path"`

	// HTTP client tuning
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	HTTPMaxConns int           `mapstructure:"http_max_conns"`

	// Admin credentials for the watch daemon (optional for interactive use)
	Email    string `mapstructure:"login_email"`
	Password string `mapstructure:"login_password"`

	// Retry configuration for the daemon's login
	MaxLoginRetries int           `mapstructure:"max_login_retries"`
	LoginRetryDelay time.Duration `mapstructure:"login_retry_delay"`

	// Watch daemon
	WatchInterval  time.Duration `mapstructure:"watch_interval"`
	WorkerPoolSize int           `mapstructure:"worker_pool_size"`

	// Local state (session cookies, notification ledger, TUI log file)
	StateDir string `mapstructure:"state_dir"`

	// Telegram configuration (optional)
	TelegramBotToken string  `mapstructure:"telegram_bot_token"`
	TelegramChatID   int64   `mapstructure:"telegram_chat_id"`
	TelegramRate     float64 `mapstructure:"telegram_rate"`

	// Health check and metrics server
	HealthCheckPort string `mapstructure:"health_check_port"`

	// Logging: LogPretty is "auto", "true" or "false"
	LogLevel  string `mapstructure:"log_level"`
	LogPretty string `mapstructure:"log_pretty"`

	// Debug mode logs outgoing Telegram messages instead of sending them
	DebugMode bool `mapstructure:"debug_mode"`
}

// setDefaults registers the hard-coded defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("signup_path", "/signup")
	v.SetDefault("login_path", "/login")

	v.SetDefault("http_timeout", "30s")
	v.SetDefault("http_max_conns", 100)

	v.SetDefault("login_email", "")
	v.SetDefault("login_password", "")
	v.SetDefault("max_login_retries", 3)
	v.SetDefault("login_retry_delay", "5s")

	v.SetDefault("watch_interval", "1m")
	v.SetDefault("worker_pool_size", 4)

	v.SetDefault("state_dir", ".complaintdesk")

	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("telegram_chat_id", 0)
	v.SetDefault("telegram_rate", 20.0)

	v.SetDefault("health_check_port", "8081")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", "auto")

	v.SetDefault("debug_mode", false)
}

// LoadConfig loads configuration from the environment with defaults.
//
// Loading process:
//  1. Load a local .env file if present (does not override set variables)
//  2. Apply embedded defaults.env for anything still unset
//  3. Read every key through viper (environment wins over defaults)
//  4. Validate
//
// Returns:
//   - *Config: Fully populated configuration struct
//   - error: Validation error if a value is unusable
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	envMap, err := godotenv.Unmarshal(embeddedEnv)
	if err == nil {
		for k, val := range envMap {
			if _, set := os.LookupEnv(k); !set {
				os.Setenv(k, val)
			}
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that values are sensible.
//
// Validation rules:
//   - BASE_URL must be an absolute http(s) URL
//   - Paths must start with "/"
//   - Durations and counts must be positive
//   - LOG_LEVEL must be a level zerolog understands
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}

	for key, path := range map[string]string{"SIGNUP_PATH": c.SignupPath, "LOGIN_PATH": c.LoginPath} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with '/', got %q", key, path)
		}
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.HTTPTimeout)
	}
	if c.HTTPMaxConns < 1 {
		return fmt.Errorf("HTTP_MAX_CONNS must be at least 1, got %d", c.HTTPMaxConns)
	}
	if c.MaxLoginRetries < 1 {
		return fmt.Errorf("MAX_LOGIN_RETRIES must be at least 1, got %d", c.MaxLoginRetries)
	}
	if c.WatchInterval < time.Second {
		return fmt.Errorf("WATCH_INTERVAL must be at least 1s, got %v", c.WatchInterval)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be at least 1, got %d", c.WorkerPoolSize)
	}
	if c.TelegramRate <= 0 {
		return fmt.Errorf("TELEGRAM_RATE must be positive, got %v", c.TelegramRate)
	}
	if c.StateDir == "" {
		return fmt.Errorf("STATE_DIR cannot be empty")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.LogLevel)
	}
	switch c.LogPretty {
	case "auto", "true", "false":
	default:
		return fmt.Errorf("LOG_PRETTY must be auto, true or false, got %q", c.LogPretty)
	}

	return nil
}

// ValidateDaemon checks the extra settings the unattended watch daemon needs.
func (c *Config) ValidateDaemon() error {
	if c.Email == "" {
		return fmt.Errorf("LOGIN_EMAIL environment variable is required")
	}
	if c.Password == "" {
		return fmt.Errorf("LOGIN_PASSWORD environment variable is required")
	}
	return nil
}

// TelegramEnabled reports whether both Telegram settings are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}
