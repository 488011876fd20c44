package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends selectable with STORAGE_BACKEND.
const (
	BackendMemory     = "memory"
	BackendBadger     = "badger"
	BackendSQLite     = "sqlite"
	BackendClickHouse = "clickhouse"
)

// Config holds the application configuration
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Port     string `env:"PORT" envDefault:"8080"`

	// CORS origins for the browser front end
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	Storage    StorageConfig    `envPrefix:"STORAGE_"`
	ClickHouse ClickHouseConfig `envPrefix:"CLICKHOUSE_"`
	Telegram   TelegramConfig
	Gemini     GeminiConfig `envPrefix:"GEMINI_"`
	Library    LibraryConfig
}

// StorageConfig selects and locates the persistence adapter.
type StorageConfig struct {
	Backend    string `env:"BACKEND" envDefault:"badger"`
	DataDir    string `env:"DATA_DIR" envDefault:"./data/badger"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./data/lms.db"`
}

// ClickHouseConfig is used when the clickhouse backend is selected.
type ClickHouseConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"9000"`
	Database string `env:"DATABASE" envDefault:"default"`
	User     string `env:"USER" envDefault:"default"`
	Password string `env:"PASSWORD"`
	UseTLS   bool   `env:"USE_TLS"`
}

// TelegramConfig enables the bot when Token is set.
type TelegramConfig struct {
	Token          string  `env:"TELEGRAM_BOT_TOKEN"`
	AllowedUserIDs []int64 `env:"ALLOWED_USER_IDS" envSeparator:","`

	// Bot mode configuration
	WebhookMode bool   `env:"WEBHOOK_MODE"` // If true, use webhook mode; if false, use polling mode
	WebhookURL  string `env:"WEBHOOK_URL"`  // URL for webhook (required if WebhookMode is true)
}

// GeminiConfig configures blurb generation. Without an API key a static
// fallback is served.
type GeminiConfig struct {
	APIKey  string        `env:"API_KEY"`
	Model   string        `env:"MODEL" envDefault:"gemini-2.5-flash"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// LibraryConfig holds circulation rules and demo seeding.
type LibraryConfig struct {
	LoanPeriodDays int  `env:"LOAN_PERIOD_DAYS" envDefault:"14"`
	SeedOnStart    bool `env:"SEED_ON_START" envDefault:"true"`
	SeedStudents   int  `env:"SEED_STUDENTS" envDefault:"15"`
	SeedBooks      int  `env:"SEED_BOOKS" envDefault:"20"`
}

// BotEnabled reports whether a Telegram token was configured.
func (c *Config) BotEnabled() bool {
	return c.Telegram.Token != ""
}

// IsDevelopment reports whether the console logger should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

// LoanPeriod converts LoanPeriodDays to a duration.
func (c *Config) LoanPeriod() time.Duration {
	return time.Duration(c.Library.LoanPeriodDays) * 24 * time.Hour
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	return parse(env.Options{})
}

// Parse loads configuration from the given variables instead of the process
// environment.
func Parse(environment map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case BackendMemory, BackendBadger, BackendSQLite:
	case BackendClickHouse:
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required when STORAGE_BACKEND is clickhouse")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q (want memory, badger, sqlite or clickhouse)", c.Storage.Backend)
	}

	if c.BotEnabled() {
		if len(c.Telegram.AllowedUserIDs) == 0 {
			return fmt.Errorf("ALLOWED_USER_IDS is required when TELEGRAM_BOT_TOKEN is set (comma-separated list of Telegram user IDs)")
		}
		if c.Telegram.WebhookMode && c.Telegram.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	if c.Library.LoanPeriodDays <= 0 {
		return fmt.Errorf("LOAN_PERIOD_DAYS must be positive, got %d", c.Library.LoanPeriodDays)
	}
	if c.Library.SeedStudents < 0 || c.Library.SeedBooks < 0 {
		return fmt.Errorf("SEED_STUDENTS and SEED_BOOKS must not be negative")
	}
	return nil
}
