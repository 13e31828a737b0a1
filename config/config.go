// Package config loads runtime settings from environment variables, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// Search configuration
	SearchURL       string  `env:"SEARCH_URL" envDefault:"https://www.kleinanzeigen.de/s-pc-zubehoer-software/ddr5/k0c225"`
	RequiredKeyword string  `env:"REQUIRED_KEYWORD" envDefault:"DDR5"`
	MinPrice        float64 `env:"MIN_PRICE" envDefault:"50"`
	MaxPrice        float64 `env:"MAX_PRICE" envDefault:"500"`
	MaxPages        int     `env:"MAX_PAGES" envDefault:"5"`

	// Comma-separated extra title keywords that disqualify a listing.
	ExcludedKeywords []string `env:"EXCLUDED_KEYWORDS" envSeparator:","`

	// Loop and resilience configuration
	ScanInterval       time.Duration `env:"SCAN_INTERVAL" envDefault:"60s"`
	RequestDelayMin    time.Duration `env:"REQUEST_DELAY_MIN" envDefault:"2s"`
	RequestDelayMax    time.Duration `env:"REQUEST_DELAY_MAX" envDefault:"4s"`
	FetchMaxRetries    int           `env:"FETCH_MAX_RETRIES" envDefault:"3"`
	FetchRetryBase     time.Duration `env:"FETCH_RETRY_BASE_DELAY" envDefault:"2s"`
	SessionRotateEvery int           `env:"SESSION_ROTATE_EVERY" envDefault:"50"`

	// Notification configuration
	TelegramBotToken string   `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatIDs  []string `env:"TELEGRAM_CHAT_IDS" envSeparator:","`

	// Reference price lookup. Empty disables the lookup.
	GeizhalsURL string `env:"GEIZHALS_URL" envDefault:"https://geizhals.de"`

	// Daily digest cron expression. Empty disables the digest.
	DigestCron string `env:"DIGEST_CRON" envDefault:"0 9 * * *"`

	// Storage and API
	DBPath  string `env:"DB_PATH" envDefault:"./data/ramwatch.db"`
	APIPort int    `env:"API_PORT" envDefault:"5250"`
}

// LoadConfig reads a .env file when present, then parses the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate collects every configuration problem instead of stopping at the
// first one.
func (c *Config) Validate() error {
	var problems []string

	if c.SearchURL == "" {
		problems = append(problems, "SEARCH_URL must not be empty")
	}
	if c.MinPrice < 0 {
		problems = append(problems, "MIN_PRICE must not be negative")
	}
	if c.MaxPrice < c.MinPrice {
		problems = append(problems, "MAX_PRICE must be >= MIN_PRICE")
	}
	if c.MaxPages < 1 {
		problems = append(problems, "MAX_PAGES must be at least 1")
	}
	if c.ScanInterval <= 0 {
		problems = append(problems, "SCAN_INTERVAL must be positive")
	}
	if c.RequestDelayMin < 0 || c.RequestDelayMax < c.RequestDelayMin {
		problems = append(problems, "REQUEST_DELAY_MIN/MAX must form a valid window")
	}
	if c.FetchMaxRetries < 0 {
		problems = append(problems, "FETCH_MAX_RETRIES must not be negative")
	}
	if c.SessionRotateEvery < 0 {
		problems = append(problems, "SESSION_ROTATE_EVERY must not be negative")
	}
	if c.TelegramBotToken != "" && len(c.TelegramChatIDs) == 0 {
		problems = append(problems, "TELEGRAM_CHAT_IDS must be set when TELEGRAM_BOT_TOKEN is set")
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		problems = append(problems, fmt.Sprintf("API_PORT %d is out of range", c.APIPort))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// TelegramEnabled reports whether notification delivery is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && len(c.TelegramChatIDs) > 0
}
