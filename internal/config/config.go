package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Harry10012003/decision-support-tool/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AnalysisConfig holds the defaults and limits of every analysis
type AnalysisConfig struct {
	Sense                string  `mapstructure:"sense"`
	Alpha                float64 `mapstructure:"alpha"`
	MaxOptions           int     `mapstructure:"max_options"`
	MaxStates            int     `mapstructure:"max_states"`
	ProbabilityTolerance float64 `mapstructure:"probability_tolerance"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	AllowedChatIDs []int64       `mapstructure:"allowed_chat_ids"`
	UpdateTimeout  time.Duration `mapstructure:"update_timeout"`
}

// HTTPConfig holds HTTP API configuration
type HTTPConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// FetchConfig holds configuration for downloading linked spreadsheets
type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	MaxBytes       int64         `mapstructure:"max_bytes"`
	// AllowPrivateNetworks lets source_url and /url reach loopback, private and link-local hosts
	AllowPrivateNetworks bool `mapstructure:"allow_private_networks"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. DECISION_TELEGRAM_BOT_TOKEN
	v.SetEnvPrefix("DECISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Analysis defaults
	v.SetDefault("analysis.sense", "maximize")
	v.SetDefault("analysis.alpha", 0.6)
	v.SetDefault("analysis.max_options", 50)
	v.SetDefault("analysis.max_states", 50)
	v.SetDefault("analysis.probability_tolerance", 1e-6)

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.allowed_chat_ids", []int64{})
	v.SetDefault("telegram.update_timeout", "60s")

	// HTTP defaults
	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.max_body_bytes", 1<<20)

	// Fetch defaults
	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.retry_delay_base", "1s")
	v.SetDefault("fetch.max_bytes", 1<<20)
	v.SetDefault("fetch.allow_private_networks", false)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/decision.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Analysis config
	if _, err := models.ParseSense(c.Analysis.Sense); err != nil {
		return fmt.Errorf("analysis.sense: %w", err)
	}
	if c.Analysis.Alpha < 0.0 || c.Analysis.Alpha > 1.0 {
		return fmt.Errorf("analysis.alpha must be between 0.0 and 1.0")
	}
	if c.Analysis.MaxOptions < 1 {
		return fmt.Errorf("analysis.max_options must be at least 1")
	}
	if c.Analysis.MaxStates < 1 {
		return fmt.Errorf("analysis.max_states must be at least 1")
	}
	if c.Analysis.ProbabilityTolerance <= 0 || c.Analysis.ProbabilityTolerance >= 1 {
		return fmt.Errorf("analysis.probability_tolerance must be between 0 and 1")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
		if c.Telegram.UpdateTimeout < 1*time.Second {
			return fmt.Errorf("telegram.update_timeout must be at least 1 second")
		}
	}

	// Validate HTTP config
	if c.HTTP.Enabled {
		if c.HTTP.Addr == "" {
			return fmt.Errorf("http.addr is required when http is enabled")
		}
		if c.HTTP.MaxBodyBytes < 1 {
			return fmt.Errorf("http.max_body_bytes must be at least 1")
		}
	}
	if !c.HTTP.Enabled && !c.Telegram.Enabled {
		return fmt.Errorf("at least one of http.enabled and telegram.enabled must be true")
	}

	// Validate Fetch config
	if c.Fetch.MaxRetries < 1 {
		return fmt.Errorf("fetch.max_retries must be at least 1")
	}
	if c.Fetch.MaxBytes < 1 {
		return fmt.Errorf("fetch.max_bytes must be at least 1")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// ObjectiveSense returns the configured default objective sense.
// It assumes Validate has passed.
func (a AnalysisConfig) ObjectiveSense() models.Sense {
	sense, _ := models.ParseSense(a.Sense)
	return sense
}

// ChatAllowed reports whether the bot should answer chatID. An empty allow list admits everyone.
func (t TelegramConfig) ChatAllowed(chatID int64) bool {
	if len(t.AllowedChatIDs) == 0 {
		return true
	}
	for _, id := range t.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}
