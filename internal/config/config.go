// ABOUTME: Configuration loading and parsing for the shop chat client.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default polling bounds for the auth resume loop. These are observable
// timing contracts: 30 attempts, 10 seconds apart, after a 2 second initial
// delay.
const (
	DefaultPollMaxAttempts  = 30
	DefaultPollInterval     = 10 * time.Second
	DefaultPollInitialDelay = 2 * time.Second
)

// Config represents the complete client configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Prompt   PromptConfig   `yaml:"prompt"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the chat backend address and tenant identity
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	ShopID  string `yaml:"shop_id"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PromptConfig selects the system prompt for each turn.
// Type names a stored prompt; Override, when set, is sent verbatim and
// wins over any stored version.
type PromptConfig struct {
	Type     string `yaml:"type"`
	Override string `yaml:"override"`
}

// AuthConfig holds authorization resume polling configuration
type AuthConfig struct {
	PollMaxAttempts  int           `yaml:"poll_max_attempts"`
	PollInterval     time.Duration `yaml:"-"`
	PollInitialDelay time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	PollIntervalRaw     string `yaml:"poll_interval"`
	PollInitialDelayRaw string `yaml:"poll_initial_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with all defaults applied and no file
// input. Server fields must still be set by the caller.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "shop-chat.db"
	}
	if c.Prompt.Type == "" {
		c.Prompt.Type = "standardAssistant"
	}
	if c.Auth.PollMaxAttempts == 0 {
		c.Auth.PollMaxAttempts = DefaultPollMaxAttempts
	}
	if c.Auth.PollInterval == 0 {
		c.Auth.PollInterval = DefaultPollInterval
	}
	if c.Auth.PollInitialDelay == 0 {
		c.Auth.PollInitialDelay = DefaultPollInitialDelay
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Server.ShopID == "" {
		return fmt.Errorf("server.shop_id is required")
	}
	if c.Auth.PollMaxAttempts < 1 {
		return fmt.Errorf("auth.poll_max_attempts must be positive")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.PollIntervalRaw != "" {
		cfg.Auth.PollInterval, err = time.ParseDuration(cfg.Auth.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_interval %q: %w", cfg.Auth.PollIntervalRaw, err)
		}
	}

	if cfg.Auth.PollInitialDelayRaw != "" {
		cfg.Auth.PollInitialDelay, err = time.ParseDuration(cfg.Auth.PollInitialDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_initial_delay %q: %w", cfg.Auth.PollInitialDelayRaw, err)
		}
	}

	return nil
}
