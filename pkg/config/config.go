// Package config loads gateway configuration from a YAML file with
// BOTGATE_* environment overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	envConfigPath         = "BOTGATE_CONFIG"
	envTelegramBotToken   = "TELEGRAM_BOT_TOKEN"
	envSlackBotToken      = "SLACK_BOT_TOKEN"
	envSlackSigningSecret = "SLACK_SIGNING_SECRET"
)

// Config is the root runtime configuration.
type Config struct {
	Gateway  GatewayConfig  `koanf:"gateway" yaml:"gateway"`
	Store    StoreConfig    `koanf:"store" yaml:"store"`
	Push     PushConfig     `koanf:"push" yaml:"push"`
	History  HistoryConfig  `koanf:"history" yaml:"history"`
	Channels ChannelsConfig `koanf:"channels" yaml:"channels"`
	Logging  LoggingConfig  `koanf:"logging" yaml:"logging,omitempty"`
}

// GatewayConfig configures HTTP bind settings.
type GatewayConfig struct {
	Host string `koanf:"host" yaml:"host"`
	Port int    `koanf:"port" yaml:"port"`
}

// StoreConfig selects the message store backend.
type StoreConfig struct {
	// Driver is "sqlite" or "memory"; empty disables persistence.
	Driver string `koanf:"driver" yaml:"driver"`
	Path   string `koanf:"path" yaml:"path,omitempty"`
}

// PushConfig configures the asynchronous push endpoint.
type PushConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Token   string `koanf:"token" yaml:"token,omitempty"`
	Path    string `koanf:"path" yaml:"path,omitempty"`
}

// HistoryConfig configures the message retrieval endpoints.
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Token   string `koanf:"token" yaml:"token,omitempty"`
	Path    string `koanf:"path" yaml:"path,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `koanf:"telegram" yaml:"telegram"`
	Slack    SlackConfig    `koanf:"slack" yaml:"slack"`
	Console  ConsoleConfig  `koanf:"console" yaml:"console"`
}

// TelegramConfig configures the Telegram channel adapter.
type TelegramConfig struct {
	Enabled   bool     `koanf:"enabled" yaml:"enabled"`
	Token     string   `koanf:"token" yaml:"token,omitempty"`
	Secret    string   `koanf:"secret" yaml:"secret,omitempty"`
	AllowFrom []string `koanf:"allowfrom" yaml:"allowfrom,omitempty"`
}

// SlackConfig configures the Slack channel adapter.
type SlackConfig struct {
	Enabled       bool   `koanf:"enabled" yaml:"enabled"`
	BotToken      string `koanf:"bottoken" yaml:"bottoken,omitempty"`
	SigningSecret string `koanf:"signingsecret" yaml:"signingsecret,omitempty"`
}

// ConsoleConfig configures the local console adapter.
type ConsoleConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `koanf:"format" yaml:"format,omitempty"`
	Level     string `koanf:"level" yaml:"level,omitempty"`
	AddSource bool   `koanf:"addsource" yaml:"addsource,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{Host: "0.0.0.0", Port: 8090},
		Store:   StoreConfig{Driver: "memory"},
		History: HistoryConfig{Path: "/history"},
	}
}

// Load resolves the active config file, parses it, then overlays
// environment overrides.
func Load() (*Config, error) {
	path, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadFile(path)
}

// LoadFile reads configuration from the given YAML file. A missing file
// yields the defaults plus environment overrides.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// BOTGATE_PUSH_TOKEN -> push.token, BOTGATE_GATEWAY_PORT -> gateway.port
	if err := k.Load(env.Provider("BOTGATE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "BOTGATE_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "", "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("invalid store.driver %q: must be sqlite or memory", c.Store.Driver)
	}

	if c.Push.Enabled && c.Push.Token == "" {
		return fmt.Errorf("push.token is required when push is enabled")
	}

	if c.History.Enabled {
		if c.History.Token == "" {
			return fmt.Errorf("history.token is required when history is enabled")
		}
		if c.Store.Driver == "" {
			return fmt.Errorf("history requires a configured store")
		}
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port %d is out of range", c.Gateway.Port)
	}

	return nil
}

// applyEnvOverrides injects channel credentials from their conventional
// environment variables on top of file config.
func applyEnvOverrides(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if token := strings.TrimSpace(os.Getenv(envSlackBotToken)); token != "" {
		cfg.Channels.Slack.BotToken = token
	}
	if secret := strings.TrimSpace(os.Getenv(envSlackSigningSecret)); secret != "" {
		cfg.Channels.Slack.SigningSecret = secret
	}
}

// ParseCSV splits comma-separated values and returns a trimmed compact slice.
func ParseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is BOTGATE_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("BOTGATE_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.yaml"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	// No file anywhere: run on defaults and environment alone.
	return candidates[0], nil
}
