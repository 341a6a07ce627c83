package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/letsur-dev/claude-peak/internal/types"
)

const (
	defaultTokenURL  = "https://platform.claude.com/v1/oauth/token"
	defaultUsageURL  = "https://api.anthropic.com/api/oauth/usage"
	defaultClientID  = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	defaultScopes    = "user:profile user:inference"
	defaultUserAgent = "claude-code/2.0.32"

	DefaultIntervalSeconds = 60
)

// IntervalChoices are the polling cadences the settings UI offers, in
// seconds.
var IntervalChoices = []int{30, 60, 120, 300}

// Config is passed explicitly into the components that need it; there
// is no process-wide settings singleton.
type Config struct {
	PollingIntervalSeconds int    `yaml:"polling_interval_seconds"`
	LogLevel               string `yaml:"log_level"`

	// Endpoint overrides, primarily for testing against local fakes.
	TokenURL  string `yaml:"token_url"`
	UsageURL  string `yaml:"usage_url"`
	ClientID  string `yaml:"client_id"`
	Scopes    string `yaml:"scopes"`
	UserAgent string `yaml:"user_agent"`
}

// Dir returns the application config directory, ~/.config/claude-peak.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, ".config", "claude-peak"), nil
}

// Load reads config.yaml from the application config dir, then applies
// environment overrides. A missing file yields defaults; a malformed
// file is an error.
func Load() (Config, error) {
	// .env is optional and only consulted for the CLAUDE_PEAK_* overrides.
	_ = godotenv.Load()

	cfg := defaults()

	dir, err := Dir()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	cfg.normalize()
	return cfg, nil
}

func defaults() Config {
	return Config{
		PollingIntervalSeconds: DefaultIntervalSeconds,
		LogLevel:               "info",
		TokenURL:               defaultTokenURL,
		UsageURL:               defaultUsageURL,
		ClientID:               defaultClientID,
		Scopes:                 defaultScopes,
		UserAgent:              defaultUserAgent,
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CLAUDE_PEAK_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PollingIntervalSeconds = n
		}
	}
	if v := os.Getenv("CLAUDE_PEAK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CLAUDE_PEAK_TOKEN_URL"); v != "" {
		cfg.TokenURL = v
	}
	if v := os.Getenv("CLAUDE_PEAK_USAGE_URL"); v != "" {
		cfg.UsageURL = v
	}
	if v := os.Getenv("CLAUDE_PEAK_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
}

// normalize snaps out-of-range values back to defaults rather than
// failing: a stale config file should not keep the meter from starting.
func (c *Config) normalize() {
	if !validInterval(c.PollingIntervalSeconds) {
		c.PollingIntervalSeconds = DefaultIntervalSeconds
	}
	d := defaults()
	if c.TokenURL == "" {
		c.TokenURL = d.TokenURL
	}
	if c.UsageURL == "" {
		c.UsageURL = d.UsageURL
	}
	if c.ClientID == "" {
		c.ClientID = d.ClientID
	}
	if c.Scopes == "" {
		c.Scopes = d.Scopes
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

func validInterval(seconds int) bool {
	for _, choice := range IntervalChoices {
		if seconds == choice {
			return true
		}
	}
	return false
}

// Save writes the config back to config.yaml, creating the directory
// if needed. Used when the user changes the polling cadence.
func Save(cfg Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644)
}
