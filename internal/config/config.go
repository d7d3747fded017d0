// ABOUTME: Configuration loading and parsing for the remote agent subsystem
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete agent subsystem configuration.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// AgentConfig holds deployment and RPC timing configuration.
type AgentConfig struct {
	// BinariesDir contains the bundled agent binaries and manifest.toml.
	BinariesDir string `yaml:"binaries_dir"`
	// RemoteDir is where the agent binary is installed on remote hosts.
	RemoteDir string `yaml:"remote_dir"`

	CallTimeout      time.Duration `yaml:"-"`
	HandshakeTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	CallTimeoutRaw      string `yaml:"call_timeout"`
	HandshakeTimeoutRaw string `yaml:"handshake_timeout"`
}

// StoreConfig holds the deployment cache database configuration.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
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

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Agent.RemoteDir == "" {
		c.Agent.RemoteDir = "~/.oxideterm"
	}
	if c.Agent.CallTimeout == 0 {
		c.Agent.CallTimeout = 30 * time.Second
	}
	if c.Agent.HandshakeTimeout == 0 {
		c.Agent.HandshakeTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
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

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Agent.BinariesDir == "" {
		return fmt.Errorf("agent.binaries_dir is required")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Agent.CallTimeoutRaw != "" {
		cfg.Agent.CallTimeout, err = time.ParseDuration(cfg.Agent.CallTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing call_timeout %q: %w", cfg.Agent.CallTimeoutRaw, err)
		}
	}

	if cfg.Agent.HandshakeTimeoutRaw != "" {
		cfg.Agent.HandshakeTimeout, err = time.ParseDuration(cfg.Agent.HandshakeTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing handshake_timeout %q: %w", cfg.Agent.HandshakeTimeoutRaw, err)
		}
	}

	return nil
}
