// Package config loads karja's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath points at an alternate config file when set.
const EnvConfigPath = "KARJA_CONFIG"

// Config is the full karja configuration.
type Config struct {
	Tool      string        `yaml:"tool"`
	Profile   string        `yaml:"profile,omitempty"`
	Region    string        `yaml:"region,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
	DataDir   string        `yaml:"data_dir,omitempty"`
	PolicyDir string        `yaml:"policy_dir,omitempty"`
	NoColor   bool          `yaml:"no_color,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Tool:    "aws",
		Timeout: 30 * time.Second,
		DataDir: defaultDataDir(),
	}
}

// Load reads and validates the config file at path. Missing keys keep
// their defaults, so a one-line file overriding the profile is valid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault resolves the config location and loads it, falling back
// to defaults when no file exists anywhere on the search path.
func LoadOrDefault(explicit string) (*Config, error) {
	path := Find(explicit)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Find resolves the config file location: the explicit path when given,
// then $KARJA_CONFIG, then ~/.config/karja/karja.yaml. Returns "" when
// nothing applies. An explicit path is returned without an existence
// check so a typo surfaces as a read error instead of silent defaults.
func Find(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".config", "karja", "karja.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Validate ensures config has usable values.
func (c *Config) Validate() error {
	if c.Tool == "" {
		return fmt.Errorf("tool is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// JournalPath is where the action journal database lives.
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, "journal.db")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "karja-data"
	}
	return filepath.Join(home, ".local", "share", "karja")
}
