package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration indicates conflicting or invalid configuration.
var ErrConfiguration = errors.New("invalid configuration")

// DefaultLogLevel applies when neither a config file nor the environment
// sets one.
const DefaultLogLevel = "WARNING"

// Config is the typed record handed to the core by the adapter layer.
type Config struct {
	// PostgresURI selects the relational backend when set.
	PostgresURI string `yaml:"postgres_uri"`

	// SQLiteURI selects the embedded backend when set (sqlite:///path).
	SQLiteURI string `yaml:"sqlite_uri"`

	// LogLevel is one of DEBUG, INFO, WARNING, ERROR, CRITICAL.
	LogLevel string `yaml:"log_level"`
}

// fileLocations are probed in order; later files override earlier ones and
// the environment overrides them all.
var fileLocations = []string{
	"/etc/monico/config.yaml", // system-wide
	"~/.monico/config.yaml",   // user's home directory
	"./.monico.yaml",          // current working directory
}

var validLogLevels = map[string]bool{
	"DEBUG":    true,
	"INFO":     true,
	"WARNING":  true,
	"ERROR":    true,
	"CRITICAL": true,
}

// Load builds the configuration from config files and the environment, then
// validates it. With neither backend URI set, the embedded backend at
// ~/.monic/monico.db is the default.
func Load() (*Config, error) {
	cfg := &Config{LogLevel: DefaultLogLevel}

	for _, location := range fileLocations {
		if err := cfg.loadFile(expandHome(location)); err != nil {
			return nil, err
		}
	}
	cfg.loadEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.PostgresURI == "" && cfg.SQLiteURI == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: cannot resolve home directory for default database: %v", ErrConfiguration, err)
		}
		cfg.SQLiteURI = "sqlite://" + filepath.Join(home, ".monic", "monico.db")
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}
	if file.PostgresURI != "" {
		c.PostgresURI = file.PostgresURI
	}
	if file.SQLiteURI != "" {
		c.SQLiteURI = file.SQLiteURI
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	return nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv("POSTGRES_URI"); v != "" {
		c.PostgresURI = v
	}
	if v := os.Getenv("SQLITE_URI"); v != "" {
		c.SQLiteURI = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) validate() error {
	if c.PostgresURI != "" && c.SQLiteURI != "" {
		return fmt.Errorf("%w: only one storage backend can be used at a time, found both POSTGRES_URI and SQLITE_URI", ErrConfiguration)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("%w: invalid log level %q, valid values are DEBUG, INFO, WARNING, ERROR, CRITICAL", ErrConfiguration, c.LogLevel)
	}
	return nil
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
