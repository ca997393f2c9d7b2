// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultDir = ".tidepool"

// Loader resolves and reads the config file.
//
// The base directory is resolved in this order:
//  1. TIDEPOOL_CONFIG environment variable.
//  2. User home directory.
//  3. /tmp (containerized environments without a home dir).
type Loader struct {
	baseDir string
}

// NewLoader creates a config loader. It never fails: with no home
// directory Load simply returns defaults.
func NewLoader() *Loader {
	if dir := os.Getenv("TIDEPOOL_CONFIG"); dir != "" {
		return &Loader{baseDir: dir}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return &Loader{baseDir: "/tmp"}
	}
	return &Loader{baseDir: home}
}

// Path returns the config file location.
func (l *Loader) Path() string {
	return filepath.Join(l.baseDir, defaultDir, "config.yaml")
}

// Load reads the config file, returning defaults when it does not
// exist. Environment overrides are applied after the file.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(l.Path())
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", l.Path(), err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", l.Path(), err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", l.Path(), err)
	}
	return cfg, nil
}

// Save writes the config file, creating the directory if needed.
func (l *Loader) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.Path()), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return os.WriteFile(l.Path(), data, 0o644)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TIDEPOOL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
