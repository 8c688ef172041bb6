package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"yield_sim/internal/config"
)

// Config is an alias for the project's main configuration struct
type Config = config.Config

// LoadConfig delegates to the project's config loader. An empty path yields
// the validated defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = config.DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		var err error
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	// Pre-flight Checks
	if err := checkPreFlight(cfg); err != nil {
		return nil, fmt.Errorf("pre-flight checks failed: %w", err)
	}

	return cfg, nil
}

// checkPreFlight performs environment checks beyond schema validation
func checkPreFlight(cfg *Config) error {
	if cfg.Store.Path == ":memory:" {
		return nil
	}

	dir := filepath.Dir(cfg.Store.Path)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("store directory not found: %s", dir)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("store directory is not a directory: %s", dir)
	}

	// An existing database must not be writable by other users
	if info, err := os.Stat(cfg.Store.Path); err == nil {
		if mode := info.Mode().Perm(); mode&0o002 != 0 {
			return fmt.Errorf("insecure permissions on store %s: %04o (world writable)", cfg.Store.Path, mode)
		}
	}
	return nil
}
