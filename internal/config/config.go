// Package config loads solve-service settings from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings needed to reach the solving service and
// shape solve requests.
type Config struct {
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"`
	TimeoutSec int    `yaml:"timeout_sec"`
	LogPath    string `yaml:"log_path"`
	LiveLog    bool   `yaml:"live_log"`

	// Timeout is derived from timeout_sec and the OPTIMIZER_TIMEOUT
	// override.
	Timeout time.Duration `yaml:"-"`
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides, and resolves the API key.
//
// Overrides: OPTIMIZER_API_URL, OPTIMIZER_API_KEY, OPTIMIZER_API_KEY_FILE,
// OPTIMIZER_TIMEOUT, OPTIMIZER_LOG_PATH.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Timeout: 5 * time.Minute,
		LogPath: "results.log",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if cfg.TimeoutSec > 0 {
		cfg.Timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	cfg.APIURL = GetEnv("OPTIMIZER_API_URL", cfg.APIURL)
	cfg.APIKey = GetEnv("OPTIMIZER_API_KEY", cfg.APIKey)
	cfg.APIKeyFile = GetEnv("OPTIMIZER_API_KEY_FILE", cfg.APIKeyFile)
	cfg.Timeout = GetDurationEnv("OPTIMIZER_TIMEOUT", cfg.Timeout)
	cfg.LogPath = GetEnv("OPTIMIZER_LOG_PATH", cfg.LogPath)

	if secret := GetSecretFile(cfg.APIKeyFile); secret != "" {
		cfg.APIKey = secret
	}

	if cfg.APIURL == "" {
		return nil, fmt.Errorf("api_url is required")
	}
	return cfg, nil
}
