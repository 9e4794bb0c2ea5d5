// Package config loads the pkgx configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for pkgx.
type Config struct {
	// IndexURL is the package index endpoint. Defaults to pypi.org.
	// Supports ${ENV_VAR} expansion for private index credentials.
	IndexURL string `yaml:"index_url"`
	// TimeoutSeconds bounds each registry lookup during `pkgx list`.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// Parallelism bounds concurrent installs and metadata lookups.
	Parallelism int `yaml:"parallelism"`
	// CacheDir is passed to pip install commands via --cache-dir.
	CacheDir string `yaml:"cache_dir"`
	// Python is the interpreter used for venv creation.
	Python string `yaml:"python"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		IndexURL:       "https://pypi.org",
		TimeoutSeconds: 15,
		Parallelism:    4,
		CacheDir:       defaultCacheDir(),
		Python:         "python3",
	}
}

// envVarPattern matches ${VAR_NAME} placeholders.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// Load reads and parses a configuration file, expanding ${ENV_VAR}
// placeholders in the index URL. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.IndexURL = expandEnv(cfg.IndexURL)

	if cfg.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("timeout_seconds must be positive, got %d", cfg.TimeoutSeconds)
	}
	if cfg.Parallelism <= 0 {
		return nil, fmt.Errorf("parallelism must be positive, got %d", cfg.Parallelism)
	}

	return cfg, nil
}

// LoadOrDefault loads the config file at path when it exists, otherwise
// searches the standard location and finally falls back to defaults.
// The PKGX_INDEX_URL environment variable overrides the index URL.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = findConfigFile()
	}

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if indexURL := os.Getenv("PKGX_INDEX_URL"); indexURL != "" {
		cfg.IndexURL = indexURL
	}

	return cfg, nil
}

// Timeout returns the per-lookup timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// findConfigFile returns the standard config path when it exists.
func findConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".pkgx", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// expandEnv replaces ${VAR} placeholders with environment values.
// Unset variables expand to the empty string.
func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pkgx", "cache")
}
