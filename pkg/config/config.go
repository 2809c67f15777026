// Package config loads the vk command configuration.
//
// Sources, highest precedence first:
//  1. Command-line flags (applied by the caller)
//  2. Environment variables (VK_*)
//  3. Configuration file
//  4. Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from configPath, or when it is empty from the
// first existing standard location:
//   - .vk-client.yaml (current directory)
//   - .vk-client.yml (current directory)
//   - ~/.vk-client/config.yaml
//   - ~/.vk-client/config.yml
//
// Missing standard files are not an error. Environment overrides are applied last.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(expandPath(configPath), cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		home, _ := os.UserHomeDir()
		defaultPaths := []string{
			".vk-client.yaml",
			".vk-client.yml",
			filepath.Join(home, ".vk-client", "config.yaml"),
			filepath.Join(home, ".vk-client", "config.yml"),
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := loadConfigFile(path, cfg); err != nil {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				break
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.Log.File = expandPath(cfg.Log.File)

	return cfg, nil
}

// loadConfigFile reads and parses a YAML config file
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies VK_* environment variables to cfg.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"VK_API_BASE_URL":  &cfg.API.BaseURL,
		"VK_API_VERSION":   &cfg.API.Version,
		"VK_LANG":          &cfg.API.Lang,
		"VK_USER_AGENT":    &cfg.API.UserAgent,
		"VK_ACCESS_TOKEN":  &cfg.Auth.AccessToken,
		"VK_CLIENT_ID":     &cfg.Auth.ClientID,
		"VK_CLIENT_SECRET": &cfg.Auth.ClientSecret,
		"VK_USERNAME":      &cfg.Auth.Username,
		"VK_PASSWORD":      &cfg.Auth.Password,
		"VK_REDIS_ADDR":    &cfg.Cache.RedisAddr,
		"VK_LOG_LEVEL":     &cfg.Log.Level,
		"VK_LOG_FILE":      &cfg.Log.File,
		"VK_SERVER_ADDR":   &cfg.Server.Addr,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"VK_API_TIMEOUT": &cfg.API.Timeout,
		"VK_CACHE_TTL":   &cfg.Cache.TTL,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("VK_MAX_CONCURRENCY"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("invalid VK_MAX_CONCURRENCY: %w", err)
		}
		cfg.Pagination.MaxConcurrency = n
	}
	if v := os.Getenv("VK_PARALLEL"); v != "" {
		cfg.Pagination.Parallel = parseBool(v)
	}
	if v := os.Getenv("VK_LOG_PRETTY"); v != "" {
		cfg.Log.Pretty = parseBool(v)
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// parsePositiveInt parses a string to a positive integer
func parsePositiveInt(s string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer from '%s': %w", s, err)
	}
	if i <= 0 {
		return 0, fmt.Errorf("value must be positive, got: %d", i)
	}
	return i, nil
}

// parseBool parses various boolean representations
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}

// Validate checks cross-field constraints. Call it after flags have been applied.
func (c *Config) Validate() error {
	if c.API.Version == "" {
		return fmt.Errorf("api version cannot be empty")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("api base_url must be an http(s) URL, got: %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive, got: %s", c.API.Timeout)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must be >= 0, got: %s", c.Cache.TTL)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	if c.Pagination.MaxConcurrency <= 0 {
		return fmt.Errorf("pagination max_concurrency must be positive, got: %d", c.Pagination.MaxConcurrency)
	}
	if c.Pagination.Timeout <= 0 {
		return fmt.Errorf("pagination timeout must be positive, got: %s", c.Pagination.Timeout)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr cannot be empty")
	}
	return nil
}

// CacheEnabled reports whether responses should be cached in Redis.
func (c *Config) CacheEnabled() bool {
	return c.Cache.RedisAddr != "" && c.Cache.TTL > 0
}
