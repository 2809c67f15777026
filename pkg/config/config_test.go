package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points HOME and the working directory at an empty temp dir and clears VK_* variables.
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)

	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "VK_") {
			t.Setenv(key, "")
		}
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.BaseURL != "https://api.vk.com/method/" {
		t.Errorf("BaseURL = %s, want https://api.vk.com/method/", cfg.API.BaseURL)
	}
	if cfg.API.Version != "5.199" {
		t.Errorf("Version = %s, want 5.199", cfg.API.Version)
	}
	if cfg.Auth.OAuthURL != "https://oauth.vk.com/" {
		t.Errorf("OAuthURL = %s", cfg.Auth.OAuthURL)
	}
	if cfg.Cache.TTL != time.Minute {
		t.Errorf("Cache.TTL = %s, want 1m", cfg.Cache.TTL)
	}
	if cfg.Pagination.MaxConcurrency != 3 {
		t.Errorf("MaxConcurrency = %d, want 3", cfg.Pagination.MaxConcurrency)
	}
	if cfg.CacheEnabled() {
		t.Error("cache should be disabled without redis_addr")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	configPath := filepath.Join(dir, "config.yaml")

	writeFile(t, configPath, `
api:
  version: "5.131"
  lang: en
  timeout: 10s

auth:
  access_token: file-token
  client_id: "51234567"

cache:
  redis_addr: localhost:6379
  redis_db: 2
  ttl: 5m

log:
  level: debug
  pretty: true
  file: ~/vk.log

pagination:
  parallel: true
  max_concurrency: 8

server:
  addr: 127.0.0.1:9090
`)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.API.Version != "5.131" {
		t.Errorf("Version = %s, want 5.131", cfg.API.Version)
	}
	if cfg.API.Lang != "en" {
		t.Errorf("Lang = %s, want en", cfg.API.Lang)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("Timeout = %s, want 10s", cfg.API.Timeout)
	}
	// untouched keys keep their defaults
	if cfg.API.BaseURL != "https://api.vk.com/method/" {
		t.Errorf("BaseURL = %s, want default", cfg.API.BaseURL)
	}
	if cfg.Auth.AccessToken != "file-token" || cfg.Auth.ClientID != "51234567" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" || cfg.Cache.RedisDB != 2 || cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if !cfg.CacheEnabled() {
		t.Error("cache should be enabled")
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Pretty {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Log.File != filepath.Join(dir, "vk.log") {
		t.Errorf("Log.File = %s, want expanded path", cfg.Log.File)
	}
	if !cfg.Pagination.Parallel || cfg.Pagination.MaxConcurrency != 8 {
		t.Errorf("Pagination = %+v", cfg.Pagination)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("Server.Addr = %s", cfg.Server.Addr)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := isolate(t)

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "api: [unclosed")
	if _, err := LoadConfig(bad); err == nil {
		t.Error("expected error for invalid YAML")
	}

	badDuration := filepath.Join(dir, "duration.yaml")
	writeFile(t, badDuration, "cache:\n  ttl: soon\n")
	if _, err := LoadConfig(badDuration); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoadConfig_DefaultLocations(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		wantLang string
	}{
		{
			name:     "no files",
			wantLang: "",
		},
		{
			name:     "home config",
			files:    map[string]string{".vk-client/config.yaml": "api:\n  lang: ru\n"},
			wantLang: "ru",
		},
		{
			name: "current directory wins over home",
			files: map[string]string{
				".vk-client.yaml":        "api:\n  lang: en\n",
				".vk-client/config.yaml": "api:\n  lang: ru\n",
			},
			wantLang: "en",
		},
		{
			name:     "yml extension",
			files:    map[string]string{".vk-client.yml": "api:\n  lang: uk\n"},
			wantLang: "uk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			for name, content := range tt.files {
				writeFile(t, filepath.Join(dir, name), content)
			}

			cfg, err := LoadConfig("")
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if cfg.API.Lang != tt.wantLang {
				t.Errorf("Lang = %q, want %q", cfg.API.Lang, tt.wantLang)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := isolate(t)
	configPath := filepath.Join(dir, "config.yaml")
	writeFile(t, configPath, "auth:\n  access_token: file-token\nlog:\n  level: info\n")

	t.Setenv("VK_ACCESS_TOKEN", "env-token")
	t.Setenv("VK_API_VERSION", "5.200")
	t.Setenv("VK_REDIS_ADDR", "redis:6379")
	t.Setenv("VK_CACHE_TTL", "30s")
	t.Setenv("VK_LOG_LEVEL", "warn")
	t.Setenv("VK_MAX_CONCURRENCY", "5")
	t.Setenv("VK_PARALLEL", "yes")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Auth.AccessToken != "env-token" {
		t.Errorf("AccessToken = %s, want env-token", cfg.Auth.AccessToken)
	}
	if cfg.API.Version != "5.200" {
		t.Errorf("Version = %s, want 5.200", cfg.API.Version)
	}
	if cfg.Cache.RedisAddr != "redis:6379" || cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}
	if cfg.Pagination.MaxConcurrency != 5 || !cfg.Pagination.Parallel {
		t.Errorf("Pagination = %+v", cfg.Pagination)
	}
}

func TestEnvOverrides_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"VK_CACHE_TTL", "forever"},
		{"VK_API_TIMEOUT", "10"},
		{"VK_MAX_CONCURRENCY", "0"},
		{"VK_MAX_CONCURRENCY", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadConfig(""); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(c *Config) {}},
		{name: "empty version", modify: func(c *Config) { c.API.Version = "" }, wantErr: "api version"},
		{name: "bad base url", modify: func(c *Config) { c.API.BaseURL = "api.vk.com" }, wantErr: "base_url"},
		{name: "zero timeout", modify: func(c *Config) { c.API.Timeout = 0 }, wantErr: "api timeout"},
		{name: "negative ttl", modify: func(c *Config) { c.Cache.TTL = -time.Second }, wantErr: "cache ttl"},
		{name: "unknown log level", modify: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log level"},
		{name: "zero concurrency", modify: func(c *Config) { c.Pagination.MaxConcurrency = 0 }, wantErr: "max_concurrency"},
		{name: "zero pagination timeout", modify: func(c *Config) { c.Pagination.Timeout = 0 }, wantErr: "pagination timeout"},
		{name: "empty server addr", modify: func(c *Config) { c.Server.Addr = "" }, wantErr: "server addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
