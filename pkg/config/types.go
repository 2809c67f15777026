package config

import "time"

// Config is the complete configuration of the vk command.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Auth       AuthConfig       `yaml:"auth"`
	Cache      CacheConfig      `yaml:"cache"`
	Log        LogConfig        `yaml:"log"`
	Pagination PaginationConfig `yaml:"pagination"`
	Server     ServerConfig     `yaml:"server"`
}

// APIConfig describes how method calls are made.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Version   string        `yaml:"version"`
	Lang      string        `yaml:"lang"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// AuthConfig holds the access token, or the application credentials used to obtain one.
type AuthConfig struct {
	AccessToken  string `yaml:"access_token"`
	OAuthURL     string `yaml:"oauth_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Scope        string `yaml:"scope"`
}

// CacheConfig configures the Redis response cache. An empty RedisAddr disables it.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
	File   string `yaml:"file"`
}

// PaginationConfig controls how paginated methods are fetched.
type PaginationConfig struct {
	Parallel       bool          `yaml:"parallel"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ServerConfig configures vk serve.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultConfig returns a Config for anonymous calls against the public API without caching.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://api.vk.com/method/",
			Version:   "5.199",
			UserAgent: "vk-client/0.1.0",
			Timeout:   30 * time.Second,
		},
		Auth: AuthConfig{
			OAuthURL: "https://oauth.vk.com/",
		},
		Cache: CacheConfig{
			TTL: 60 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Pagination: PaginationConfig{
			MaxConcurrency: 3,
			Timeout:        15 * time.Second,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 60 * time.Second,
		},
	}
}
