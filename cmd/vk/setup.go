package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Sternrassler/vk-client/pkg/client"
	"github.com/Sternrassler/vk-client/pkg/config"
	"github.com/Sternrassler/vk-client/pkg/pagination"
	"github.com/Sternrassler/vk-client/pkg/params"
	"github.com/redis/go-redis/v9"
)

// newRedis returns nil when caching is disabled.
func newRedis(cfg *config.Config) *redis.Client {
	if !cfg.CacheEnabled() {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr: cfg.Cache.RedisAddr,
		DB:   cfg.Cache.RedisDB,
	})
}

func clientConfig(cfg *config.Config, redisClient *redis.Client) client.Config {
	return client.Config{
		Redis:       redisClient,
		AccessToken: cfg.Auth.AccessToken,
		APIVersion:  cfg.API.Version,
		BaseURL:     cfg.API.BaseURL,
		Lang:        cfg.API.Lang,
		UserAgent:   cfg.API.UserAgent,
		Timeout:     cfg.API.Timeout,
		CacheTTL:    cfg.Cache.TTL,
	}
}

func paginationConfig(cfg *config.Config) pagination.Config {
	return pagination.Config{
		MaxConcurrency: cfg.Pagination.MaxConcurrency,
		Timeout:        cfg.Pagination.Timeout,
		BufferSize:     pagination.DefaultConfig().BufferSize,
	}
}

// newClient builds a client and its optional Redis connection from cfg.
// The returned cleanup releases both.
func newClient(cfg *config.Config) (*client.Client, func(), error) {
	redisClient := newRedis(cfg)

	vk, err := client.New(clientConfig(cfg, redisClient))
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, fmt.Errorf("failed to create VK client: %w", err)
	}

	cleanup := func() {
		vk.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}
	return vk, cleanup, nil
}

// parseArgs turns key=value arguments into method arguments.
func parseArgs(pairs []string) (params.Args, error) {
	args := make(params.Args, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", pair)
		}
		args[key] = value
	}
	return args, nil
}

// formArgs converts request values to method arguments, dropping the keys the client sets itself.
func formArgs(form url.Values) params.Args {
	args := make(params.Args, len(form))
	for key, values := range form {
		args[key] = strings.Join(values, ",")
	}
	delete(args, "access_token")
	delete(args, "v")
	return args
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
