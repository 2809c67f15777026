// Package client provides the VK API HTTP client with response caching,
// paginated result merging and error handling.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/vk-client/pkg/cache"
	"github.com/Sternrassler/vk-client/pkg/pagination"
	"github.com/Sternrassler/vk-client/pkg/params"
	"github.com/Sternrassler/vk-client/pkg/results"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for VK client operations.
var (
	vkRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vk_requests_total",
		Help: "Total VK API calls by method and status",
	}, []string{"method", "status"})

	vkRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vk_request_duration_seconds",
		Help:    "VK API request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	vkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vk_errors_total",
		Help: "Total VK API errors by class",
	}, []string{"class"})
)

// Defaults for Config.
const (
	DefaultBaseURL    = "https://api.vk.com/method/"
	DefaultAPIVersion = "5.199"
	DefaultUserAgent  = "vk-client/0.1.0"
	DefaultTimeout    = 30 * time.Second
	DefaultCacheTTL   = 60 * time.Second
)

// Client is the main VK API client.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	baseURL    *url.URL
	scope      string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis client for response caching (nil disables the cache)
	Redis *redis.Client

	// AccessToken is sent with every call (empty for anonymous calls)
	AccessToken string

	// APIVersion is the "v" parameter, e.g. "5.199"
	APIVersion string

	// BaseURL is the method endpoint prefix
	BaseURL string

	// Lang selects the language of returned strings ("" for the server default)
	Lang string

	// UserAgent header
	UserAgent string

	// Timeout per HTTP request
	Timeout time.Duration

	// CacheTTL is how long successful responses stay cached (0 disables the cache)
	CacheTTL time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, accessToken string) Config {
	return Config{
		Redis:       redis,
		AccessToken: accessToken,
		APIVersion:  DefaultAPIVersion,
		BaseURL:     DefaultBaseURL,
		UserAgent:   DefaultUserAgent,
		Timeout:     DefaultTimeout,
		CacheTTL:    DefaultCacheTTL,
	}
}

// New creates a new VK client.
func New(cfg Config) (*Client, error) {
	if cfg.APIVersion == "" {
		return nil, fmt.Errorf("api version is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.CacheTTL < 0 {
		return nil, fmt.Errorf("cache_ttl must be >= 0 (got %s)", cfg.CacheTTL)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Initialize logger
	logger := log.With().Str("component", "vk-client").Logger()

	var cacheManager *cache.Manager
	if cfg.Redis != nil && cfg.CacheTTL > 0 {
		cacheManager = cache.NewManager(cfg.Redis)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:   cacheManager,
		baseURL: baseURL,
		scope:   cache.ScopeForToken(cfg.AccessToken),
		config:  cfg,
		logger:  logger,
	}, nil
}

// envelope is the top-level shape of every VK API response.
type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *APIError       `json:"error"`
}

// Call invokes method with args and returns the "response" member of the reply.
// Successful replies are served from and stored in the cache when one is configured.
func (c *Client) Call(ctx context.Context, method string, args params.Args) (json.RawMessage, error) {
	values := params.Encode(args)

	// version and language change the reply, so they are part of the key
	keyParams := make(url.Values, len(values)+2)
	for k, v := range values {
		keyParams[k] = v
	}
	keyParams.Set("v", c.config.APIVersion)
	if c.config.Lang != "" {
		keyParams.Set("lang", c.config.Lang)
	}

	cacheKey := cache.CacheKey{
		Method: method,
		Params: keyParams,
		Scope:  c.scope,
	}

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("method", method).Msg("Cache hit")
			vkRequestsTotal.WithLabelValues(method, "cached").Inc()
			return entry.Data, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("method", method).Msg("Cache get error")
		}
	}

	data, err := c.do(ctx, method, values)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, cache.NewEntry(data, c.config.CacheTTL)); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("method", method).
				Dur("ttl", c.config.CacheTTL).
				Msg("Cached response")
		}
	}

	return data, nil
}

// do performs a single HTTP round trip for method.
func (c *Client) do(ctx context.Context, method string, values url.Values) (json.RawMessage, error) {
	startTime := time.Now()
	defer func() {
		vkRequestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	form := make(url.Values, len(values)+3)
	for k, v := range values {
		form[k] = v
	}
	if c.config.AccessToken != "" {
		form.Set("access_token", c.config.AccessToken)
	}
	form.Set("v", c.config.APIVersion)
	if c.config.Lang != "" {
		form.Set("lang", c.config.Lang)
	}

	endpoint := c.baseURL.JoinPath(method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.Debug().
		Str("method", method).
		Msg("Executing VK request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Msg("HTTP request failed")
		vkErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		vkRequestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, &RequestError{Method: method, ErrorClass: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		vkErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		vkRequestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, &RequestError{Method: method, StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Err: fmt.Errorf("read body: %w", err)}
	}

	status := strconv.Itoa(resp.StatusCode)

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		vkErrorsTotal.WithLabelValues(string(errClass)).Inc()
		vkRequestsTotal.WithLabelValues(method, status).Inc()

		c.logger.Warn().
			Str("method", method).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("VK request error")

		return nil, &RequestError{Method: method, StatusCode: resp.StatusCode, ErrorClass: errClass, Err: errors.New(resp.Status)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		vkErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		vkRequestsTotal.WithLabelValues(method, "decode_error").Inc()
		return nil, &RequestError{Method: method, StatusCode: resp.StatusCode, ErrorClass: ErrorClassDecode, Err: fmt.Errorf("decode envelope: %w", err)}
	}

	if env.Error != nil {
		env.Error.Method = method
		vkErrorsTotal.WithLabelValues(string(ErrorClassAPI)).Inc()
		vkRequestsTotal.WithLabelValues(method, "api_error").Inc()

		c.logger.Warn().
			Str("method", method).
			Int("error_code", env.Error.Code).
			Str("error_msg", env.Error.Message).
			Msg("VK API error")

		return nil, env.Error
	}

	if env.Response == nil {
		vkErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		vkRequestsTotal.WithLabelValues(method, "decode_error").Inc()
		return nil, &RequestError{Method: method, StatusCode: resp.StatusCode, ErrorClass: ErrorClassDecode, Err: errors.New("envelope has neither response nor error")}
	}

	vkRequestsTotal.WithLabelValues(method, status).Inc()
	return env.Response, nil
}

// FetchPage fetches one page of a paginated method. It implements pagination.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, method results.Method, args params.Args, offset, count int) (results.Page, error) {
	data, err := c.Call(ctx, string(method), args.With("offset", offset).With("count", count))
	if err != nil {
		return results.Page{}, err
	}

	page, err := DecodePage(data, args.Bool("extended"))
	if err != nil {
		return results.Page{}, fmt.Errorf("%s at offset %d: %w", method, offset, err)
	}
	return page, nil
}

// DecodePage decodes and validates a list response.
// "count" and "items" are always required; "profiles" and "groups" are required in extended mode.
func DecodePage(data json.RawMessage, extended bool) (results.Page, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return results.Page{}, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	required := []string{"count", "items"}
	if extended {
		required = append(required, "profiles", "groups")
	}
	for _, key := range required {
		if raw, ok := fields[key]; !ok || string(raw) == "null" {
			return results.Page{}, fmt.Errorf("%w: missing %q", ErrMalformedPage, key)
		}
	}

	var page results.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return results.Page{}, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}
	return page, nil
}

// GetAll fetches every page of method sequentially and returns the merged result.
func (c *Client) GetAll(ctx context.Context, method results.Method, args params.Args) (*results.Result, error) {
	return pagination.Collect(ctx, c, method, args)
}

// GetAllParallel fetches the pages of method with a worker pool and returns the merged result.
func (c *Client) GetAllParallel(ctx context.Context, method results.Method, args params.Args, cfg pagination.Config) (*results.Result, error) {
	return pagination.NewBatchFetcher(c, cfg).FetchAll(ctx, method, args)
}

// Close closes the client and releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager (for testing). Nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
