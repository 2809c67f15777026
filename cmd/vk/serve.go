package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/vk-client/pkg/client"
	"github.com/Sternrassler/vk-client/pkg/logging"
	"github.com/Sternrassler/vk-client/pkg/metrics"
	"github.com/Sternrassler/vk-client/pkg/pagination"
	"github.com/Sternrassler/vk-client/pkg/results"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an HTTP proxy in front of the VK API",
		Long: `Run an HTTP proxy in front of the VK API.

Routes:
  GET  /health            liveness
  GET  /ready             Redis connectivity (always ready without a cache)
  GET  /metrics           Prometheus metrics
  GET|POST /method/{name} call a method; query and form values are its arguments.
                          With all=1 every page of a list method is fetched and
                          the merged result is returned.

Responses use the VK envelope: {"response": ...} or {"error": {...}}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")

	return cmd
}

func runServe(ctx context.Context, a *app) error {
	logger := logging.NewLogger("vk-proxy")

	redisClient := newRedis(a.cfg)
	if redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return fmt.Errorf("failed to connect to Redis at %s: %w", a.cfg.Cache.RedisAddr, err)
		}
		defer redisClient.Close()
		logger.Info().Str("addr", a.cfg.Cache.RedisAddr).Msg("Connected to Redis")
	}

	vk, err := client.New(clientConfig(a.cfg, redisClient))
	if err != nil {
		return fmt.Errorf("failed to create VK client: %w", err)
	}
	defer vk.Close()

	h := &proxyHandler{
		client:     vk,
		redis:      redisClient,
		pagination: paginationConfig(a.cfg),
		parallel:   a.cfg.Pagination.Parallel,
		timeout:    a.cfg.Server.RequestTimeout,
		logger:     logger,
	}

	server := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           h.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("api_version", a.cfg.API.Version).
			Bool("cache", redisClient != nil).
			Msg("Starting VK proxy server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("could not listen on %s: %w", server.Addr, err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Proxy server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info().Msg("Proxy server exited")
	return nil
}

// proxyHandler holds the dependencies of the proxy routes.
type proxyHandler struct {
	client     *client.Client
	redis      *redis.Client
	pagination pagination.Config
	parallel   bool
	timeout    time.Duration
	logger     zerolog.Logger
}

func (h *proxyHandler) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ready", readyHandler(h.redis)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/method/{method}", h.methodHandler).Methods(http.MethodGet, http.MethodPost)
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports whether the cache backend is reachable. A nil client means caching is off.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, fmt.Sprintf("redis unavailable: %v", err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func (h *proxyHandler) methodHandler(w http.ResponseWriter, r *http.Request) {
	method := mux.Vars(r)["method"]

	if err := r.ParseForm(); err != nil {
		http.Error(w, fmt.Sprintf("failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	args := formArgs(r.Form)
	all := args.Bool("all")
	delete(args, "all")

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	var (
		response any
		err      error
	)
	if all {
		if !results.Supported(results.Method(method)) {
			http.Error(w, fmt.Sprintf("%v: %s", results.ErrUnsupportedMethod, method), http.StatusBadRequest)
			return
		}
		if h.parallel {
			response, err = h.client.GetAllParallel(ctx, results.Method(method), args, h.pagination)
		} else {
			response, err = h.client.GetAll(ctx, results.Method(method), args)
		}
	} else {
		response, err = h.client.Call(ctx, method, args)
	}

	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			// VK reports method errors inside a 200 envelope
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			writeJSON(w, map[string]any{"error": apiErr})
			return
		}

		h.logger.Warn().Err(err).Str("method", method).Bool("all", all).Msg("Proxy request failed")
		http.Error(w, fmt.Sprintf("VK request failed: %v", err), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := writeJSON(w, map[string]any{"response": response}); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write response")
	}
}
