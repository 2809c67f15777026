// Command vk calls VK API methods, merges paginated results and serves them over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/vk-client/pkg/auth"
	"github.com/Sternrassler/vk-client/pkg/client"
	"github.com/Sternrassler/vk-client/pkg/config"
	"github.com/Sternrassler/vk-client/pkg/logging"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCommand(a).ExecuteContext(ctx)
	a.close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(mapErrorToExitCode(err))
	}
}

// app carries state shared by all subcommands once the root command has loaded it.
type app struct {
	cfg       *config.Config
	logCloser io.Closer
}

func (a *app) close() {
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}

func newRootCommand(a *app) *cobra.Command {
	var (
		configPath string
		token      string
		apiVersion string
		lang       string
		redisAddr  string
		logLevel   string
		logPretty  bool
	)

	rootCmd := &cobra.Command{
		Use:   "vk",
		Short: "Call VK API methods and merge paginated results",
		Long: `vk is a command-line client for the VK API.

It calls single methods, fetches every page of list methods such as wall.get
and merges them into one result, and can run as an HTTP proxy with a Redis
response cache and Prometheus metrics.

Configuration is read from --config, .vk-client.yaml or ~/.vk-client/config.yaml,
then VK_* environment variables, then flags.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("token") {
				cfg.Auth.AccessToken = token
			}
			if flags.Changed("api-version") {
				cfg.API.Version = apiVersion
			}
			if flags.Changed("lang") {
				cfg.API.Lang = lang
			}
			if flags.Changed("redis-addr") {
				cfg.Cache.RedisAddr = redisAddr
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if flags.Changed("log-pretty") {
				cfg.Log.Pretty = logPretty
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			_, closer, err := logging.Setup(logging.Config{
				Level:  logging.LogLevel(cfg.Log.Level),
				Pretty: cfg.Log.Pretty,
				Output: cmd.ErrOrStderr(),
				File:   cfg.Log.File,
			})
			if err != nil {
				return err
			}

			a.cfg = cfg
			a.logCloser = closer
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: .vk-client.yaml or ~/.vk-client/config.yaml)")
	pf.StringVar(&token, "token", "", "Access token (overrides VK_ACCESS_TOKEN)")
	pf.StringVar(&apiVersion, "api-version", "", "API version sent as v")
	pf.StringVar(&lang, "lang", "", "Language of returned strings")
	pf.StringVar(&redisAddr, "redis-addr", "", "Redis address for the response cache (empty disables it)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&logPretty, "log-pretty", false, "Human-readable log output")

	rootCmd.AddCommand(
		newCallCommand(a),
		newFetchCommand(a),
		newTokenCommand(a),
		newServeCommand(a),
		newCacheCommand(a),
	)

	return rootCmd
}

// mapErrorToExitCode maps errors to process exit codes.
func mapErrorToExitCode(err error) int {
	if err == nil {
		return 0
	}

	var (
		authErr       *auth.AuthError
		captchaErr    *auth.CaptchaError
		validationErr *auth.ValidationError
		reqErr        *client.RequestError
	)

	// transport failures first: an unreachable OAuth server says nothing about the credentials
	if errors.As(err, &authErr) && authErr.Transport {
		return 3
	}
	if errors.As(err, &reqErr) && reqErr.ErrorClass == client.ErrorClassNetwork {
		return 3 // Network errors
	}

	if errors.Is(err, client.ErrInvalidToken) ||
		errors.Is(err, client.ErrAccessDenied) ||
		errors.As(err, &authErr) ||
		errors.As(err, &captchaErr) ||
		errors.As(err, &validationErr) {
		return 2 // Authentication/authorization errors
	}

	return 1 // General error
}
