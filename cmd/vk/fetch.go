package main

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/vk-client/pkg/logging"
	"github.com/Sternrassler/vk-client/pkg/results"
	"github.com/spf13/cobra"
)

func newFetchCommand(a *app) *cobra.Command {
	var (
		parallel       bool
		maxConcurrency int
	)

	cmd := &cobra.Command{
		Use:   "fetch <method> [key=value...]",
		Short: "Fetch every page of a list method and print the merged result",
		Long: fmt.Sprintf(`Fetch every page of a list method and print the merged result.

Supported methods: %s

With extended=1 the profiles and groups of all pages are merged by id.`,
			strings.Join(methodNames(), ", ")),
		Example: `  vk fetch wall.get owner_id=-1
  vk fetch wall.get domain=apiclub extended=1 --parallel`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := results.Method(args[0])
			if !results.Supported(method) {
				return fmt.Errorf("%w: %s", results.ErrUnsupportedMethod, method)
			}

			methodArgs, err := parseArgs(args[1:])
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("parallel") {
				a.cfg.Pagination.Parallel = parallel
			}
			if cmd.Flags().Changed("max-concurrency") {
				a.cfg.Pagination.MaxConcurrency = maxConcurrency
			}

			vk, cleanup, err := newClient(a.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var res *results.Result
			if a.cfg.Pagination.Parallel {
				res, err = vk.GetAllParallel(cmd.Context(), method, methodArgs, paginationConfig(a.cfg))
			} else {
				res, err = vk.GetAll(cmd.Context(), method, methodArgs)
			}
			if err != nil {
				if res != nil {
					logger := logging.NewLogger("vk-cli")
					logger.Warn().
						Str("method", string(method)).
						Int("items", len(res.Items)).
						Msg("Discarding partial result")
				}
				return err
			}

			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().BoolVar(&parallel, "parallel", false, "Fetch pages concurrently")
	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "Concurrent page requests with --parallel")

	return cmd
}

func methodNames() []string {
	methods := results.Methods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return names
}
