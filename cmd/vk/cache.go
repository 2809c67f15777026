package main

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/vk-client/pkg/cache"
	"github.com/spf13/cobra"
)

var errCacheDisabled = errors.New("response cache is disabled (set cache.redis_addr or --redis-addr)")

func newCacheCommand(a *app) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the Redis response cache",
	}
	cacheCmd.AddCommand(newCachePurgeCommand(a))
	return cacheCmd
}

func newCachePurgeCommand(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "purge [method]",
		Short: "Delete cached responses of a method, for every token",
		Example: `  vk cache purge wall.get
  vk cache purge --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := ""
			if len(args) == 1 {
				method = args[0]
			}
			if method == "" && !all {
				return errors.New("name a method or pass --all")
			}

			redisClient := newRedis(a.cfg)
			if redisClient == nil {
				return errCacheDisabled
			}
			defer redisClient.Close()

			deleted, err := cache.NewManager(redisClient).Purge(cmd.Context(), method)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d cached responses\n", deleted)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every cached VK response")
	return cmd
}
