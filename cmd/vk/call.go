package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newCallCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [key=value...]",
		Short: "Call a single API method and print its response",
		Example: `  vk call users.get user_ids=1 fields=photo_50,city
  vk call wall.get owner_id=-1 count=5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			methodArgs, err := parseArgs(args[1:])
			if err != nil {
				return err
			}

			vk, cleanup, err := newClient(a.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := vk.Call(cmd.Context(), args[0], methodArgs)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), json.RawMessage(data))
		},
	}
}
