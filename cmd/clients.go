package main

import (
	"github.com/spf13/cobra"
)

var clientsCmd = &cobra.Command{
	Use:   "clients <id>...",
	Short: "Look clients up by document id or spreadsheet id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.LookupClients(ctx, args)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), res, outputFormat)
	},
}

func init() {
	rootCmd.AddCommand(clientsCmd)
}
