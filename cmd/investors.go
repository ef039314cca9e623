package main

import (
	"github.com/spf13/cobra"
)

var investorsRefresh bool

var investorsCmd = &cobra.Command{
	Use:   "investors <product>",
	Short: "Resolve the investors of one product",
	Long:  "Looks the product up by id, name, project name, or normalized name and resolves every investment to its client.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.ResolveProductInvestors(ctx, args[0], investorsRefresh)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), res, outputFormat)
	},
}

func init() {
	investorsCmd.Flags().BoolVar(&investorsRefresh, "refresh", false, "bypass the result cache")
	rootCmd.AddCommand(investorsCmd)
}
