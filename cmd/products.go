package main

import (
	"github.com/spf13/cobra"
)

var (
	productsMax     int
	productsRefresh bool
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List every product with its investors and catalog statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		cat, err := env.Service.ListAllProductsWithInvestors(ctx, productsMax, productsRefresh)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), cat, outputFormat)
	},
}

func init() {
	productsCmd.Flags().IntVar(&productsMax, "max", 0, "maximum products to return (default from config)")
	productsCmd.Flags().BoolVar(&productsRefresh, "refresh", false, "bypass the result cache")
	rootCmd.AddCommand(productsCmd)
}
