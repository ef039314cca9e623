package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var backfillDryRun bool

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Store product ids on investment records that lack one",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.BackfillProductIDs(ctx, backfillDryRun)
		if err != nil {
			return err
		}
		if len(res.Failed) > 0 {
			zap.L().Warn("backfill left records without a product id", zap.Int("failed", len(res.Failed)))
		}
		return writeOutput(cmd.OutOrStdout(), res, outputFormat)
	},
}

func init() {
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "plan the updates without writing")
	rootCmd.AddCommand(backfillCmd)
}
