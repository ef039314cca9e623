package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migratePruneCache bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the document store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		zap.L().Info("store migrated", zap.String("driver", cfg.Store.Driver))

		if migratePruneCache {
			n, err := st.DeleteExpiredResults(ctx)
			if err != nil {
				return eris.Wrap(err, "prune cached results")
			}
			zap.L().Info("expired cached results removed", zap.Int("rows", n))
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migratePruneCache, "prune-cache", false, "also delete expired cached results")
	rootCmd.AddCommand(migrateCmd)
}
