package main

import (
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/investor-resolver/internal/importer"
)

var (
	importCollection string
	importIDField    string
	importSheet      string
	importDelimiter  string
)

var importCmd = &cobra.Command{
	Use:   "import <file-or-url>",
	Short: "Load a JSON, CSV, or XLSX file into a collection",
	Long:  "Reads a local path or an http(s) URL. The format is picked from the file extension.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts := importer.Options{IDField: importIDField, SheetName: importSheet}
		if importDelimiter != "" {
			r, size := utf8.DecodeRuneInString(importDelimiter)
			if size != len(importDelimiter) {
				return eris.Errorf("delimiter must be a single character, got %q", importDelimiter)
			}
			opts.Delimiter = r
		}

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		collection := importCollection
		if collection == "" {
			collection = cfg.Collections.Investments
		}

		docs, err := importer.NewDownloader().ReadSource(ctx, args[0], opts)
		if err != nil {
			return err
		}

		res, err := env.Fetcher.Write(ctx, collection, docs)
		if err != nil {
			return eris.Wrap(err, "import documents")
		}

		zap.L().Info("import complete",
			zap.String("source", args[0]),
			zap.String("collection", collection),
			zap.Int("read", len(docs)),
			zap.Int("written", res.Written),
			zap.Int("failed", len(res.Failed)),
		)
		return writeOutput(cmd.OutOrStdout(), res, outputFormat)
	},
}

func init() {
	importCmd.Flags().StringVar(&importCollection, "collection", "", "target collection (default: the investments collection)")
	importCmd.Flags().StringVar(&importIDField, "id-field", "id", "field holding the document id")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	importCmd.Flags().StringVar(&importDelimiter, "delimiter", "", "CSV delimiter (default ',')")
	rootCmd.AddCommand(importCmd)
}
