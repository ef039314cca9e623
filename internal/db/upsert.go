package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes one bulk upsert.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // columns supplied per row
	ConflictKeys []string // unique constraint columns
	// UpdateExprs overrides the SET expression per column. Columns not
	// listed default to "col = EXCLUDED.col".
	UpdateExprs map[string]string
}

// BulkUpsert writes rows in one transaction: COPY into a temp table, then
// INSERT ... SELECT ... ON CONFLICT DO UPDATE into the target. Either every
// row lands or none does.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	temp := TempTableName(cfg.Table)
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{temp}.Sanitize(),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{temp}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy into temp table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, UpsertSQL(cfg))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: insert on conflict for %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

// TempTableName is the per-transaction staging table for table.
func TempTableName(table string) string {
	return "_tmp_upsert_" + strings.ReplaceAll(table, ".", "_")
}

// UpsertSQL renders the INSERT ... ON CONFLICT statement for cfg.
func UpsertSQL(cfg UpsertConfig) string {
	conflict := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		conflict[k] = true
	}

	var sets []string
	for _, col := range cfg.Columns {
		if conflict[col] {
			continue
		}
		q := pgx.Identifier{col}.Sanitize()
		expr, ok := cfg.UpdateExprs[col]
		if !ok {
			expr = "EXCLUDED." + q
		}
		sets = append(sets, q+" = "+expr)
	}

	cols := quoteAndJoin(cfg.Columns)
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table),
		cols,
		cols,
		pgx.Identifier{TempTableName(cfg.Table)}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys),
		action,
	)
}

func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
