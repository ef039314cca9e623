package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/investor-resolver/internal/model"
)

// SQLiteStore implements DocumentStore using modernc.org/sqlite. Fields are
// stored as JSON text and queried with the JSON1 functions.
type SQLiteStore struct {
	db      *sql.DB
	limits  Limits
	nowFunc func() time.Time
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string, limits Limits) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, limits: limits.withDefaults(), nowFunc: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	fields     TEXT NOT NULL DEFAULT '{}',
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);

CREATE TABLE IF NOT EXISTS result_cache (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_result_cache_expires_at ON result_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Limits() Limits { return s.limits }

func (s *SQLiteStore) FetchAll(ctx context.Context, collection string, filter *Filter) ([]model.Document, error) {
	var b strings.Builder
	args := []any{collection}
	b.WriteString(`SELECT id, fields FROM documents WHERE collection = ?`)

	if filter != nil && filter.Field != "" {
		text, err := fieldText(filter.Value)
		if err != nil {
			return nil, err
		}
		// json_extract yields 1/0 for JSON booleans; compare them as true/false
		// like Postgres ->> does.
		b.WriteString(` AND CASE json_type(fields, ?) WHEN 'true' THEN 'true' WHEN 'false' THEN 'false'` +
			` ELSE CAST(json_extract(fields, ?) AS TEXT) END = ?`)
		path := jsonPath(filter.Field)
		args = append(args, path, path, text)
	}
	b.WriteString(` ORDER BY id`)
	if filter != nil && filter.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	docs, err := s.query(ctx, b.String(), args...)
	return docs, eris.Wrapf(err, "sqlite: fetch all %s", collection)
}

func (s *SQLiteStore) FetchByIDs(ctx context.Context, collection string, ids []string) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > s.limits.MaxIDsPerQuery {
		return nil, eris.Wrapf(ErrTooManyIDs, "sqlite: %d ids, limit %d", len(ids), s.limits.MaxIDsPerQuery)
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	q := `SELECT id, fields FROM documents WHERE collection = ? AND id IN (?` +
		strings.Repeat(`, ?`, len(ids)-1) + `) ORDER BY id`

	docs, err := s.query(ctx, q, args...)
	return docs, eris.Wrapf(err, "sqlite: fetch by ids %s", collection)
}

func (s *SQLiteStore) FetchByField(ctx context.Context, collection, field string, value any) ([]model.Document, error) {
	return s.FetchAll(ctx, collection, &Filter{Field: field, Value: value})
}

func (s *SQLiteStore) WriteBatch(ctx context.Context, collection string, docs []model.Document) ([]model.WriteOutcome, error) {
	if len(docs) > s.limits.MaxBatchSize {
		return nil, eris.Wrapf(ErrBatchTooLarge, "sqlite: %d documents, limit %d", len(docs), s.limits.MaxBatchSize)
	}

	payloads, outcomes := encodeFields(docs)
	if len(payloads) == 0 {
		return outcomes, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin write batch")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (collection, id, fields, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET
		   fields = json_patch(documents.fields, excluded.fields),
		   updated_at = excluded.updated_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare write batch")
	}
	defer stmt.Close() //nolint:errcheck

	now := s.nowFunc().UTC().UnixMilli()
	for i, d := range docs {
		payload, ok := payloads[i]
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, collection, d.ID, string(payload), now); err != nil {
			return nil, eris.Wrapf(err, "sqlite: upsert %s/%s", collection, d.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit write batch")
	}
	return outcomes, nil
}

func (s *SQLiteStore) GetCachedResult(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM result_cache WHERE key = ? AND expires_at > ?`,
		key, s.nowFunc().UTC().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached result")
	}
	return value, nil
}

func (s *SQLiteStore) SetCachedResult(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.nowFunc().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO result_cache (key, value, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, value, now.UnixMilli(), now.Add(ttl).UnixMilli(),
	)
	return eris.Wrap(err, "sqlite: set cached result")
}

func (s *SQLiteStore) DeleteExpiredResults(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM result_cache WHERE expires_at <= ?`,
		s.nowFunc().UTC().UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired results")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var docs []model.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, eris.Wrap(err, "scan document")
		}
		fields, err := decodeFields([]byte(raw))
		if err != nil {
			return nil, eris.Wrapf(err, "decode document %s", id)
		}
		docs = append(docs, model.Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

// jsonPath quotes field as a single JSON1 path member so names containing
// dots or spaces address one key.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}
