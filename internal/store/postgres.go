package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/investor-resolver/internal/db"
	"github.com/sells-group/investor-resolver/internal/model"
)

const documentsTable = "documents"

// documentUpsert merges new fields into existing documents instead of
// replacing them.
var documentUpsert = db.UpsertConfig{
	Table:        documentsTable,
	Columns:      []string{"collection", "id", "fields", "updated_at"},
	ConflictKeys: []string{"collection", "id"},
	UpdateExprs: map[string]string{
		"fields": `"documents"."fields" || EXCLUDED."fields"`,
	},
}

// PostgresStore implements DocumentStore on a JSONB documents table.
type PostgresStore struct {
	pool    db.Pool
	limits  Limits
	nowFunc func() time.Time
}

// NewPostgres wraps an open pool.
func NewPostgres(pool db.Pool, limits Limits) *PostgresStore {
	return &PostgresStore{pool: pool, limits: limits.withDefaults(), nowFunc: time.Now}
}

// Pool returns the underlying pool.
func (s *PostgresStore) Pool() db.Pool { return s.pool }

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	fields     JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_fields ON documents USING GIN (fields jsonb_path_ops);

CREATE TABLE IF NOT EXISTS result_cache (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_result_cache_expires_at ON result_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Limits() Limits { return s.limits }

func (s *PostgresStore) FetchAll(ctx context.Context, collection string, filter *Filter) ([]model.Document, error) {
	var b strings.Builder
	args := []any{collection}
	b.WriteString(`SELECT id, fields FROM documents WHERE collection = $1`)

	if filter != nil && filter.Field != "" {
		text, err := fieldText(filter.Value)
		if err != nil {
			return nil, err
		}
		b.WriteString(` AND fields ->> $2 = $3`)
		args = append(args, filter.Field, text)
	}
	b.WriteString(` ORDER BY id`)
	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit)
		b.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}

	docs, err := s.query(ctx, b.String(), args...)
	return docs, eris.Wrapf(err, "postgres: fetch all %s", collection)
}

func (s *PostgresStore) FetchByIDs(ctx context.Context, collection string, ids []string) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > s.limits.MaxIDsPerQuery {
		return nil, eris.Wrapf(ErrTooManyIDs, "postgres: %d ids, limit %d", len(ids), s.limits.MaxIDsPerQuery)
	}

	docs, err := s.query(ctx,
		`SELECT id, fields FROM documents WHERE collection = $1 AND id = ANY($2) ORDER BY id`,
		collection, ids,
	)
	return docs, eris.Wrapf(err, "postgres: fetch by ids %s", collection)
}

func (s *PostgresStore) FetchByField(ctx context.Context, collection, field string, value any) ([]model.Document, error) {
	return s.FetchAll(ctx, collection, &Filter{Field: field, Value: value})
}

func (s *PostgresStore) WriteBatch(ctx context.Context, collection string, docs []model.Document) ([]model.WriteOutcome, error) {
	if len(docs) > s.limits.MaxBatchSize {
		return nil, eris.Wrapf(ErrBatchTooLarge, "postgres: %d documents, limit %d", len(docs), s.limits.MaxBatchSize)
	}

	payloads, outcomes := encodeFields(docs)
	if len(payloads) == 0 {
		return outcomes, nil
	}

	now := s.nowFunc().UTC()
	rows := make([][]any, 0, len(payloads))
	for i, d := range docs {
		if payload, ok := payloads[i]; ok {
			rows = append(rows, []any{collection, d.ID, payload, now})
		}
	}

	if _, err := db.BulkUpsert(ctx, s.pool, documentUpsert, rows); err != nil {
		return nil, eris.Wrapf(err, "postgres: write batch %s", collection)
	}
	return outcomes, nil
}

func (s *PostgresStore) GetCachedResult(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM result_cache WHERE key = $1 AND expires_at > $2`,
		key, s.nowFunc().UTC(),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached result")
	}
	return value, nil
}

func (s *PostgresStore) SetCachedResult(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.nowFunc().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO result_cache (key, value, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET value = $2, cached_at = $3, expires_at = $4`,
		key, value, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached result")
}

func (s *PostgresStore) DeleteExpiredResults(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM result_cache WHERE expires_at <= $1`,
		s.nowFunc().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired results")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, eris.Wrap(err, "scan document")
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "decode document %s", id)
		}
		docs = append(docs, model.Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}
