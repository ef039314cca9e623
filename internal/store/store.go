// Package store implements the document store the engine reads investments
// and clients from: schemaless documents grouped into collections, plus a
// TTL table for cached results.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/investor-resolver/internal/model"
)

// Default store-imposed ceilings.
const (
	DefaultMaxIDsPerQuery = 30
	DefaultMaxBatchSize   = 500
)

var (
	// ErrTooManyIDs is returned when a FetchByIDs call exceeds MaxIDsPerQuery.
	ErrTooManyIDs = eris.New("store: too many ids in one query")
	// ErrBatchTooLarge is returned when a WriteBatch call exceeds MaxBatchSize.
	ErrBatchTooLarge = eris.New("store: write batch too large")
)

// Filter restricts FetchAll to documents whose field equals Value, compared
// as text so "123" and 123 match.
type Filter struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	// Limit caps the result size; 0 means no cap.
	Limit int `json:"limit,omitempty"`
}

// Limits carries the store's query and batch ceilings.
type Limits struct {
	MaxIDsPerQuery int `yaml:"max_ids_per_query" mapstructure:"max_ids_per_query"`
	MaxBatchSize   int `yaml:"max_batch_size" mapstructure:"max_batch_size"`
}

func (l Limits) withDefaults() Limits {
	if l.MaxIDsPerQuery <= 0 {
		l.MaxIDsPerQuery = DefaultMaxIDsPerQuery
	}
	if l.MaxBatchSize <= 0 {
		l.MaxBatchSize = DefaultMaxBatchSize
	}
	return l
}

// DocumentStore is the document collection API consumed by the engine.
// Results are ordered by document id.
type DocumentStore interface {
	FetchAll(ctx context.Context, collection string, filter *Filter) ([]model.Document, error)
	// FetchByIDs returns the documents that exist among ids. Callers chunk
	// ids to MaxIDsPerQuery.
	FetchByIDs(ctx context.Context, collection string, ids []string) ([]model.Document, error)
	FetchByField(ctx context.Context, collection, field string, value any) ([]model.Document, error)
	// WriteBatch upserts docs, merging fields into existing documents.
	// Callers chunk docs to MaxBatchSize. A batch-level error means nothing
	// was written.
	WriteBatch(ctx context.Context, collection string, docs []model.Document) ([]model.WriteOutcome, error)

	GetCachedResult(ctx context.Context, key string) ([]byte, error)
	SetCachedResult(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteExpiredResults(ctx context.Context) (int, error)

	Limits() Limits
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// decodeFields parses a stored fields blob. Numbers stay json.Number so
// large legacy ids keep every digit.
func decodeFields(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	fields := make(map[string]any)
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// encodeFields marshals each document's fields. Documents that cannot be
// encoded get a failed outcome and are left out of payloads.
func encodeFields(docs []model.Document) (payloads map[int][]byte, outcomes []model.WriteOutcome) {
	payloads = make(map[int][]byte, len(docs))
	outcomes = make([]model.WriteOutcome, len(docs))
	for i, d := range docs {
		outcomes[i].ID = d.ID
		if d.ID == "" {
			outcomes[i].Err = eris.New("store: document without id")
			continue
		}
		fields := d.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		b, err := json.Marshal(fields)
		if err != nil {
			outcomes[i].Err = eris.Wrapf(err, "store: marshal document %s", d.ID)
			continue
		}
		payloads[i] = b
	}
	return payloads, outcomes
}

func fieldText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case nil:
		return "", eris.New("store: nil filter value")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal filter value")
	}
	return string(b), nil
}
