// Package batch splits large store reads and writes into chunks that respect
// the store's per-query and per-batch ceilings, runs them with bounded
// fan-out, and isolates per-chunk failures.
package batch

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/investor-resolver/internal/config"
	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/resilience"
	"github.com/sells-group/investor-resolver/internal/store"
)

// ErrStoreUnavailable means no chunk of a call succeeded. Callers must treat
// it as a hard failure, distinct from an empty result.
var ErrStoreUnavailable = eris.New("batch: document store unavailable")

// Limits names every knob of chunked store access.
type Limits struct {
	MaxPerQuery int
	MaxPerBatch int
	// FanOut bounds concurrent chunk calls.
	FanOut int
	Retry  resilience.RetryConfig
	// QueriesPerSecond throttles chunk calls; 0 disables throttling.
	QueriesPerSecond float64
	Breaker          resilience.BreakerConfig
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxPerQuery: store.DefaultMaxIDsPerQuery,
		MaxPerBatch: store.DefaultMaxBatchSize,
		FanOut:      4,
		Retry:       resilience.DefaultRetryConfig(),
		Breaker:     resilience.DefaultBreakerConfig(),
	}
}

// LimitsFromConfig builds Limits from the batch config section.
func LimitsFromConfig(cfg config.BatchConfig) Limits {
	return Limits{
		MaxPerQuery:      cfg.MaxPerQuery,
		MaxPerBatch:      cfg.MaxPerBatch,
		FanOut:           cfg.FanOut,
		Retry:            resilience.RetryFromConfig(cfg.RetryAttempts, cfg.RetryInitialBackoffMs, cfg.RetryMaxBackoffMs),
		QueriesPerSecond: cfg.QueriesPerSecond,
		Breaker:          resilience.BreakerFromConfig(cfg.BreakerFailureThreshold, cfg.BreakerResetSecs),
	}
}

// ChunkFailure reports one chunk that failed after its retries.
type ChunkFailure struct {
	Index int      `json:"index"`
	IDs   []string `json:"ids"`
	Err   error    `json:"-"`
	Error string   `json:"error"`
	Class string   `json:"class"`
}

// FetchResult is the merged outcome of a chunked fetch.
type FetchResult struct {
	// Documents holds every document returned, in chunk order.
	Documents []model.Document `json:"-"`
	Chunks    int              `json:"chunks"`
	Failed    []ChunkFailure   `json:"failed,omitempty"`
}

// FailedIDs lists the ids of every failed chunk in chunk order.
func (r FetchResult) FailedIDs() []string {
	var ids []string
	for _, f := range r.Failed {
		ids = append(ids, f.IDs...)
	}
	return ids
}

// Fetcher runs chunked store calls. It is safe for concurrent use.
type Fetcher struct {
	store    store.DocumentStore
	limits   Limits
	limiter  *rate.Limiter
	breakers *resilience.Breakers
}

// NewFetcher creates a Fetcher. Chunk sizes are clamped to the store's own
// ceilings.
func NewFetcher(st store.DocumentStore, limits Limits) *Fetcher {
	def := DefaultLimits()
	sl := st.Limits()
	if limits.MaxPerQuery <= 0 {
		limits.MaxPerQuery = def.MaxPerQuery
	}
	if sl.MaxIDsPerQuery > 0 && limits.MaxPerQuery > sl.MaxIDsPerQuery {
		limits.MaxPerQuery = sl.MaxIDsPerQuery
	}
	if limits.MaxPerBatch <= 0 {
		limits.MaxPerBatch = def.MaxPerBatch
	}
	if sl.MaxBatchSize > 0 && limits.MaxPerBatch > sl.MaxBatchSize {
		limits.MaxPerBatch = sl.MaxBatchSize
	}
	if limits.FanOut <= 0 {
		limits.FanOut = def.FanOut
	}

	f := &Fetcher{
		store:    st,
		limits:   limits,
		breakers: resilience.NewBreakers(limits.Breaker),
	}
	if limits.QueriesPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(limits.QueriesPerSecond), limits.FanOut)
	}
	return f
}

// Limits returns the effective limits.
func (f *Fetcher) Limits() Limits { return f.limits }

// BreakerStates reports the breaker state per collection.
func (f *Fetcher) BreakerStates() map[string]resilience.State {
	return f.breakers.States()
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

// UniqueIDs trims ids and drops empty and repeated ones, keeping first
// occurrence order.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// call runs one store operation through the throttle, the collection's
// breaker, and the retry policy.
func call[T any](ctx context.Context, f *Fetcher, collection, op string, fn func(context.Context) (T, error)) (T, error) {
	breaker := f.breakers.Get(collection)
	cfg := f.limits.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(collection, op)
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				var zero T
				return zero, eris.Wrap(err, "batch: rate limit wait")
			}
		}
		return resilience.ExecuteVal(ctx, breaker, fn)
	})
}

// FetchAll reads a whole collection, optionally filtered.
func (f *Fetcher) FetchAll(ctx context.Context, collection string, filter *store.Filter) ([]model.Document, error) {
	docs, err := call(ctx, f, collection, "fetch_all", func(ctx context.Context) ([]model.Document, error) {
		return f.store.FetchAll(ctx, collection, filter)
	})
	if err != nil {
		return nil, eris.Wrapf(ErrStoreUnavailable, "batch: fetch all %s: %v", collection, err)
	}
	return docs, nil
}

// FetchByField reads the documents whose field equals value.
func (f *Fetcher) FetchByField(ctx context.Context, collection, field string, value any) ([]model.Document, error) {
	docs, err := call(ctx, f, collection, "fetch_by_field", func(ctx context.Context) ([]model.Document, error) {
		return f.store.FetchByField(ctx, collection, field, value)
	})
	if err != nil {
		return nil, eris.Wrapf(ErrStoreUnavailable, "batch: fetch %s by %s: %v", collection, field, err)
	}
	return docs, nil
}

// FetchByIDs reads the documents with the given ids. ids are de-duplicated
// and split into MaxPerQuery chunks queried with at most FanOut in flight.
// A chunk that still fails after its retries is reported in Failed while the
// other chunks' documents are returned. The error is ErrStoreUnavailable
// only when every chunk failed.
func (f *Fetcher) FetchByIDs(ctx context.Context, collection string, ids []string) (FetchResult, error) {
	log := zap.L().With(zap.String("component", "batch"), zap.String("collection", collection))

	chunks := Chunk(UniqueIDs(ids), f.limits.MaxPerQuery)
	res := FetchResult{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return res, nil
	}

	results := make([][]model.Document, len(chunks))
	errs := make([]error, len(chunks))

	var g errgroup.Group
	g.SetLimit(f.limits.FanOut)
	for i, chunk := range chunks {
		g.Go(func() error {
			docs, err := call(ctx, f, collection, "fetch_by_ids", func(ctx context.Context) ([]model.Document, error) {
				return f.store.FetchByIDs(ctx, collection, chunk)
			})
			results[i], errs[i] = docs, err
			return nil
		})
	}
	_ = g.Wait()

	for i, chunk := range chunks {
		if err := errs[i]; err != nil {
			res.Failed = append(res.Failed, ChunkFailure{
				Index: i,
				IDs:   chunk,
				Err:   err,
				Error: err.Error(),
				Class: resilience.ClassifyError(err),
			})
			continue
		}
		res.Documents = append(res.Documents, results[i]...)
	}

	if len(res.Failed) == len(chunks) {
		return res, eris.Wrapf(ErrStoreUnavailable, "batch: all %d chunks of %s failed: %v", len(chunks), collection, res.Failed[0].Err)
	}
	if len(res.Failed) > 0 {
		log.Warn("batch: partial fetch failure",
			zap.Int("chunks", len(chunks)),
			zap.Int("failed_chunks", len(res.Failed)),
			zap.Int("failed_ids", len(res.FailedIDs())),
		)
	}
	log.Debug("batch: fetch by ids complete",
		zap.Int("chunks", len(chunks)),
		zap.Int("documents", len(res.Documents)),
	)
	return res, nil
}

// WriteFailure reports one document that was not written.
type WriteFailure struct {
	ID    string `json:"id"`
	Err   error  `json:"-"`
	Error string `json:"error"`
}

// WriteResult is the merged outcome of a chunked write.
type WriteResult struct {
	Written int            `json:"written"`
	Batches int            `json:"batches"`
	Failed  []WriteFailure `json:"failed,omitempty"`
}

// Write upserts docs in MaxPerBatch commits with at most FanOut in flight.
// A failed commit marks its documents failed while other commits stand.
// The error is ErrStoreUnavailable only when every commit failed.
func (f *Fetcher) Write(ctx context.Context, collection string, docs []model.Document) (WriteResult, error) {
	log := zap.L().With(zap.String("component", "batch"), zap.String("collection", collection))

	batches := Chunk(docs, f.limits.MaxPerBatch)
	res := WriteResult{Batches: len(batches)}
	if len(batches) == 0 {
		return res, nil
	}

	outcomes := make([][]model.WriteOutcome, len(batches))
	errs := make([]error, len(batches))

	var g errgroup.Group
	g.SetLimit(f.limits.FanOut)
	for i, b := range batches {
		g.Go(func() error {
			out, err := call(ctx, f, collection, "write_batch", func(ctx context.Context) ([]model.WriteOutcome, error) {
				return f.store.WriteBatch(ctx, collection, b)
			})
			outcomes[i], errs[i] = out, err
			return nil
		})
	}
	_ = g.Wait()

	failedBatches := 0
	for i, b := range batches {
		if err := errs[i]; err != nil {
			failedBatches++
			for _, d := range b {
				res.Failed = append(res.Failed, WriteFailure{ID: d.ID, Err: err, Error: err.Error()})
			}
			continue
		}
		for _, o := range outcomes[i] {
			if o.OK() {
				res.Written++
				continue
			}
			res.Failed = append(res.Failed, WriteFailure{ID: o.ID, Err: o.Err, Error: o.Err.Error()})
		}
	}

	if failedBatches == len(batches) {
		return res, eris.Wrapf(ErrStoreUnavailable, "batch: all %d write batches of %s failed: %v", len(batches), collection, errs[0])
	}

	log.Info("batch: write complete",
		zap.Int("batches", len(batches)),
		zap.Int("failed_batches", failedBatches),
		zap.Int("written", res.Written),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}
