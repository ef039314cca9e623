// Package investors is the outward-facing layer of the resolver. It loads
// records through the batch fetcher, runs the grouping engine, and caches
// the results presentation callers ask for.
package investors

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/investor-resolver/internal/batch"
	"github.com/sells-group/investor-resolver/internal/cache"
	"github.com/sells-group/investor-resolver/internal/catalog"
	"github.com/sells-group/investor-resolver/internal/config"
	"github.com/sells-group/investor-resolver/internal/ingest"
	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/resolve"
)

// ErrInvalidQuery is returned for requests that cannot name anything, such
// as a blank product identifier or an empty id list.
var ErrInvalidQuery = eris.New("investors: invalid query")

// Service answers product and client queries over the configured
// collections.
type Service struct {
	cfg     *config.Config
	fetcher *batch.Fetcher
	cache   *cache.ResultCache
	engine  *catalog.Engine
}

// New creates a Service.
func New(cfg *config.Config, fetcher *batch.Fetcher, rc *cache.ResultCache, engine *catalog.Engine) *Service {
	return &Service{
		cfg:     cfg,
		fetcher: fetcher,
		cache:   rc,
		engine:  engine,
	}
}

func (s *Service) log() *zap.Logger {
	return zap.L().With(zap.String("component", "investors"))
}

// loadInvestments reads every investment document.
func (s *Service) loadInvestments(ctx context.Context) ([]model.RawInvestmentRecord, ingest.Report, error) {
	docs, err := s.fetcher.FetchAll(ctx, s.cfg.Collections.Investments, nil)
	if err != nil {
		return nil, ingest.Report{}, eris.Wrap(err, "investors: load investments")
	}
	recs, report := ingest.Investments(docs)
	return recs, report, nil
}

// loadAllClients indexes the whole client collection.
func (s *Service) loadAllClients(ctx context.Context) (*resolve.ClientIndex, error) {
	docs, err := s.fetcher.FetchAll(ctx, s.cfg.Collections.Clients, nil)
	if err != nil {
		return nil, eris.Wrap(err, "investors: load clients")
	}
	return resolve.BuildIndex(ingest.Clients(docs)), nil
}

// loadClientsFor indexes the clients a small record set refers to. Candidate
// refs are fetched by document id in chunks first. When some record is left
// without a document id hit (legacy ids, name-only records, or a failed
// chunk) the whole collection is indexed instead so secondary id and name
// matching see every client. failed lists ids whose chunk could not be read
// and that the full scan did not cover.
func (s *Service) loadClientsFor(ctx context.Context, records []model.RawInvestmentRecord) (idx *resolve.ClientIndex, failed []string, err error) {
	var refs []string
	for _, r := range records {
		refs = append(refs, r.ClientRefCandidates...)
	}

	res, err := s.fetcher.FetchByIDs(ctx, s.cfg.Collections.Clients, refs)
	if err != nil {
		return nil, nil, eris.Wrap(err, "investors: load clients by id")
	}
	clients := ingest.Clients(res.Documents)

	found := make(map[string]struct{}, len(clients))
	for _, c := range clients {
		found[c.ID] = struct{}{}
	}
	if coveredByID(records, found) {
		return resolve.BuildIndex(clients), res.FailedIDs(), nil
	}

	idx, err = s.loadAllClients(ctx)
	if err != nil {
		return nil, nil, err
	}
	return idx, nil, nil
}

func coveredByID(records []model.RawInvestmentRecord, found map[string]struct{}) bool {
	for _, r := range records {
		hit := false
		for _, c := range r.ClientRefCandidates {
			if _, ok := found[strings.TrimSpace(c)]; ok {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}
