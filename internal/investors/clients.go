package investors

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/investor-resolver/internal/batch"
	"github.com/sells-group/investor-resolver/internal/ingest"
	"github.com/sells-group/investor-resolver/internal/model"
)

// ClientStats counts properties of the clients a lookup found.
type ClientStats struct {
	Requested int `json:"requested"`
	Found     int `json:"found"`
	Active    int `json:"active"`
	WithEmail int `json:"withEmail"`
	WithPhone int `json:"withPhone"`
	// BySecondaryID counts ids found only through the excelId field.
	BySecondaryID int `json:"bySecondaryId"`
}

// ClientLookup is the result of LookupClients. Clients follow request order.
type ClientLookup struct {
	Clients   []model.ClientRecord `json:"clients"`
	NotFound  []string             `json:"notFound"`
	FailedIDs []string             `json:"failedIds,omitempty"`
	Stats     ClientStats          `json:"stats"`
}

// LookupClients fetches clients by document id in chunks. Ids with no
// document are retried against the excelId field, since legacy imports
// refer to clients by their spreadsheet id.
func (s *Service) LookupClients(ctx context.Context, ids []string) (ClientLookup, error) {
	ids = batch.UniqueIDs(ids)
	if len(ids) == 0 {
		return ClientLookup{}, eris.Wrap(ErrInvalidQuery, "investors: no client ids")
	}
	collection := s.cfg.Collections.Clients

	res, err := s.fetcher.FetchByIDs(ctx, collection, ids)
	if err != nil {
		return ClientLookup{}, eris.Wrap(err, "investors: lookup clients")
	}

	found := make(map[string]model.ClientRecord, len(res.Documents))
	for _, c := range ingest.Clients(res.Documents) {
		found[c.ID] = c
	}
	failed := make(map[string]struct{})
	for _, id := range res.FailedIDs() {
		failed[id] = struct{}{}
	}

	var missing []string
	for _, id := range ids {
		_, ok := found[id]
		_, bad := failed[id]
		if !ok && !bad {
			missing = append(missing, id)
		}
	}

	bySecondary, secondaryFailed := s.lookupBySecondaryID(ctx, collection, missing)
	for id := range secondaryFailed {
		failed[id] = struct{}{}
	}

	out := ClientLookup{
		Clients:  []model.ClientRecord{},
		NotFound: []string{},
		Stats:    ClientStats{Requested: len(ids)},
	}
	for _, id := range ids {
		c, ok := found[id]
		if !ok {
			c, ok = bySecondary[id]
			if ok {
				out.Stats.BySecondaryID++
			}
		}
		switch {
		case ok:
			out.Clients = append(out.Clients, c)
			out.Stats.Found++
			if c.IsActive {
				out.Stats.Active++
			}
			if c.Email != "" {
				out.Stats.WithEmail++
			}
			if c.Phone != "" {
				out.Stats.WithPhone++
			}
		case isIn(failed, id):
			out.FailedIDs = append(out.FailedIDs, id)
		default:
			out.NotFound = append(out.NotFound, id)
		}
	}

	if len(out.FailedIDs) > 0 {
		s.log().Warn("investors: client lookup incomplete",
			zap.Int("requested", len(ids)),
			zap.Int("failed", len(out.FailedIDs)),
		)
	}
	return out, nil
}

// lookupBySecondaryID queries excelId for each id with the fetcher's fan-out.
// The first matching document wins.
func (s *Service) lookupBySecondaryID(ctx context.Context, collection string, ids []string) (map[string]model.ClientRecord, map[string]struct{}) {
	found := make(map[string]model.ClientRecord)
	failed := make(map[string]struct{})
	if len(ids) == 0 {
		return found, failed
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.fetcher.Limits().FanOut)
	for _, id := range ids {
		g.Go(func() error {
			docs, err := s.fetcher.FetchByField(ctx, collection, ingest.FieldExcelID, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[id] = struct{}{}
				return nil
			}
			if len(docs) > 0 {
				found[id] = ingest.Client(docs[0])
			}
			return nil
		})
	}
	_ = g.Wait()
	return found, failed
}

func isIn(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}
