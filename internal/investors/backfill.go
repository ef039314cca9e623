package investors

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/investor-resolver/internal/batch"
	"github.com/sells-group/investor-resolver/internal/ingest"
	"github.com/sells-group/investor-resolver/internal/model"
)

// BackfillUpdate is one planned product id assignment.
type BackfillUpdate struct {
	RecordID   string `json:"recordId"`
	ProductID  string `json:"productId"`
	ProductKey string `json:"productKey"`
}

// BackfillResult reports a product id backfill.
type BackfillResult struct {
	DryRun  bool                 `json:"dryRun"`
	Records int                  `json:"records"`
	Skipped int                  `json:"skipped"`
	Written int                  `json:"written"`
	Failed  []batch.WriteFailure `json:"failed,omitempty"`
	Updates []BackfillUpdate     `json:"updates"`
}

// BackfillProductIDs stores each product's id and key on the investment
// records that lack a productId. Ids come from the grouping engine without
// client resolution, so the same data always yields the same assignments.
// With dryRun the updates are planned but not written.
func (s *Service) BackfillProductIDs(ctx context.Context, dryRun bool) (BackfillResult, error) {
	log := s.log().With(zap.Bool("dry_run", dryRun))

	records, _, err := s.loadInvestments(ctx)
	if err != nil {
		return BackfillResult{}, err
	}
	res := BackfillResult{DryRun: dryRun, Records: len(records), Updates: []BackfillUpdate{}}

	for _, a := range s.engine.Assign(records) {
		if a.Stored != "" {
			res.Skipped++
			continue
		}
		res.Updates = append(res.Updates, BackfillUpdate{
			RecordID:   a.RecordID,
			ProductID:  a.ProductID,
			ProductKey: string(a.Key),
		})
	}

	if dryRun || len(res.Updates) == 0 {
		log.Info("investors: backfill planned",
			zap.Int("records", res.Records),
			zap.Int("updates", len(res.Updates)),
			zap.Int("skipped", res.Skipped),
		)
		return res, nil
	}

	docs := make([]model.Document, 0, len(res.Updates))
	for _, u := range res.Updates {
		docs = append(docs, model.Document{
			ID: u.RecordID,
			Fields: map[string]any{
				ingest.FieldProductID:  u.ProductID,
				ingest.FieldProductKey: u.ProductKey,
			},
		})
	}

	wr, err := s.fetcher.Write(ctx, s.cfg.Collections.Investments, docs)
	res.Written = wr.Written
	res.Failed = wr.Failed
	if err != nil {
		return res, eris.Wrap(err, "investors: backfill product ids")
	}

	log.Info("investors: backfill complete",
		zap.Int("records", res.Records),
		zap.Int("written", res.Written),
		zap.Int("failed", len(res.Failed)),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}
