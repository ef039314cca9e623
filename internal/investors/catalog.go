package investors

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/investor-resolver/internal/cache"
	"github.com/sells-group/investor-resolver/internal/catalog"
	"github.com/sells-group/investor-resolver/internal/model"
)

// CatalogStatistics extends the product statistics with run diagnostics.
// Product figures cover the returned products; TotalRecords covers every
// input record.
type CatalogStatistics struct {
	catalog.Statistics

	TotalRecords          int                   `json:"totalRecords"`
	ProductsFound         int                   `json:"productsFound"`
	Resolution            model.ResolutionStats `json:"resolution"`
	MappingStats          model.MappingStats    `json:"mappingStats"`
	DuplicateNames        int                   `json:"duplicateNames"`
	DuplicateSecondaryIDs int                   `json:"duplicateSecondaryIds"`
	MalformedAmounts      int                   `json:"malformedAmounts"`
	UndatedRecords        int                   `json:"undatedRecords"`
	BadDates              int                   `json:"badDates"`
	RecordsWithoutClient  int                   `json:"recordsWithoutClient"`
}

// Catalog is the full product list with its statistics.
type Catalog struct {
	Products   []model.ProductGroup `json:"products"`
	Statistics CatalogStatistics    `json:"statistics"`
	// DuplicateNames maps a normalized client name to the ids sharing it.
	DuplicateNames        map[string][]string `json:"duplicateNames,omitempty"`
	DuplicateSecondaryIDs map[string][]string `json:"duplicateSecondaryIds,omitempty"`
	GeneratedAt           time.Time           `json:"generatedAt"`
}

// ListAllProductsWithInvestors groups every investment into products and
// returns the largest maxProducts of them. maxProducts <= 0 uses the
// configured limit, where 0 means no limit.
func (s *Service) ListAllProductsWithInvestors(ctx context.Context, maxProducts int, force bool) (Catalog, error) {
	if maxProducts <= 0 {
		maxProducts = s.cfg.Catalog.MaxProducts
	}

	key := cache.Key("catalog", "max="+strconv.Itoa(maxProducts))
	res, hit, err := cache.GetOrCompute(ctx, s.cache, key, s.cfg.Cache.CatalogTTL(), force,
		func(ctx context.Context) (Catalog, error) {
			return s.computeCatalog(ctx, maxProducts)
		},
	)
	if err != nil {
		return Catalog{}, err
	}

	s.log().Info("investors: catalog ready",
		zap.Int("products", len(res.Products)),
		zap.Int("records", res.Statistics.TotalRecords),
		zap.Bool("cached", hit),
	)
	return res, nil
}

func (s *Service) computeCatalog(ctx context.Context, maxProducts int) (Catalog, error) {
	records, ingestReport, err := s.loadInvestments(ctx)
	if err != nil {
		return Catalog{}, err
	}
	idx, err := s.loadAllClients(ctx)
	if err != nil {
		return Catalog{}, err
	}

	groups, report := s.engine.Group(records, idx)
	found := len(groups)
	if maxProducts > 0 && len(groups) > maxProducts {
		groups = groups[:maxProducts]
	}

	stats := CatalogStatistics{
		Statistics:            catalog.ComputeStatistics(groups),
		TotalRecords:          report.Records,
		ProductsFound:         found,
		Resolution:            report.Resolution,
		MappingStats:          report.Resolution.Mapping(),
		DuplicateNames:        len(idx.DuplicateNames),
		DuplicateSecondaryIDs: len(idx.DuplicateSecondaryIDs),
		MalformedAmounts:      report.MalformedAmounts,
		UndatedRecords:        report.UndatedRecords,
		BadDates:              ingestReport.BadDates,
		RecordsWithoutClient:  ingestReport.NoClientRef,
	}
	stats.TotalInvestments = report.Records

	if top := s.cfg.Catalog.TopInvestors; top > 0 {
		for i := range groups {
			if len(groups[i].Investors) > top {
				groups[i].Investors = groups[i].Investors[:top]
			}
		}
	}

	if stats.DuplicateNames > 0 {
		s.log().Warn("investors: clients share a display name",
			zap.Int("names", stats.DuplicateNames),
		)
	}

	return Catalog{
		Products:              groups,
		Statistics:            stats,
		DuplicateNames:        idx.DuplicateNames,
		DuplicateSecondaryIDs: idx.DuplicateSecondaryIDs,
		GeneratedAt:           time.Now().UTC(),
	}, nil
}
