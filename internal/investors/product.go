package investors

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/investor-resolver/internal/cache"
	"github.com/sells-group/investor-resolver/internal/catalog"
	"github.com/sells-group/investor-resolver/internal/ingest"
	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/normalize"
)

// Strategy names the lookup that found a product's records.
type Strategy string

const (
	StrategyProductID      Strategy = "product_id"
	StrategyProductName    Strategy = "product_name"
	StrategyProjectName    Strategy = "project_name"
	StrategyNormalizedName Strategy = "normalized_name"
	StrategyNone           Strategy = "none"
)

// ProductInvestors is the answer to a single-product query. A product that
// matches nothing yields an empty result with StrategyNone, never an error.
type ProductInvestors struct {
	Query        string                  `json:"query"`
	StrategyUsed Strategy                `json:"strategyUsed"`
	Investors    []model.InvestorSummary `json:"investors"`
	MappingStats model.MappingStats      `json:"mappingStats"`
	Resolution   model.ResolutionStats   `json:"resolution"`
	// Products lists the matched groups without their investor lists. A
	// name can match more than one product key (e.g. two issuers).
	Products []model.ProductGroup `json:"products"`

	TotalInvestmentAmount decimal.Decimal `json:"totalInvestmentAmount"`
	TotalRemainingCapital decimal.Decimal `json:"totalRemainingCapital"`
	// FailedIDs lists client ids whose lookup chunk could not be read.
	FailedIDs   []string  `json:"failedIds,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ResolveProductInvestors finds the records of one product and resolves
// their investors. The identifier may be a product id, a product or project
// name, or a derived product key or id.
func (s *Service) ResolveProductInvestors(ctx context.Context, productIdentifier string, force bool) (ProductInvestors, error) {
	query := strings.TrimSpace(productIdentifier)
	if query == "" {
		return ProductInvestors{}, eris.Wrap(ErrInvalidQuery, "investors: empty product identifier")
	}

	key := cache.Key("product", query)
	res, hit, err := cache.GetOrComputeTTL(ctx, s.cache, key, force,
		func(ctx context.Context) (ProductInvestors, error) {
			return s.computeProduct(ctx, query)
		},
		func(r ProductInvestors) time.Duration {
			if r.StrategyUsed == StrategyNone {
				return s.cfg.Cache.EmptyTTL()
			}
			return s.cfg.Cache.ProductTTL()
		},
	)
	if err != nil {
		return ProductInvestors{}, err
	}

	s.log().Debug("investors: product resolved",
		zap.String("query", query),
		zap.String("strategy", string(res.StrategyUsed)),
		zap.Int("investors", len(res.Investors)),
		zap.Bool("cached", hit),
	)
	return res, nil
}

func (s *Service) computeProduct(ctx context.Context, query string) (ProductInvestors, error) {
	out := ProductInvestors{
		Query:                 query,
		StrategyUsed:          StrategyNone,
		Investors:             []model.InvestorSummary{},
		Products:              []model.ProductGroup{},
		TotalInvestmentAmount: decimal.Zero,
		TotalRemainingCapital: decimal.Zero,
		GeneratedAt:           time.Now().UTC(),
	}

	records, strategy, err := s.findProductRecords(ctx, query)
	if err != nil {
		return ProductInvestors{}, err
	}
	if len(records) == 0 {
		return out, nil
	}
	out.StrategyUsed = strategy

	idx, failed, err := s.loadClientsFor(ctx, records)
	if err != nil {
		return ProductInvestors{}, err
	}
	out.FailedIDs = failed

	groups, report := s.engine.Group(records, idx)
	out.Resolution = report.Resolution
	out.MappingStats = report.Resolution.Mapping()
	out.Investors = mergeInvestors(groups)

	for _, g := range groups {
		out.TotalInvestmentAmount = out.TotalInvestmentAmount.Add(g.TotalInvestmentAmount)
		out.TotalRemainingCapital = out.TotalRemainingCapital.Add(g.TotalRemainingCapital)
		g.Investors = nil
		out.Products = append(out.Products, g)
	}
	return out, nil
}

// findProductRecords tries each lookup in turn and returns the records of the
// first one that matches anything.
func (s *Service) findProductRecords(ctx context.Context, query string) ([]model.RawInvestmentRecord, Strategy, error) {
	byField := []struct {
		field    string
		strategy Strategy
	}{
		{ingest.FieldProductID, StrategyProductID},
		{ingest.FieldProductName, StrategyProductName},
		{ingest.FieldProjectName, StrategyProjectName},
	}
	for _, f := range byField {
		docs, err := s.fetcher.FetchByField(ctx, s.cfg.Collections.Investments, f.field, query)
		if err != nil {
			return nil, "", eris.Wrapf(err, "investors: find product by %s", f.field)
		}
		if len(docs) > 0 {
			recs, _ := ingest.Investments(docs)
			return recs, f.strategy, nil
		}
	}

	all, _, err := s.loadInvestments(ctx)
	if err != nil {
		return nil, "", err
	}
	var matched []model.RawInvestmentRecord
	for _, r := range all {
		if s.matchesNormalized(r, query) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return nil, StrategyNone, nil
	}
	return matched, StrategyNormalizedName, nil
}

// matchesNormalized compares the query with a record's normalized name, its
// product key, and the id derived from that key.
func (s *Service) matchesNormalized(r model.RawInvestmentRecord, query string) bool {
	if k := normalize.Key(query); k != "" && normalize.Key(r.ProductNameRaw) == k {
		return true
	}
	key := catalog.ProductKey(r, s.engine.DefaultType())
	return string(key) == query || catalog.ProductID(key) == query
}

// mergeInvestors folds the investor summaries of several groups into one
// list per client, ordered like a single group's investors.
func mergeInvestors(groups []model.ProductGroup) []model.InvestorSummary {
	if len(groups) == 1 {
		return groups[0].Investors
	}

	byClient := make(map[string]*model.InvestorSummary)
	var order []string
	for _, g := range groups {
		for _, inv := range g.Investors {
			m, ok := byClient[inv.Client.ID]
			if !ok {
				cp := inv
				cp.Methods = make(map[model.ResolutionMethod]int, len(inv.Methods))
				for k, v := range inv.Methods {
					cp.Methods[k] = v
				}
				cp.Investments = append([]model.RawInvestmentRecord(nil), inv.Investments...)
				byClient[inv.Client.ID] = &cp
				order = append(order, inv.Client.ID)
				continue
			}
			m.Investments = append(m.Investments, inv.Investments...)
			m.InvestmentCount += inv.InvestmentCount
			for k, v := range inv.Methods {
				m.Methods[k] += v
			}
			m.TotalInvestmentAmount = m.TotalInvestmentAmount.Add(inv.TotalInvestmentAmount)
			m.TotalRemainingCapital = m.TotalRemainingCapital.Add(inv.TotalRemainingCapital)
			m.TotalCapitalForRestructuring = m.TotalCapitalForRestructuring.Add(inv.TotalCapitalForRestructuring)
			m.CapitalSecuredByRealEstate = decimal.Max(m.TotalRemainingCapital.Sub(m.TotalCapitalForRestructuring), decimal.Zero)
		}
	}

	out := make([]model.InvestorSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byClient[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].TotalRemainingCapital.Cmp(out[j].TotalRemainingCapital); c != 0 {
			return c > 0
		}
		return out[i].Client.ID < out[j].Client.ID
	})
	return out
}
