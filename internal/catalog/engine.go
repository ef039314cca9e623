package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/normalize"
	"github.com/sells-group/investor-resolver/internal/resolve"
)

const (
	unknownProductName = "Unknown product"
	unknownCompanyName = "Unknown company"

	// maxLoggedIDs bounds the record ids attached to data-quality log lines.
	maxLoggedIDs = 20
)

// productNamespace seeds derived product ids.
var productNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:investor-resolver:product"))

// Engine groups records into products. It holds no per-run state, so one
// Engine can serve concurrent runs.
type Engine struct {
	defaultType string
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultType sets the product type used for records without one.
func WithDefaultType(t string) Option {
	return func(e *Engine) {
		if t != "" {
			e.defaultType = t
		}
	}
}

// WithClock overrides the time source used for undated products.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{defaultType: DefaultType, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// DefaultType returns the product type used for records without one.
func (e *Engine) DefaultType() string { return e.defaultType }

// Report carries run-level counters that are not part of any product.
type Report struct {
	Records    int                   `json:"records"`
	Groups     int                   `json:"groups"`
	Resolution model.ResolutionStats `json:"resolution"`
	// MalformedAmounts counts records with at least one unreadable amount.
	MalformedAmounts int `json:"malformedAmounts"`
	// UndatedRecords counts records carrying neither date.
	UndatedRecords int `json:"undatedRecords"`
}

type partition struct {
	key     model.ProductKey
	members []int
}

// Group partitions records by product key, then by resolved client, and
// aggregates both levels. Every record lands under exactly one investor of
// exactly one product. Output order depends only on the data: products by
// total investment descending, investors by remaining capital descending.
func (e *Engine) Group(records []model.RawInvestmentRecord, idx *resolve.ClientIndex) ([]model.ProductGroup, Report) {
	log := zap.L().With(zap.String("component", "catalog"))

	sorted := make([]model.RawInvestmentRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	resolutions, stats := resolve.ResolveAll(sorted, idx)

	byKey := make(map[model.ProductKey]*partition)
	var order []*partition
	for i, rec := range sorted {
		k := ProductKey(rec, e.defaultType)
		p, ok := byKey[k]
		if !ok {
			p = &partition{key: k}
			byKey[k] = p
			order = append(order, p)
		}
		p.members = append(p.members, i)
	}

	report := Report{Records: len(sorted), Groups: len(order), Resolution: stats}
	var malformedIDs []string
	now := e.now().UTC()

	groups := make([]model.ProductGroup, 0, len(order))
	for _, p := range order {
		g, malformed, undated := e.buildGroup(p, sorted, resolutions, now)
		report.MalformedAmounts += len(malformed)
		report.UndatedRecords += undated
		if len(malformedIDs) < maxLoggedIDs {
			malformedIDs = append(malformedIDs, malformed...)
		}
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if c := groups[i].TotalInvestmentAmount.Cmp(groups[j].TotalInvestmentAmount); c != 0 {
			return c > 0
		}
		return groups[i].Key < groups[j].Key
	})

	if report.MalformedAmounts > 0 {
		if len(malformedIDs) > maxLoggedIDs {
			malformedIDs = malformedIDs[:maxLoggedIDs]
		}
		log.Warn("catalog: malformed amounts counted as zero",
			zap.Int("records", report.MalformedAmounts),
			zap.Strings("sample_ids", malformedIDs),
		)
	}

	log.Info("catalog: grouping complete",
		zap.Int("records", report.Records),
		zap.Int("products", report.Groups),
		zap.Int("undated_records", report.UndatedRecords),
	)

	return groups, report
}

func (e *Engine) buildGroup(p *partition, records []model.RawInvestmentRecord, resolutions []model.ResolutionResult, now time.Time) (model.ProductGroup, []string, int) {
	g := model.ProductGroup{
		Key:                          p.key,
		TotalInvestmentAmount:        decimal.Zero,
		TotalRemainingCapital:        decimal.Zero,
		TotalCapitalForRestructuring: decimal.Zero,
		Investments:                  len(p.members),
	}

	members := make([]model.RawInvestmentRecord, 0, len(p.members))
	investors := make(map[string]*model.InvestorSummary)
	var investorOrder []*model.InvestorSummary
	var malformed []string
	undated := 0

	for _, i := range p.members {
		rec := records[i]
		res := resolutions[i]
		members = append(members, rec)

		invested, ok1 := normalize.ParseAmount(rec.InvestmentAmount)
		remaining, ok2 := normalize.ParseAmount(rec.RemainingCapital)
		restructuring, ok3 := normalize.ParseAmount(rec.CapitalForRestructuring)
		if !ok1 || !ok2 || !ok3 {
			malformed = append(malformed, rec.ID)
		}

		s, ok := investors[res.Client.ID]
		if !ok {
			s = &model.InvestorSummary{
				Client:                       res.Client,
				Methods:                      make(map[model.ResolutionMethod]int),
				TotalInvestmentAmount:        decimal.Zero,
				TotalRemainingCapital:        decimal.Zero,
				TotalCapitalForRestructuring: decimal.Zero,
			}
			investors[res.Client.ID] = s
			investorOrder = append(investorOrder, s)
		}

		s.Investments = append(s.Investments, rec)
		s.InvestmentCount++
		s.Methods[res.Method]++
		s.TotalInvestmentAmount = s.TotalInvestmentAmount.Add(invested)
		s.TotalRemainingCapital = s.TotalRemainingCapital.Add(remaining)
		s.TotalCapitalForRestructuring = s.TotalCapitalForRestructuring.Add(restructuring)

		g.TotalInvestmentAmount = g.TotalInvestmentAmount.Add(invested)
		g.TotalRemainingCapital = g.TotalRemainingCapital.Add(remaining)
		g.TotalCapitalForRestructuring = g.TotalCapitalForRestructuring.Add(restructuring)

		if d, ok := rec.BestDate(); ok {
			d = d.UTC()
			if !g.DatesKnown || d.Before(g.EarliestDate) {
				g.EarliestDate = d
			}
			if !g.DatesKnown || d.After(g.LatestDate) {
				g.LatestDate = d
			}
			g.DatesKnown = true
		} else {
			undated++
		}
	}

	if !g.DatesKnown {
		g.EarliestDate = now
		g.LatestDate = now
	}

	g.Investors = make([]model.InvestorSummary, 0, len(investorOrder))
	for _, s := range investorOrder {
		s.CapitalSecuredByRealEstate = decimal.Max(s.TotalRemainingCapital.Sub(s.TotalCapitalForRestructuring), decimal.Zero)
		g.Investors = append(g.Investors, *s)
	}
	sort.SliceStable(g.Investors, func(i, j int) bool {
		if c := g.Investors[i].TotalRemainingCapital.Cmp(g.Investors[j].TotalRemainingCapital); c != 0 {
			return c > 0
		}
		return g.Investors[i].Client.ID < g.Investors[j].Client.ID
	})
	g.UniqueInvestors = len(g.Investors)

	if g.Investments > 0 {
		g.AverageInvestment = g.TotalInvestmentAmount.Div(decimal.NewFromInt(int64(g.Investments)))
	}

	e.describe(&g, members)
	return g, malformed, undated
}

// describe fills the display fields from the first member carrying each one.
// Members are in id order, so the choice is stable across runs.
func (e *Engine) describe(g *model.ProductGroup, members []model.RawInvestmentRecord) {
	var rawType string
	for _, m := range members {
		if g.ID == "" {
			g.ID = strings.TrimSpace(m.ProductIDRaw)
		}
		if g.DisplayName == "" {
			g.DisplayName = strings.TrimSpace(m.ProductNameRaw)
		}
		if rawType == "" {
			rawType = strings.TrimSpace(m.ProductTypeRaw)
		}
		if g.CompanyRef == "" {
			g.CompanyRef = strings.TrimSpace(m.CompanyRefRaw)
		}
		if g.CompanyName == "" {
			g.CompanyName = strings.TrimSpace(m.CompanyNameRaw)
		}
	}

	if g.ID == "" {
		g.ID = ProductID(g.Key)
	}
	if g.DisplayName == "" {
		g.DisplayName = unknownProductName
	}
	if rawType == "" {
		rawType = e.defaultType
	}
	g.Type = MapProductType(rawType)
	if g.CompanyName == "" {
		g.CompanyName = g.CompanyRef
	}
	if g.CompanyName == "" {
		g.CompanyName = unknownCompanyName
	}
	g.Status = DetermineStatus(members)
}

// Assignment places one record in its product without resolving its client.
type Assignment struct {
	RecordID string
	// Stored is the productId the record already carries, if any.
	Stored    string
	Key       model.ProductKey
	ProductID string
}

// Assign computes the product key and id Group would give each record.
// Results are in record id order.
func (e *Engine) Assign(records []model.RawInvestmentRecord) []Assignment {
	sorted := make([]model.RawInvestmentRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	keys := make([]model.ProductKey, len(sorted))
	ids := make(map[model.ProductKey]string)
	for i, rec := range sorted {
		keys[i] = ProductKey(rec, e.defaultType)
		if ids[keys[i]] == "" {
			ids[keys[i]] = strings.TrimSpace(rec.ProductIDRaw)
		}
	}

	out := make([]Assignment, len(sorted))
	for i, rec := range sorted {
		id := ids[keys[i]]
		if id == "" {
			id = ProductID(keys[i])
		}
		out[i] = Assignment{RecordID: rec.ID, Stored: rec.ProductIDRaw, Key: keys[i], ProductID: id}
	}
	return out
}

// ProductID derives a stable id for a product key.
func ProductID(k model.ProductKey) string {
	return uuid.NewSHA1(productNamespace, []byte(k)).String()
}
