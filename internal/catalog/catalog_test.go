package catalog

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/normalize"
	"github.com/sells-group/investor-resolver/internal/resolve"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(WithClock(func() time.Time { return fixedNow }))
}

func ptime(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func testIndex() *resolve.ClientIndex {
	return resolve.BuildIndex([]model.ClientRecord{
		{ID: "c1", SecondaryIDs: []string{"11"}, DisplayName: "Jan Kowalski", IsActive: true},
		{ID: "c2", SecondaryIDs: []string{"12"}, DisplayName: "Anna Nowak", IsActive: true},
	})
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProductKey_CaseAndWhitespace(t *testing.T) {
	a := model.RawInvestmentRecord{ProductNameRaw: "Obligacje Alfa", ProductTypeRaw: "Bonds", CompanyRefRaw: "ACME"}
	b := model.RawInvestmentRecord{ProductNameRaw: "obligacje   alfa", ProductTypeRaw: "bonds ", CompanyRefRaw: "acme"}
	assert.Equal(t, ProductKey(a, ""), ProductKey(b, ""))
	assert.Equal(t, model.ProductKey("obligacje alfa|bonds|acme"), ProductKey(a, ""))
}

func TestProductKey_Defaults(t *testing.T) {
	rec := model.RawInvestmentRecord{ProductNameRaw: "Alfa"}
	assert.Equal(t, model.ProductKey("alfa|bonds|unknown"), ProductKey(rec, ""))
	assert.Equal(t, model.ProductKey("alfa|loans|unknown"), ProductKey(rec, "Loans"))
}

func TestProductKey_SeparatorInComponent(t *testing.T) {
	rec := model.RawInvestmentRecord{ProductNameRaw: "Alfa|Beta", ProductTypeRaw: "bonds", CompanyRefRaw: "X"}
	k := ProductKey(rec, "")
	name, typ, company := SplitKey(k)
	assert.Equal(t, "alfa beta", name)
	assert.Equal(t, "bonds", typ)
	assert.Equal(t, "x", company)
}

func TestProductKey_DifferentProductsDiffer(t *testing.T) {
	a := model.RawInvestmentRecord{ProductNameRaw: "Alfa", CompanyRefRaw: "A"}
	b := model.RawInvestmentRecord{ProductNameRaw: "Alfa", CompanyRefRaw: "B"}
	c := model.RawInvestmentRecord{ProductNameRaw: "Alfa", ProductTypeRaw: "shares", CompanyRefRaw: "A"}
	assert.NotEqual(t, ProductKey(a, ""), ProductKey(b, ""))
	assert.NotEqual(t, ProductKey(a, ""), ProductKey(c, ""))
}

func TestMapProductType(t *testing.T) {
	assert.Equal(t, model.ProductTypeBonds, MapProductType(""))
	assert.Equal(t, model.ProductTypeBonds, MapProductType("Obligacje"))
	assert.Equal(t, model.ProductTypeApartments, MapProductType("Apartamenty"))
	assert.Equal(t, model.ProductTypeShares, MapProductType("Udziały"))
	assert.Equal(t, model.ProductTypeLoans, MapProductType("Pożyczka"))
	assert.Equal(t, model.ProductTypeOther, MapProductType("crypto"))
}

func TestIsActive(t *testing.T) {
	assert.True(t, IsActive(""))
	assert.True(t, IsActive("Active"))
	assert.True(t, IsActive("Aktywny"))
	assert.False(t, IsActive("Inactive"))
	assert.False(t, IsActive("Nieaktywny"))
	assert.False(t, IsActive("closed"))
}

func TestDetermineStatus(t *testing.T) {
	mk := func(active, inactive int) []model.RawInvestmentRecord {
		var out []model.RawInvestmentRecord
		for i := 0; i < active; i++ {
			out = append(out, model.RawInvestmentRecord{StatusRaw: "active"})
		}
		for i := 0; i < inactive; i++ {
			out = append(out, model.RawInvestmentRecord{StatusRaw: "inactive"})
		}
		return out
	}
	assert.Equal(t, model.ProductStatusActive, DetermineStatus(mk(9, 1)))
	assert.Equal(t, model.ProductStatusPending, DetermineStatus(mk(8, 2)))
	assert.Equal(t, model.ProductStatusPending, DetermineStatus(mk(3, 7)))
	assert.Equal(t, model.ProductStatusInactive, DetermineStatus(mk(2, 8)))
	assert.Equal(t, model.ProductStatusInactive, DetermineStatus(nil))
}

func TestGroup_SameProductDifferentSpelling(t *testing.T) {
	records := []model.RawInvestmentRecord{
		{ID: "r1", ClientRefCandidates: []string{"c1"}, ProductNameRaw: "Obligacje Alfa", ProductTypeRaw: "bonds", CompanyRefRaw: "ACME", InvestmentAmount: "1000"},
		{ID: "r2", ClientRefCandidates: []string{"c2"}, ProductNameRaw: "obligacje   alfa", ProductTypeRaw: "Bonds", CompanyRefRaw: "acme", InvestmentAmount: "500"},
	}

	groups, report := newTestEngine().Group(records, testIndex())
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Investments)
	assert.Equal(t, 2, groups[0].UniqueInvestors)
	assert.True(t, dec("1500").Equal(groups[0].TotalInvestmentAmount))
	assert.Equal(t, "Obligacje Alfa", groups[0].DisplayName)
	assert.Equal(t, 1, report.Groups)
	assert.Equal(t, 2, report.Records)
}

func TestGroup_InvestorAggregation(t *testing.T) {
	records := []model.RawInvestmentRecord{
		{ID: "r1", ClientRefCandidates: []string{"c1"}, ProductNameRaw: "Alfa", InvestmentAmount: "1 000,50", RemainingCapital: "800", CapitalForRestructuring: "100"},
		{ID: "r2", ClientRefCandidates: []string{"11"}, ProductNameRaw: "Alfa", InvestmentAmount: "2000", RemainingCapital: "1500", CapitalForRestructuring: "200"},
		{ID: "r3", ClientNameRaw: "anna nowak", ProductNameRaw: "Alfa", InvestmentAmount: "300", RemainingCapital: "3000", CapitalForRestructuring: "3500"},
	}

	groups, report := newTestEngine().Group(records, testIndex())
	require.Len(t, groups, 1)
	g := groups[0]

	require.Len(t, g.Investors, 2)
	// Anna has the larger remaining capital and sorts first.
	assert.Equal(t, "c2", g.Investors[0].Client.ID)
	assert.Equal(t, 1, g.Investors[0].Methods[model.MethodNameMatch])
	assert.True(t, g.Investors[0].CapitalSecuredByRealEstate.IsZero())

	jan := g.Investors[1]
	assert.Equal(t, "c1", jan.Client.ID)
	assert.Equal(t, 2, jan.InvestmentCount)
	assert.Equal(t, 1, jan.Methods[model.MethodDocumentID])
	assert.Equal(t, 1, jan.Methods[model.MethodSecondaryID])
	assert.True(t, dec("3000.50").Equal(jan.TotalInvestmentAmount))
	assert.True(t, dec("2300").Equal(jan.TotalRemainingCapital))
	assert.True(t, dec("300").Equal(jan.TotalCapitalForRestructuring))
	assert.True(t, dec("2000").Equal(jan.CapitalSecuredByRealEstate))

	assert.True(t, dec("3300.50").Equal(g.TotalInvestmentAmount))
	assert.True(t, dec("1100.17").Equal(g.AverageInvestment.Round(2)))
	assert.Equal(t, model.ResolutionStats{DocumentID: 1, SecondaryID: 1, NameMatch: 1}, report.Resolution)
}

func TestGroup_UnresolvedPlaceholder(t *testing.T) {
	records := []model.RawInvestmentRecord{
		{ID: "r1", ClientRefCandidates: []string{"missing-id"}, ProductNameRaw: "Alfa", InvestmentAmount: "10"},
	}

	groups, report := newTestEngine().Group(records, testIndex())
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Investors, 1)
	inv := groups[0].Investors[0]
	assert.Equal(t, "unknown_r1", inv.Client.ID)
	assert.True(t, inv.Client.Synthetic)
	assert.Equal(t, 1, report.Resolution.Mapping().Unmapped)
}

func TestGroup_PlaceholdersStaySeparate(t *testing.T) {
	idx := resolve.BuildIndex([]model.ClientRecord{{ID: "unknown_A", DisplayName: "Real"}})
	records := []model.RawInvestmentRecord{
		{ID: "A", ProductNameRaw: "Alfa", InvestmentAmount: "10"},
		{ID: "A_", ProductNameRaw: "Alfa", InvestmentAmount: "20"},
	}

	groups, _ := newTestEngine().Group(records, idx)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Investors, 2)
	assert.Equal(t, 2, groups[0].UniqueInvestors)
	assert.NotEqual(t, groups[0].Investors[0].Client.ID, groups[0].Investors[1].Client.ID)
}

func TestGroup_MalformedAmountsKept(t *testing.T) {
	records := []model.RawInvestmentRecord{
		{ID: "r1", ClientRefCandidates: []string{"c1"}, ProductNameRaw: "Alfa", InvestmentAmount: "abc"},
		{ID: "r2", ClientRefCandidates: []string{"c1"}, ProductNameRaw: "Alfa", InvestmentAmount: "NULL"},
		{ID: "r3", ClientRefCandidates: []string{"c1"}, ProductNameRaw: "Alfa", InvestmentAmount: "5"},
	}

	groups, report := newTestEngine().Group(records, testIndex())
	require.Len(t, groups, 1)
	assert.Equal(t, 3, groups[0].Investments)
	assert.Equal(t, 3, groups[0].Investors[0].InvestmentCount)
	assert.True(t, dec("5").Equal(groups[0].TotalInvestmentAmount))
	assert.Equal(t, 1, report.MalformedAmounts)
}

func TestGroup_Dates(t *testing.T) {
	records := []model.RawInvestmentRecord{
		{ID: "r1", ProductNameRaw: "Alfa", CreatedAt: ptime(2021, 5, 1)},
		{ID: "r2", ProductNameRaw: "Alfa", SignedAt: ptime(2020, 1, 15)},
		{ID: "r3", ProductNameRaw: "Alfa", CreatedAt: ptime(2023, 2, 1), SignedAt: ptime(2019, 1, 1)},
		{ID: "r4", ProductNameRaw: "Alfa"},
		{ID: "r5", ProductNameRaw: "Beta"},
	}

	groups, report := newTestEngine().Group(records, testIndex())
	require.Len(t, groups, 2)

	byName := map[string]model.ProductGroup{}
	for _, g := range groups {
		byName[g.DisplayName] = g
	}

	alfa := byName["Alfa"]
	assert.True(t, alfa.DatesKnown)
	assert.Equal(t, *ptime(2020, 1, 15), alfa.EarliestDate)
	assert.Equal(t, *ptime(2023, 2, 1), alfa.LatestDate)

	beta := byName["Beta"]
	assert.False(t, beta.DatesKnown)
	assert.Equal(t, fixedNow, beta.EarliestDate)
	assert.Equal(t, fixedNow, beta.LatestDate)

	assert.Equal(t, 2, report.UndatedRecords)
}

func TestGroup_SortOrder(t *testing.T) {
	records := []model.RawInvestmentRecord{
		{ID: "r1", ProductNameRaw: "Small", InvestmentAmount: "10"},
		{ID: "r2", ProductNameRaw: "Large", InvestmentAmount: "1000"},
		{ID: "r3", ProductNameRaw: "Tie B", InvestmentAmount: "100"},
		{ID: "r4", ProductNameRaw: "Tie A", InvestmentAmount: "100"},
	}

	groups, _ := newTestEngine().Group(records, testIndex())
	require.Len(t, groups, 4)
	assert.Equal(t, "Large", groups[0].DisplayName)
	assert.Equal(t, "Tie A", groups[1].DisplayName)
	assert.Equal(t, "Tie B", groups[2].DisplayName)
	assert.Equal(t, "Small", groups[3].DisplayName)
}

func TestGroup_ProductIDs(t *testing.T) {
	records := []model.RawInvestmentRecord{
		{ID: "r2", ProductNameRaw: "Alfa", ProductIDRaw: "later"},
		{ID: "r1", ProductNameRaw: "Alfa", ProductIDRaw: "first"},
		{ID: "r3", ProductNameRaw: "Beta"},
	}

	groups, _ := newTestEngine().Group(records, testIndex())
	require.Len(t, groups, 2)
	for _, g := range groups {
		switch g.DisplayName {
		case "Alfa":
			assert.Equal(t, "first", g.ID)
		case "Beta":
			assert.Equal(t, ProductID(g.Key), g.ID)
		}
	}
	assert.Equal(t, ProductID("beta|bonds|unknown"), ProductID("beta|bonds|unknown"))
	assert.NotEqual(t, ProductID("beta|bonds|unknown"), ProductID("alfa|bonds|unknown"))
}

func TestAssign_MatchesGroup(t *testing.T) {
	records := []model.RawInvestmentRecord{
		{ID: "r2", ProductNameRaw: "Alfa", ProductIDRaw: "later", ClientRefCandidates: []string{"c1"}},
		{ID: "r1", ProductNameRaw: " ALFA ", ProductIDRaw: "first"},
		{ID: "r3", ProductNameRaw: "Beta", ClientRefCandidates: []string{"missing"}},
		{ID: "r4", ProductNameRaw: "beta"},
	}
	e := newTestEngine()

	assigned := e.Assign(records)
	require.Len(t, assigned, 4)
	assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, []string{
		assigned[0].RecordID, assigned[1].RecordID, assigned[2].RecordID, assigned[3].RecordID,
	})
	assert.Equal(t, "first", assigned[0].Stored)
	assert.Empty(t, assigned[2].Stored)

	groups, _ := e.Group(records, testIndex())
	groupID := make(map[string]string)
	for _, g := range groups {
		for _, inv := range g.Investors {
			for _, r := range inv.Investments {
				groupID[r.ID] = g.ID
			}
		}
	}
	for _, a := range assigned {
		assert.Equal(t, groupID[a.RecordID], a.ProductID, "record %s", a.RecordID)
	}
	assert.Equal(t, "first", assigned[1].ProductID)
	assert.Equal(t, ProductID("beta|bonds|unknown"), assigned[3].ProductID)
}

func TestGroup_Describe(t *testing.T) {
	records := []model.RawInvestmentRecord{
		{ID: "r1", ProductTypeRaw: "Apartamenty", CompanyRefRaw: "dev-1"},
		{ID: "r2", ProductTypeRaw: "apartamenty", CompanyRefRaw: "DEV-1", CompanyNameRaw: "Developer SA"},
	}

	groups, _ := newTestEngine().Group(records, testIndex())
	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, "Unknown product", g.DisplayName)
	assert.Equal(t, model.ProductTypeApartments, g.Type)
	assert.Equal(t, "dev-1", g.CompanyRef)
	assert.Equal(t, "Developer SA", g.CompanyName)
	assert.Equal(t, model.ProductStatusActive, g.Status)
}

func TestGroup_ConservationAndCompleteness(t *testing.T) {
	var records []model.RawInvestmentRecord
	amounts := []string{"1 500,50", "2500.00", "NULL", "", "1,234.56", "abc", "0,01", "999"}
	names := []string{"Alfa", "ALFA", "Beta", "Gamma "}
	clients := []string{"c1", "12", "missing", ""}
	for i := 0; i < 64; i++ {
		records = append(records, model.RawInvestmentRecord{
			ID:                  fmt.Sprintf("r%03d", i),
			ClientRefCandidates: []string{clients[i%len(clients)]},
			ProductNameRaw:      names[i%len(names)],
			InvestmentAmount:    amounts[i%len(amounts)],
		})
	}

	groups, _ := newTestEngine().Group(records, testIndex())

	want := decimal.Zero
	for _, r := range records {
		want = want.Add(normalize.Amount(r.InvestmentAmount))
	}

	got := decimal.Zero
	seen := map[string]int{}
	count := 0
	for _, g := range groups {
		got = got.Add(g.TotalInvestmentAmount)
		count += g.Investments
		investorSum := decimal.Zero
		for _, inv := range g.Investors {
			investorSum = investorSum.Add(inv.TotalInvestmentAmount)
			for _, r := range inv.Investments {
				seen[r.ID]++
			}
		}
		assert.True(t, investorSum.Equal(g.TotalInvestmentAmount))
	}

	assert.True(t, want.Equal(got), "want %s got %s", want, got)
	assert.Equal(t, len(records), count)
	assert.Len(t, seen, len(records))
	for id, n := range seen {
		assert.Equal(t, 1, n, "record %s", id)
	}
}

func TestGroup_OrderIndependent(t *testing.T) {
	records := []model.RawInvestmentRecord{
		{ID: "r1", ClientRefCandidates: []string{"c1"}, ProductNameRaw: "Alfa", InvestmentAmount: "10", RemainingCapital: "5"},
		{ID: "r2", ClientRefCandidates: []string{"c2"}, ProductNameRaw: "Alfa", InvestmentAmount: "20", RemainingCapital: "5"},
		{ID: "r3", ClientRefCandidates: []string{"c1"}, ProductNameRaw: "Beta", InvestmentAmount: "30"},
	}
	reversed := []model.RawInvestmentRecord{records[2], records[1], records[0]}

	a, _ := newTestEngine().Group(records, testIndex())
	b, _ := newTestEngine().Group(reversed, testIndex())
	assert.Equal(t, a, b)
}

func TestComputeStatistics(t *testing.T) {
	records := []model.RawInvestmentRecord{
		{ID: "r1", ClientRefCandidates: []string{"c1"}, ProductNameRaw: "Alfa", InvestmentAmount: "100", RemainingCapital: "50"},
		{ID: "r2", ClientRefCandidates: []string{"c2"}, ProductNameRaw: "Alfa", InvestmentAmount: "100"},
		{ID: "r3", ClientRefCandidates: []string{"c1"}, ProductNameRaw: "Beta", ProductTypeRaw: "shares", InvestmentAmount: "50"},
	}
	groups, _ := newTestEngine().Group(records, testIndex())

	st := ComputeStatistics(groups)
	assert.Equal(t, 2, st.TotalProducts)
	assert.Equal(t, 3, st.TotalInvestments)
	assert.Equal(t, 3, st.TotalInvestors)
	assert.Equal(t, 2, st.UniqueClients)
	assert.True(t, dec("250").Equal(st.TotalInvestmentAmount))
	assert.True(t, dec("125").Equal(st.AverageValuePerProduct))
	assert.InDelta(t, 1.5, st.AverageInvestorsPerProduct, 1e-9)
	assert.Equal(t, 1, st.ProductTypeDistribution[model.ProductTypeBonds])
	assert.Equal(t, 1, st.ProductTypeDistribution[model.ProductTypeShares])
	require.Len(t, st.TopProductsByValue, 2)
	assert.Equal(t, "Alfa", st.TopProductsByValue[0].Name)
}

func TestComputeStatistics_Empty(t *testing.T) {
	st := ComputeStatistics(nil)
	assert.Equal(t, 0, st.TotalProducts)
	assert.True(t, st.AverageValuePerProduct.IsZero())
	assert.Empty(t, st.TopProductsByValue)
}
