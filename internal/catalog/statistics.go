package catalog

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sells-group/investor-resolver/internal/model"
)

const topProductCount = 5

// TopProduct is a short entry in the top-by-value list.
type TopProduct struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	Investors int             `json:"investors"`
}

// Statistics summarizes a list of products.
type Statistics struct {
	TotalProducts              int                         `json:"totalProducts"`
	TotalInvestments           int                         `json:"totalInvestments"`
	TotalInvestmentAmount      decimal.Decimal             `json:"totalInvestmentAmount"`
	TotalRemainingCapital      decimal.Decimal             `json:"totalRemainingCapital"`
	TotalInvestors             int                         `json:"totalInvestors"`
	UniqueClients              int                         `json:"uniqueClients"`
	AverageValuePerProduct     decimal.Decimal             `json:"averageValuePerProduct"`
	AverageInvestorsPerProduct float64                     `json:"averageInvestorsPerProduct"`
	ProductTypeDistribution    map[model.ProductType]int   `json:"productTypeDistribution"`
	StatusDistribution         map[model.ProductStatus]int `json:"statusDistribution"`
	TopProductsByValue         []TopProduct                `json:"topProductsByValue"`
}

// ComputeStatistics aggregates groups. TotalInvestors sums per-product
// investor counts; UniqueClients counts each client once across products.
func ComputeStatistics(groups []model.ProductGroup) Statistics {
	st := Statistics{
		TotalProducts:           len(groups),
		TotalInvestmentAmount:   decimal.Zero,
		TotalRemainingCapital:   decimal.Zero,
		AverageValuePerProduct:  decimal.Zero,
		ProductTypeDistribution: make(map[model.ProductType]int),
		StatusDistribution:      make(map[model.ProductStatus]int),
		TopProductsByValue:      []TopProduct{},
	}

	clients := make(map[string]struct{})
	for _, g := range groups {
		st.TotalInvestments += g.Investments
		st.TotalInvestmentAmount = st.TotalInvestmentAmount.Add(g.TotalInvestmentAmount)
		st.TotalRemainingCapital = st.TotalRemainingCapital.Add(g.TotalRemainingCapital)
		st.TotalInvestors += g.UniqueInvestors
		st.ProductTypeDistribution[g.Type]++
		st.StatusDistribution[g.Status]++
		for _, inv := range g.Investors {
			clients[inv.Client.ID] = struct{}{}
		}
	}
	st.UniqueClients = len(clients)

	if len(groups) == 0 {
		return st
	}

	n := decimal.NewFromInt(int64(len(groups)))
	st.AverageValuePerProduct = st.TotalInvestmentAmount.Div(n)
	st.AverageInvestorsPerProduct = float64(st.TotalInvestors) / float64(len(groups))

	ranked := make([]model.ProductGroup, len(groups))
	copy(ranked, groups)
	sort.SliceStable(ranked, func(i, j int) bool {
		if c := ranked[i].TotalInvestmentAmount.Cmp(ranked[j].TotalInvestmentAmount); c != 0 {
			return c > 0
		}
		return ranked[i].Key < ranked[j].Key
	})
	for i := 0; i < len(ranked) && i < topProductCount; i++ {
		st.TopProductsByValue = append(st.TopProductsByValue, TopProduct{
			ID:        ranked[i].ID,
			Name:      ranked[i].DisplayName,
			Value:     ranked[i].TotalInvestmentAmount,
			Investors: ranked[i].UniqueInvestors,
		})
	}

	return st
}
