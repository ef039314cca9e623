package model

import "time"

// RawInvestmentRecord is one investment row as it came out of a historical
// import. The engine never mutates it. Amount fields keep their raw textual
// form ("1 500,50", "NULL", "2500.00") and are normalized during grouping.
type RawInvestmentRecord struct {
	ID string `json:"id"`

	// ClientRefCandidates lists every value found under a known
	// client-reference field, in collection order.
	ClientRefCandidates []string `json:"clientRefCandidates"`
	ClientNameRaw       string   `json:"clientNameRaw,omitempty"`

	ProductIDRaw   string `json:"productId,omitempty"`
	ProductNameRaw string `json:"productNameRaw"`
	ProductTypeRaw string `json:"productTypeRaw"`
	CompanyRefRaw  string `json:"companyRefRaw"`
	CompanyNameRaw string `json:"companyNameRaw,omitempty"`
	StatusRaw      string `json:"statusRaw,omitempty"`

	InvestmentAmount        string `json:"investmentAmount"`
	RemainingCapital        string `json:"remainingCapital"`
	CapitalForRestructuring string `json:"capitalForRestructuring"`

	CreatedAt *time.Time `json:"createdAt,omitempty"`
	SignedAt  *time.Time `json:"signedAt,omitempty"`

	// Extra carries passthrough fields the engine does not interpret.
	Extra map[string]any `json:"extra,omitempty"`
}

// BestDate returns the most reliable date on the record: the creation
// timestamp, falling back to the signing date.
func (r RawInvestmentRecord) BestDate() (time.Time, bool) {
	if r.CreatedAt != nil && !r.CreatedAt.IsZero() {
		return *r.CreatedAt, true
	}
	if r.SignedAt != nil && !r.SignedAt.IsZero() {
		return *r.SignedAt, true
	}
	return time.Time{}, false
}
