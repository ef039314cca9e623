package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductKey is the normalized composite "name|type|company" identifying the
// same product across differently spelled raw records.
type ProductKey string

// ProductType is the canonical product category.
type ProductType string

const (
	ProductTypeBonds      ProductType = "bonds"
	ProductTypeShares     ProductType = "shares"
	ProductTypeLoans      ProductType = "loans"
	ProductTypeApartments ProductType = "apartments"
	ProductTypeOther      ProductType = "other"
)

// ProductStatus summarizes how many of a product's investments are still active.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusPending  ProductStatus = "pending"
	ProductStatusInactive ProductStatus = "inactive"
)

// InvestorSummary aggregates one resolved client's investments in one product.
type InvestorSummary struct {
	Client ClientRecord `json:"client"`
	// Methods counts how this client's records were resolved.
	Methods     map[ResolutionMethod]int `json:"methods"`
	Investments []RawInvestmentRecord    `json:"investments"`

	InvestmentCount              int             `json:"investmentCount"`
	TotalInvestmentAmount        decimal.Decimal `json:"totalInvestmentAmount"`
	TotalRemainingCapital        decimal.Decimal `json:"totalRemainingCapital"`
	TotalCapitalForRestructuring decimal.Decimal `json:"totalCapitalForRestructuring"`
	CapitalSecuredByRealEstate   decimal.Decimal `json:"capitalSecuredByRealEstate"`
}

// ProductGroup is the canonical product built from every raw record sharing a key.
type ProductGroup struct {
	ID          string      `json:"id"`
	Key         ProductKey  `json:"key"`
	DisplayName string      `json:"displayName"`
	Type        ProductType `json:"type"`
	CompanyRef  string      `json:"companyRef"`
	CompanyName string      `json:"companyName"`

	TotalInvestmentAmount        decimal.Decimal `json:"totalInvestmentAmount"`
	TotalRemainingCapital        decimal.Decimal `json:"totalRemainingCapital"`
	TotalCapitalForRestructuring decimal.Decimal `json:"totalCapitalForRestructuring"`
	AverageInvestment            decimal.Decimal `json:"averageInvestment"`

	// Investments is the number of raw records in the group.
	Investments     int               `json:"investments"`
	UniqueInvestors int               `json:"uniqueInvestors"`
	Investors       []InvestorSummary `json:"investors"`

	EarliestDate time.Time `json:"earliestDate"`
	LatestDate   time.Time `json:"latestDate"`
	// DatesKnown is false when no member record carried a date and the
	// range was defaulted to the run time.
	DatesKnown bool `json:"datesKnown"`

	Status ProductStatus `json:"status"`
}
