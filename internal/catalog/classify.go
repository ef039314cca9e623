package catalog

import (
	"strings"

	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/normalize"
)

// Active share thresholds for DetermineStatus.
const (
	activeThreshold  = 0.8
	pendingThreshold = 0.2
)

var typeKeywords = []struct {
	typ      model.ProductType
	keywords []string
}{
	{model.ProductTypeApartments, []string{"apartment", "apartament", "mieszkan"}},
	{model.ProductTypeShares, []string{"share", "udzial", "akcj"}},
	{model.ProductTypeLoans, []string{"loan", "pozyczk"}},
	{model.ProductTypeBonds, []string{"bond", "obligac"}},
}

// MapProductType maps a free-text product type to its category. Empty input
// is bonds; text matching no known keyword is other.
func MapProductType(raw string) model.ProductType {
	s := normalize.Key(raw)
	if s == "" {
		return model.ProductTypeBonds
	}
	for _, tk := range typeKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(s, kw) {
				return tk.typ
			}
		}
	}
	return model.ProductTypeOther
}

// IsActive reports whether a raw status marks an investment as active. An
// empty status counts as active.
func IsActive(rawStatus string) bool {
	s := normalize.Key(rawStatus)
	if s == "" {
		return true
	}
	if strings.Contains(s, "inactive") || strings.Contains(s, "nieaktywn") {
		return false
	}
	return strings.Contains(s, "active") || strings.Contains(s, "aktywn")
}

// DetermineStatus classifies a product by the share of its active records.
func DetermineStatus(records []model.RawInvestmentRecord) model.ProductStatus {
	if len(records) == 0 {
		return model.ProductStatusInactive
	}

	active := 0
	for _, r := range records {
		if IsActive(r.StatusRaw) {
			active++
		}
	}

	ratio := float64(active) / float64(len(records))
	switch {
	case ratio > activeThreshold:
		return model.ProductStatusActive
	case ratio > pendingThreshold:
		return model.ProductStatusPending
	default:
		return model.ProductStatusInactive
	}
}
