// Package catalog groups raw investment records into canonical products and
// aggregates their investors.
package catalog

import (
	"strings"

	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/normalize"
)

const (
	// DefaultType fills an empty product type in the key.
	DefaultType = "bonds"
	// UnknownCompany fills an empty company reference in the key.
	UnknownCompany = "unknown"

	keySep = "|"
)

// KeyComponent normalizes one key part. The separator is replaced first so a
// joined key always splits back into exactly three parts.
func KeyComponent(s string) string {
	return normalize.Key(strings.ReplaceAll(s, keySep, " "))
}

// ProductKey derives the dedup key "name|type|company" for a record. Records
// spelling the same product differently (case, spacing, diacritics) share a
// key. An empty defaultType means DefaultType.
func ProductKey(rec model.RawInvestmentRecord, defaultType string) model.ProductKey {
	if defaultType == "" {
		defaultType = DefaultType
	}

	name := KeyComponent(rec.ProductNameRaw)

	typ := KeyComponent(rec.ProductTypeRaw)
	if typ == "" {
		typ = KeyComponent(defaultType)
	}

	company := KeyComponent(rec.CompanyRefRaw)
	if company == "" {
		company = UnknownCompany
	}

	return model.ProductKey(name + keySep + typ + keySep + company)
}

// SplitKey returns the name, type, and company parts of a key.
func SplitKey(k model.ProductKey) (name, typ, company string) {
	parts := strings.SplitN(string(k), keySep, 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return parts[0], parts[1], parts[2]
}
