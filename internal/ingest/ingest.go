package ingest

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/normalize"
)

// Report counts data-quality problems found while converting documents.
type Report struct {
	Documents int `json:"documents"`
	// NoClientRef counts records carrying neither a client reference nor a
	// client name.
	NoClientRef int `json:"noClientRef"`
	// BadDates counts date fields that were present but unreadable.
	BadDates int `json:"badDates"`
}

// Investment converts one investment document. bad reports how many date
// fields were present but could not be parsed.
func Investment(doc model.Document) (rec model.RawInvestmentRecord, bad int) {
	rec = model.RawInvestmentRecord{
		ID:                  doc.ID,
		ClientRefCandidates: all(doc, clientRefFields, strings.TrimSpace),
		ClientNameRaw:       text(doc, clientNameFields),
		ProductIDRaw:        text(doc, productIDFields),
		ProductNameRaw:      text(doc, productNameFields),
		ProductTypeRaw:      text(doc, productTypeFields),
		CompanyRefRaw:       text(doc, companyRefFields),
		CompanyNameRaw:      text(doc, companyNameFields),
		StatusRaw:           text(doc, statusFields),

		InvestmentAmount:        text(doc, investmentAmountFields),
		RemainingCapital:        text(doc, remainingCapitalFields),
		CapitalForRestructuring: text(doc, restructuringFields),
	}

	var ok bool
	if rec.CreatedAt, ok = date(doc, createdAtFields); !ok {
		bad++
	}
	if rec.SignedAt, ok = date(doc, signedAtFields); !ok {
		bad++
	}

	for k, v := range doc.Fields {
		if _, known := investmentFields[k]; known {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]any)
		}
		rec.Extra[k] = v
	}
	return rec, bad
}

// date parses the first present date field. ok is false only when a value
// was present and unreadable.
func date(doc model.Document, names []string) (*time.Time, bool) {
	v, _, present := first(doc, names)
	if !present {
		return nil, true
	}
	t, ok := normalize.ParseDate(v)
	if !ok {
		return nil, false
	}
	return &t, true
}

// Investments converts investment documents in input order.
func Investments(docs []model.Document) ([]model.RawInvestmentRecord, Report) {
	log := zap.L().With(zap.String("component", "ingest"))
	report := Report{Documents: len(docs)}
	out := make([]model.RawInvestmentRecord, 0, len(docs))

	for _, d := range docs {
		rec, bad := Investment(d)
		if bad > 0 {
			report.BadDates += bad
			log.Debug("ingest: unreadable date", zap.String("id", d.ID))
		}
		if len(rec.ClientRefCandidates) == 0 && rec.ClientNameRaw == "" {
			report.NoClientRef++
		}
		out = append(out, rec)
	}

	if report.BadDates > 0 || report.NoClientRef > 0 {
		log.Warn("ingest: data quality issues",
			zap.Int("documents", report.Documents),
			zap.Int("bad_dates", report.BadDates),
			zap.Int("no_client_ref", report.NoClientRef),
		)
	}
	return out, report
}

// Client converts one client document. Clients are active unless a flag
// says otherwise.
func Client(doc model.Document) model.ClientRecord {
	c := model.ClientRecord{
		ID:           doc.ID,
		SecondaryIDs: all(doc, secondaryIDFields, normalize.ID),
		DisplayName:  text(doc, displayNameFields),
		Email:        text(doc, emailFields),
		Phone:        text(doc, phoneFields),
		CompanyName:  text(doc, clientCompanyFields),
		IsActive:     true,
	}
	if v, _, ok := first(doc, activeFields); ok {
		if b, ok := parseBool(v); ok {
			c.IsActive = b
		}
	}
	return c
}

// Clients converts client documents in input order.
func Clients(docs []model.Document) []model.ClientRecord {
	out := make([]model.ClientRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, Client(d))
	}
	return out
}

func parseBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "tak", "yes", "y", "aktywny":
			return true, true
		case "nie", "no", "n", "nieaktywny":
			return false, true
		}
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	}
	s := normalize.String(v)
	if s == "0" || s == "1" {
		return s == "1", true
	}
	return false, false
}
