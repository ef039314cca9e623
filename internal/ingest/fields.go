// Package ingest turns raw store documents into the engine's record shapes.
// It is the only place that knows which legacy field names may hold a value;
// everything downstream works on the normalized records.
package ingest

import (
	"strings"

	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/normalize"
)

// Canonical field names written by imports and the product id backfill.
const (
	FieldProductID   = "productId"
	FieldProductName = "productName"
	FieldProjectName = "projectName"
	FieldProductKey  = "productKey"
	FieldExcelID     = "excelId"
)

// Field variants in probe order. Earlier names were written by newer
// imports and win over later ones.
var (
	clientRefFields  = []string{"clientId", "client_id", "ID_Klient", "id_klient", "clientExcelId", "excelId"}
	clientNameFields = []string{"clientName", "Klient", "client", "imie_nazwisko", "fullName"}

	productIDFields   = []string{FieldProductID, "product_id"}
	productNameFields = []string{FieldProductName, "Produkt_nazwa", "nazwa_produktu", FieldProjectName, "nazwa_obligacji"}
	productTypeFields = []string{"productType", "typ_produktu", "Typ_produktu", "collectionType"}
	companyRefFields  = []string{"companyId", "company_id", "creditorCompany", "wierzyciel_spolka", "emitent", "nazwa_spolki"}
	companyNameFields = []string{"creditorCompany", "companyName", "wierzyciel_spolka", "nazwa_spolki", "emitent"}
	statusFields      = []string{"productStatus", "Status_produktu", "status", "productStatusEntry"}

	investmentAmountFields = []string{"investmentAmount", "kwota_inwestycji"}
	remainingCapitalFields = []string{"remainingCapital", "kapital_pozostaly"}
	restructuringFields    = []string{"capitalForRestructuring", "kapital_do_restrukturyzacji"}

	createdAtFields = []string{"createdAt", "created_at", "investmentEntryDate"}
	signedAtFields  = []string{"signingDate", "signedDate", "Data_podpisania", "data_podpisania", "contractDate"}

	secondaryIDFields   = []string{FieldExcelID, "original_id", "originalId", "id"}
	displayNameFields   = []string{"fullName", "imie_nazwisko", "name", "nazwa"}
	emailFields         = []string{"email", "e_mail"}
	phoneFields         = []string{"phone", "telefon"}
	clientCompanyFields = []string{"companyName", "nazwa_firmy"}
	activeFields        = []string{"isActive", "active", "aktywny"}
)

// first returns the first field in names holding a non-blank value.
func first(doc model.Document, names []string) (any, string, bool) {
	for _, n := range names {
		v, ok := doc.Get(n)
		if !ok {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, n, true
	}
	return nil, "", false
}

// text returns the first non-blank value of names as trimmed text.
func text(doc model.Document, names []string) string {
	v, _, ok := first(doc, names)
	if !ok {
		return ""
	}
	return strings.TrimSpace(normalize.String(v))
}

// all returns the non-blank text of every field in names, in order, without
// repeats.
func all(doc model.Document, names []string, key func(string) string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, n := range names {
		v, ok := doc.Get(n)
		if !ok {
			continue
		}
		s := key(normalize.String(v))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func consumedFields() map[string]struct{} {
	m := make(map[string]struct{})
	for _, set := range [][]string{
		clientRefFields, clientNameFields, productIDFields, productNameFields,
		productTypeFields, companyRefFields, companyNameFields, statusFields,
		investmentAmountFields, remainingCapitalFields, restructuringFields,
		createdAtFields, signedAtFields,
	} {
		for _, f := range set {
			m[f] = struct{}{}
		}
	}
	return m
}

var investmentFields = consumedFields()
