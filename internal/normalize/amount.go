package normalize

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Amount converts a raw monetary value to an exact decimal. Empty values,
// the literal "NULL", non-finite numbers, and unparseable text all map to zero.
func Amount(v any) decimal.Decimal {
	d, _ := ParseAmount(v)
	return d
}

// ParseAmount is Amount with a validity flag. ok is false only for input that
// was present but could not be read as a number; empty and "NULL" values are
// valid zeros.
//
// Separator rules for text input:
//   - spaces, apostrophes, and underscores are grouping characters
//   - when both ',' and '.' appear, the last one is the decimal separator
//   - a separator that appears once is the decimal separator
//   - a separator that appears more than once is a grouping character
func ParseAmount(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, true
	case decimal.Decimal:
		return x, true
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, true
		}
		return *x, true
	case string:
		return parseAmountString(x)
	case json.Number:
		return parseAmountString(x.String())
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt32(x), true
	case int64:
		return decimal.NewFromInt(x), true
	case uint:
		return decimal.NewFromUint64(uint64(x)), true
	case uint32:
		return decimal.NewFromUint64(uint64(x)), true
	case uint64:
		return decimal.NewFromUint64(x), true
	default:
		return decimal.Zero, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func parseAmountString(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") || s == "-" {
		return decimal.Zero, true
	}

	// Plain machine-formatted numbers ("1500.50", "-3", "1e5").
	if d, err := decimal.NewFromString(s); err == nil {
		return d, true
	}

	var b strings.Builder
	negative := false
	hasDigit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
			b.WriteRune(r)
		case r == ',' || r == '.':
			b.WriteRune(r)
		case r == '-' || r == '−':
			if b.Len() == 0 {
				negative = true
			}
		case unicode.IsSpace(r), r == '\'', r == '_':
			// grouping
		default:
			// currency symbols and unit suffixes ("zł", "PLN")
		}
	}
	if !hasDigit {
		return decimal.Zero, false
	}

	cleaned, ok := resolveSeparators(b.String())
	if !ok {
		return decimal.Zero, false
	}
	if negative {
		cleaned = "-" + cleaned
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// resolveSeparators rewrites digits-with-separators into a plain "1234.56"
// form. ok is false when the separators are contradictory.
func resolveSeparators(s string) (string, bool) {
	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			if commas > 1 {
				return "", false
			}
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
			if dots > 1 {
				return "", false
			}
		}
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	s = strings.TrimSuffix(s, ".")
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if s == "" {
		return "", false
	}
	return s, true
}
