package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// String renders a raw scalar field as trimmed text. Integral floats are
// printed without a fractional part so that 1234 and 1234.0 read the same.
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return strings.TrimSpace(x.String())
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return strings.TrimSpace(x.String())
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ID canonicalizes an identifier for exact lookup. Spreadsheet exports often
// turn integer ids into floats, so "1234.0" and "1234" are the same id.
func ID(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i > 0 && allDigits(s[:i]) && strings.Trim(s[i+1:], "0") == "" {
		return s[:i]
	}
	return s
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
}

// Excel serial day numbers in this range map to 1954..2119.
const (
	minExcelSerial = 20000
	maxExcelSerial = 80000
)

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate reads a raw date field. It understands time values, common text
// layouts, Excel serial day numbers, Unix seconds or milliseconds, and
// exported store timestamps ({"_seconds": n}). ok is false when the value is
// absent or unreadable.
func ParseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x.UTC(), !x.IsZero()
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return x.UTC(), true
	case string:
		return parseDateString(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return fromNumber(f)
		}
		return parseDateString(x.String())
	case float64:
		return fromNumber(x)
	case int64:
		return fromNumber(float64(x))
	case int:
		return fromNumber(float64(x))
	case map[string]any:
		for _, k := range []string{"_seconds", "seconds"} {
			if secs, ok := x[k]; ok {
				f, ok := ParseAmount(secs)
				if !ok {
					return time.Time{}, false
				}
				return time.Unix(f.IntPart(), 0).UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromNumber(f)
	}
	return time.Time{}, false
}

func fromNumber(f float64) (time.Time, bool) {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0) || f <= 0:
		return time.Time{}, false
	case f >= minExcelSerial && f < maxExcelSerial:
		days := math.Floor(f)
		frac := f - days
		t := excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(frac * float64(24*time.Hour)))
		return t, true
	case f >= 1e11:
		return time.UnixMilli(int64(f)).UTC(), true
	case f >= 1e8:
		return time.Unix(int64(f), 0).UTC(), true
	}
	return time.Time{}, false
}
