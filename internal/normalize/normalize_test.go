package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestKey_Empty(t *testing.T) {
	assert.Equal(t, "", Key(""))
	assert.Equal(t, "", Key("   \t\n"))
}

func TestKey_CaseAndWhitespace(t *testing.T) {
	assert.Equal(t, "obligacje alfa", Key("Obligacje Alfa"))
	assert.Equal(t, "obligacje alfa", Key("  obligacje   alfa "))
	assert.Equal(t, "obligacje alfa", Key("OBLIGACJE ALFA"))
}

func TestKey_Diacritics(t *testing.T) {
	assert.Equal(t, "zazolc gesla jazn", Key("Zażółć gęślą jaźń"))
	assert.Equal(t, "lodz", Key("ŁÓDŹ"))
	assert.Equal(t, "osterreich", Key("Österreich"))
	assert.Equal(t, "ostergade", Key("Østergade"))
}

func TestKey_Idempotent(t *testing.T) {
	inputs := []string{
		"Obligacje Alfa",
		"  Zażółć   GĘŚLĄ jaźń ",
		"Straße",
		"Æsir & Œuvre",
		"Spółka z o.o.",
		"İstanbul",
		"ǣ Ǽ Ǿ ǿ",
		"Ꭰ ꭰ ᏸ",
		"",
	}
	for _, in := range inputs {
		once := Key(in)
		assert.Equal(t, once, Key(once), "input %q", in)
	}
}

func TestKey_IdempotentAllRunes(t *testing.T) {
	var failures []string
	check := func(in string) {
		once := Key(in)
		if twice := Key(once); twice != once {
			failures = append(failures, fmt.Sprintf("%q -> %q -> %q", in, once, twice))
		}
	}

	for r := rune(0); r < 0x30000; r++ {
		if r >= 0xD800 && r <= 0xDFFF {
			continue
		}
		check(string(r))
		check("a" + string(r) + "B")
	}

	if len(failures) > 10 {
		failures = failures[:10]
	}
	assert.Empty(t, failures)
}

func TestKey_ComposedSpecialLetters(t *testing.T) {
	assert.Equal(t, "ae", Key("ǣ"))
	assert.Equal(t, "ae", Key("Ǽ"))
	assert.Equal(t, "o", Key("Ǿ"))
	assert.Equal(t, Key("ꭰ"), Key("Ꭰ"))
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestParseAmount_Separators(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1 500,50", "1500.50"},
		{"2500.00", "2500"},
		{"1,234.56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"1.234.567", "1234567"},
		{"1,000,000", "1000000"},
		{"1,5", "1.5"},
		{"1 500", "1500"},
		{"1500 zł", "1500"},
		{"-1 200,5", "-1200.5"},
		{"PLN 10'000", "10000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			assert.True(t, ok)
			requireDecimal(t, tt.want, got)
		})
	}
}

func TestParseAmount_EmptyIsValidZero(t *testing.T) {
	for _, in := range []any{nil, "", "  ", "NULL", "null"} {
		got, ok := ParseAmount(in)
		assert.True(t, ok, "input %v", in)
		assert.True(t, got.IsZero(), "input %v", in)
	}
}

func TestParseAmount_Malformed(t *testing.T) {
	for _, in := range []any{"abc", "NaN", math.NaN(), math.Inf(1), "1,2,3.4.5", []string{"1"}} {
		got, ok := ParseAmount(in)
		assert.False(t, ok, "input %v", in)
		assert.True(t, got.IsZero(), "input %v", in)
	}
}

func TestParseAmount_Numbers(t *testing.T) {
	got, ok := ParseAmount(1500.5)
	assert.True(t, ok)
	requireDecimal(t, "1500.5", got)

	got, ok = ParseAmount(json.Number("42"))
	assert.True(t, ok)
	requireDecimal(t, "42", got)

	got, ok = ParseAmount(int64(7))
	assert.True(t, ok)
	requireDecimal(t, "7", got)
}

func TestAmount_ExactSum(t *testing.T) {
	sum := decimal.Zero
	for i := 0; i < 10; i++ {
		sum = sum.Add(Amount("0,1"))
	}
	requireDecimal(t, "1", sum)
}

func TestID(t *testing.T) {
	assert.Equal(t, "1234", ID("1234.0"))
	assert.Equal(t, "1234", ID(" 1234.00 "))
	assert.Equal(t, "12.5", ID("12.5"))
	assert.Equal(t, "abc", ID(" abc "))
	assert.Equal(t, ".0", ID(".0"))
	assert.Equal(t, "a1.0", ID("a1.0"))
}

func TestString(t *testing.T) {
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "1234", String(1234.0))
	assert.Equal(t, "12.5", String(12.5))
	assert.Equal(t, "abc", String("  abc "))
	assert.Equal(t, "99", String(json.Number("99")))
	assert.Equal(t, "true", String(true))
	assert.Equal(t, "", String(math.NaN()))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	for _, in := range []any{
		"2024-03-15",
		"15.03.2024",
		"15/03/2024",
		"2024-03-15T00:00:00Z",
		45366.0,
		json.Number("45366"),
		int64(1710460800),
		float64(1710460800000),
		map[string]any{"_seconds": int64(1710460800), "_nanoseconds": int64(0)},
		want,
	} {
		got, ok := ParseDate(in)
		assert.True(t, ok, "input %v", in)
		assert.True(t, want.Equal(got), "input %v: got %s", in, got)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, in := range []any{nil, "", "NULL", "not a date", -5.0, time.Time{}, 12.0} {
		_, ok := ParseDate(in)
		assert.False(t, ok, "input %v", in)
	}
}
