// Package normalize turns heterogeneous raw fields into canonical strings,
// identifiers, amounts, and dates. Every function is pure and total: malformed
// input maps to the zero value instead of an error.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// specialLetters covers letters that carry no combining mark under NFD and
// so survive diacritic stripping. Inputs are already lowercased.
var specialLetters = strings.NewReplacer(
	"ł", "l",
	"đ", "d",
	"ø", "o",
	"æ", "ae",
	"œ", "oe",
	"ı", "i",
)

// maxKeyPasses bounds the rewrite loop in Key.
const maxKeyPasses = 8

// Key standardizes a string for exact matching by:
//  1. Unicode case folding, then lowercasing (Fold alone maps some scripts,
//     e.g. Cherokee, back and forth between cases)
//  2. Stripping diacritics (ą→a, ó→o, ǿ→o)
//  3. Replacing letters with no decomposition (ł→l, æ→ae)
//  4. Trimming and collapsing whitespace runs into single spaces
//
// The steps repeat until the output stops changing, so Key is idempotent:
// Key(Key(s)) == Key(s).
func Key(s string) string {
	for i := 0; i < maxKeyPasses; i++ {
		next := keyPass(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func keyPass(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = strings.ToLower(cases.Fold().String(s))

	if stripped, _, err := transform.String(stripMarks(), s); err == nil {
		s = stripped
	}
	s = specialLetters.Replace(s)

	return strings.Join(strings.Fields(s), " ")
}

// stripMarks decomposes, drops nonspacing marks, and recomposes. A new chain
// is built per call because transformers carry state.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
