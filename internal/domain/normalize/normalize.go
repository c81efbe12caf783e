// Package normalize turns raw names into deterministic comparison keys.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// newFolder builds the decompose, strip-marks, fold pipeline.
// Transformers carry state, so each call gets its own chain.
func newFolder() transform.Transformer {
	return transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		cases.Fold(),
		// Folding can reintroduce combining marks (e.g. U+0130).
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(dashToSpace),
		norm.NFC,
	)
}

func dashToSpace(r rune) rune {
	if unicode.Is(unicode.Pd, r) {
		return ' '
	}
	return r
}

// Normalize returns the generic matching key for s: compatibility
// decomposition, diacritics removed, case folded, dashes split,
// whitespace collapsed and trimmed. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	out, _, err := transform.String(newFolder(), s)
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}

// Query normalizes a lookup query for cache keys.
func Query(s string) string {
	return Normalize(s)
}

// foldToken folds a single name token without splitting on dashes.
func foldToken(s string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		cases.Fold(),
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.TrimSpace(out)
}
