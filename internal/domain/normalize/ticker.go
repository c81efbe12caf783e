package normalize

import (
	"regexp"
	"strings"
)

var tickerPattern = regexp.MustCompile(`^\$?[A-Z][A-Z0-9]{0,5}([.\-][A-Z0-9]{1,2})?$`)

// LooksLikeTicker reports whether s has the shape of a market symbol:
// a short uppercase alphanumeric token with an optional class suffix
// such as "BRK.B" and an optional leading "$".
func LooksLikeTicker(s string) bool {
	return tickerPattern.MatchString(strings.TrimSpace(s))
}

// Symbol returns the matching key for a ticker symbol.
func Symbol(s string) string {
	return Normalize(strings.TrimPrefix(strings.TrimSpace(s), "$"))
}
