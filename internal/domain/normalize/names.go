package normalize

import (
	"strings"
	"unicode/utf8"
)

var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "dr": true,
	"prof": true, "professor": true, "sir": true, "dame": true, "lord": true, "lady": true,
	"ceo": true, "cto": true, "cfo": true, "coo": true,
	"president": true, "chairman": true, "chairwoman": true, "director": true,
	"general": true, "admiral": true, "captain": true, "major": true, "colonel": true, "lieutenant": true,
	"phd": true, "md": true, "jd": true, "mba": true, "ba": true, "bs": true,
	"cfa": true, "cpa": true, "esq": true,
}

var generational = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "v": true,
}

// tokenKey is the form used to look a token up in the vocabularies.
func tokenKey(tok string) string {
	tok = strings.NewReplacer(".", "", ",", "").Replace(tok)
	return foldToken(tok)
}

// ParsedName is a person name split into parts with honorifics removed.
type ParsedName struct {
	Given  string
	Middle []string
	Family string
	Suffix string
}

// ParseName strips titles, degrees and generational suffixes from raw and
// splits the remainder. A single remaining token is a family name.
func ParseName(raw string) ParsedName {
	var kept []string
	var suffix string
	tokens := strings.Fields(strings.ReplaceAll(raw, ",", " "))
	for i, tok := range tokens {
		key := tokenKey(tok)
		if key == "" || honorifics[key] {
			continue
		}
		if generational[key] && len(kept) > 0 && trailingSuffix(tokens[i+1:]) {
			if suffix == "" {
				suffix = strings.TrimRight(tok, ".,")
			}
			continue
		}
		kept = append(kept, strings.Trim(tok, ".,"))
	}

	var p ParsedName
	p.Suffix = suffix
	switch len(kept) {
	case 0:
	case 1:
		p.Family = kept[0]
	default:
		p.Given = kept[0]
		p.Family = kept[len(kept)-1]
		p.Middle = append([]string(nil), kept[1:len(kept)-1]...)
	}
	return p
}

// trailingSuffix reports whether the remaining tokens are all honorifics or
// generational suffixes, i.e. the current token sits at the end of the name.
func trailingSuffix(rest []string) bool {
	for _, tok := range rest {
		key := tokenKey(tok)
		if key != "" && !honorifics[key] && !generational[key] {
			return false
		}
	}
	return true
}

// StripHonorifics removes titles, degrees and generational suffixes.
func StripHonorifics(raw string) string {
	p := ParseName(raw)
	parts := make([]string, 0, 2+len(p.Middle))
	if p.Given != "" {
		parts = append(parts, p.Given)
	}
	parts = append(parts, p.Middle...)
	if p.Family != "" {
		parts = append(parts, p.Family)
	}
	return strings.Join(parts, " ")
}

// Keys are the derived person matching keys.
type Keys struct {
	GivenNorm       string
	FamilyNorm      string
	GivenInitial    string
	GivenPrefix3    string
	MiddleInitials  string
	FullNormNoHonor string
}

// FamilyOnly reports whether the name carried no given part.
func (k Keys) FamilyOnly() bool {
	return k.GivenNorm == ""
}

// IsInitial reports whether the given name was only an initial.
func (k Keys) IsInitial() bool {
	return utf8.RuneCountInString(k.GivenNorm) == 1
}

// PersonKeys derives matching keys from a raw person name.
func PersonKeys(raw string) Keys {
	p := ParseName(raw)
	return KeysFor(p.Given, strings.Join(p.Middle, " "), p.Family)
}

// KeysFor derives matching keys from already split name fields.
func KeysFor(given, middle, family string) Keys {
	var k Keys
	k.GivenNorm = namePart(given)
	k.FamilyNorm = familyPart(family)
	if k.GivenNorm != "" {
		r, _ := utf8.DecodeRuneInString(k.GivenNorm)
		k.GivenInitial = string(r)
		k.GivenPrefix3 = prefix3(k.GivenNorm)
	}

	var initials strings.Builder
	for _, m := range strings.Fields(middle) {
		if n := namePart(m); n != "" {
			r, _ := utf8.DecodeRuneInString(n)
			initials.WriteRune(r)
		}
	}
	k.MiddleInitials = initials.String()

	parts := make([]string, 0, 3)
	for _, s := range []string{k.GivenNorm, k.MiddleInitials, k.FamilyNorm} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	k.FullNormNoHonor = Normalize(strings.Join(parts, " "))
	return k
}

// namePart folds a given or middle name, dropping dots.
func namePart(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	return strings.Join(strings.Fields(foldToken(s)), "")
}

// familyPart folds a family name into one token, keeping internal hyphens.
func familyPart(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	f := foldToken(s)
	var b strings.Builder
	for _, r := range f {
		switch {
		case r == ' ':
			continue
		case dashToSpace(r) == ' ':
			b.WriteByte('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

func prefix3(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == 3 {
			break
		}
		b.WriteRune(r)
		n++
	}
	for ; n < 3; n++ {
		b.WriteByte('_')
	}
	return b.String()
}
