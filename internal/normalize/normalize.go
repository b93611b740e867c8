// Package normalize holds the text normalization rules shared by the label
// derivation helpers, the import address comparison and the postal lookup.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	spacesRe  = regexp.MustCompile(`[ ]+`)
	charsetRe = regexp.MustCompile(`[^0-9a-zA-Z_-]`)

	accentStripper = transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
)

// StripAccents removes diacritical marks from s ("São João" -> "Sao Joao").
func StripAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

// TextToID converts free text into a css/identifier-safe token: lowercase,
// accents stripped, runs of spaces collapsed into underscores, remaining
// characters restricted to [0-9a-zA-Z_-].
func TextToID(s string) string {
	s = StripAccents(strings.ToLower(s))
	s = spacesRe.ReplaceAllString(s, "_")
	return charsetRe.ReplaceAllString(s, "")
}

// Street normalizes a street name for postal lookup and address comparison:
// lowercased, trimmed, with the common registry abbreviations removed
// ("r." and "av." prefixes, "bc." and "jr" suffixes).
func Street(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if rest, ok := strings.CutPrefix(s, "r."); ok {
		s = strings.TrimSpace(rest)
	}
	if rest, ok := strings.CutPrefix(s, "av."); ok {
		s = strings.TrimSpace(rest)
	}
	if rest, ok := strings.CutSuffix(s, "bc."); ok {
		s = strings.TrimSpace(rest)
	}
	if rest, ok := strings.CutSuffix(s, "jr"); ok {
		s = strings.TrimSpace(rest)
	}
	return s
}

// StreetNumber normalizes a street number: lowercased, trimmed, leading "n"
// marker removed; the "no number" marker "s/n" becomes empty.
func StreetNumber(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSpace(strings.TrimPrefix(s, "n"))
	if s == "s/n" {
		return ""
	}
	return s
}

// SameNeighborhood compares two neighborhood names in identifier form, so
// accent and casing differences do not defeat the match.
func SameNeighborhood(a, b string) bool {
	return TextToID(a) == TextToID(b)
}
