package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RegionKey normalizes a state or region name for lookups: accents are
// stripped, case is folded and inner whitespace collapsed, so "Nuevo León",
// "NUEVO LEON" and " nuevo  leon " share a key.
func RegionKey(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}
