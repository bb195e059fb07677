// Package exercise turns free-form exercise names into canonical display
// names and stable lookup keys.
package exercise

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases name, strips diacritics, turns punctuation into
// spaces and collapses whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// Canonical resolves name to its canonical display form. Known aliases map
// to the shared display name; anything else is the trimmed name title-cased.
// aliased reports whether the alias table matched.
func Canonical(name string) (canonical string, aliased bool) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", false
	}
	if c, ok := aliases[Normalize(name)]; ok {
		return c, true
	}
	return cases.Title(language.BrazilianPortuguese).String(name), false
}

// Key returns the lookup key for a raw exercise name. Names that share a
// canonical form share a key. Empty or punctuation-only names yield "".
func Key(name string) string {
	c, _ := Canonical(name)
	return Normalize(c)
}

// Resolve returns both the canonical display name and the key.
func Resolve(name string) (canonical, key string) {
	canonical, _ = Canonical(name)
	return canonical, Normalize(canonical)
}
