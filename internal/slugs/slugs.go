// Package slugs turns free text into comparable identifiers.
//
// Heading slugs name Markdown sections the way rendered documents anchor
// them. Component slugs, built on gosimple/slug, transliterate to ASCII and
// are used to match classifiers written loosely ("retail customer") against
// declared class ids and labels.
package slugs

import (
	"strings"
	"unicode"

	goslug "github.com/gosimple/slug"
)

// Heading converts a heading to a fragment anchor: letters and digits are
// kept lower-cased, runs of separators become a single dash.
func Heading(text string) string {
	var b strings.Builder
	prevDash := false

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		case r == ' ' || r == '-' || r == '_' || r == ':':
			if !prevDash && b.Len() > 0 {
				b.WriteRune('-')
				prevDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Component converts s to an ASCII slug. Text with nothing to transliterate
// falls back to lower case with dashes for spaces.
func Component(s string) string {
	s = strings.TrimSpace(s)
	if slugged := goslug.Make(s); slugged != "" {
		return slugged
	}
	return strings.ToLower(strings.ReplaceAll(s, " ", "-"))
}
