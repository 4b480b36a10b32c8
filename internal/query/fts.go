package query

import "strings"

// BuildFTSPrefixQuery builds an FTS5 MATCH expression that requires every
// word, each as a prefix. Words are quoted so that hyphens and FTS keywords
// (AND, OR, NOT, NEAR) are taken literally.
//
// The result is the RHS of `fts_content MATCH ...`.
func BuildFTSPrefixQuery(words []string) string {
	if len(words) == 0 {
		// Match nothing (FTS phrase query for empty string).
		return `""`
	}
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"*`
	}
	return strings.Join(parts, " ")
}

// trigramLength is the shortest word the trigram index can find.
const trigramLength = 3

// BuildFTSSubstringQuery builds a MATCH expression for the trigram index
// that requires every word to appear as a substring. Words shorter than
// three characters never match there; callers handle those separately.
func BuildFTSSubstringQuery(words []string) string {
	if len(words) == 0 {
		return `""`
	}
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(parts, " ")
}
