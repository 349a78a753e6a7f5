package store

import (
	"regexp"
	"strings"
)

// nonWordRegex matches everything FTS5 could read as query syntax.
var nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// QueryTerms splits a free-text query into plain word terms, dropping
// punctuation.
func QueryTerms(query string) []string {
	return strings.Fields(nonWordRegex.ReplaceAllString(query, " "))
}

// SanitizeFTSQuery turns free text into an FTS5 MATCH expression: every
// term double-quoted, terms OR-joined. Empty input yields "".
func SanitizeFTSQuery(query string) string {
	terms := QueryTerms(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + term + `"`
	}
	return strings.Join(quoted, " OR ")
}
