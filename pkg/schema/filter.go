package schema

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// FilterOptions narrows an option list for a searchable selector. An empty
// query returns the options unchanged; otherwise matches are ranked best first.
func FilterOptions(options []string, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return options
	}
	matches := fuzzy.Find(query, options)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}
