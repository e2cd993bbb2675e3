// Package sanitize strips markup from free-text fields before they enter
// the ledger. Notes and similar fields are rendered back to users, so
// everything that is not plain text gets dropped here.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes all tags and attributes, returning plain text. Entities
// introduced by the policy are unescaped again so repeated passes are
// stable: Text(Text(s)) == Text(s). Empty input yields empty output,
// never an error.
func Text(s string) string {
	if s == "" {
		return ""
	}
	prev := strict.Sanitize(s)
	prev = html.UnescapeString(prev)
	// A second pass catches tags that were entity-encoded in the input
	// and only became markup after unescaping.
	out := html.UnescapeString(strict.Sanitize(prev))
	for out != prev {
		prev = out
		out = html.UnescapeString(strict.Sanitize(prev))
	}
	return strings.TrimSpace(out)
}
