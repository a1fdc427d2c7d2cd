package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText strips any markup from user-supplied free text (appointment
// reasons, clinic descriptions) and returns it trimmed.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	clean := strict.Sanitize(s)
	// StrictPolicy escapes entities; store the readable form
	return strings.TrimSpace(html.UnescapeString(clean))
}
