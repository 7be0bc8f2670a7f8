package theme

import (
	"regexp"
	"strings"
)

var (
	slugStripRe    = regexp.MustCompile(`[^A-Za-z0-9_\- ]+`)
	slugCollapseRe = regexp.MustCompile(`\s+`)
)

// Slugify turns a display title into a filesystem-safe slug: characters
// outside [A-Za-z0-9_- ] are stripped, whitespace runs collapse to a single
// underscore.
func Slugify(title string) string {
	s := slugStripRe.ReplaceAllString(title, "")
	s = slugCollapseRe.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "theme"
	}
	return s
}
