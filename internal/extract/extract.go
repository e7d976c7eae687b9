// Package extract pulls scheme+host tokens out of fetched HTML per spec.md
// §4.4's fixed regular expression.
package extract

import "regexp"

// linkPattern intentionally matches scheme+host only: '/' is outside the
// character class, so a trailing /path is never captured.
var linkPattern = regexp.MustCompile(`https?://[\w\-.]+`)

// Extract returns every scheme+host token found in html, in source order,
// duplicates preserved. Deduplication is the caller's responsibility.
func Extract(html string) []string {
	return linkPattern.FindAllString(html, -1)
}
