package contentrouter

import (
	"regexp"

	"github.com/use-agent/peel/models"
)

// urlRe matches bare http(s) URLs inside arbitrary text/JSON for the
// plain-text and JSON routes, which have no DOM to walk for <a href>.
var urlRe = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

// extractURLs finds every http(s) URL in s and dedupes them, preserving
// first-seen order.
func extractURLs(s string) []models.Link {
	seen := make(map[string]struct{})
	var links []models.Link
	for _, u := range urlRe.FindAllString(s, -1) {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		links = append(links, models.Link{URL: u})
	}
	return links
}
