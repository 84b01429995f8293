// Package contentrouter dispatches a fetched document to the right parser
// based on its content type (§4.5), bypassing the HTML readability/prune
// pipeline for PDF, DOCX, JSON, RSS/Atom, and plain-text payloads.
package contentrouter

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/use-agent/peel/cleaner"
	"github.com/use-agent/peel/models"
)

// Route inspects contentType and, when it names a document kind the HTML
// pipeline can't handle, parses body directly into a PeelResult. The second
// return value is false when contentType is HTML (or unrecognised plain
// text the caller should route through the cleaner instead).
func Route(sourceURL, contentType string, body []byte) (*models.PeelResult, bool, error) {
	switch {
	case contentType == "application/pdf" || strings.HasSuffix(strings.ToLower(sourceURL), ".pdf"):
		return routePDF(sourceURL, body)

	case contentType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		strings.HasSuffix(strings.ToLower(sourceURL), ".docx"):
		return routeDOCX(sourceURL, body)

	case contentType == "application/json":
		return routeJSON(sourceURL, body)

	case isFeedType(contentType):
		return routeFeed(sourceURL, body)

	case contentType == "text/plain" || contentType == "text/markdown" ||
		contentType == "text/css" || contentType == "application/javascript" ||
		contentType == "text/javascript":
		return routePlainText(sourceURL, body)

	default:
		return nil, false, nil
	}
}

func isFeedType(contentType string) bool {
	switch contentType {
	case "text/xml", "application/rss+xml", "application/atom+xml", "application/xml":
		return true
	default:
		return false
	}
}

// finish fills in the fields every routed result shares: tokens, fingerprint,
// metadata source URL, and success.
func finish(sourceURL, content string, doc *models.DocumentMeta, links []models.Link, quality float64) *models.PeelResult {
	sum := sha256.Sum256([]byte(content))
	tokens := cleaner.EstimateTokens(content)
	return &models.PeelResult{
		Success: true,
		Content: content,
		Metadata: models.Metadata{
			SourceURL: sourceURL,
		},
		Links: models.LinksResult{
			External: links,
		},
		Document:    doc,
		Fingerprint: hex.EncodeToString(sum[:])[:16],
		Quality:     quality,
		Tokens: models.TokenInfo{
			OriginalEstimate: tokens,
			CleanedEstimate:  tokens,
		},
	}
}
