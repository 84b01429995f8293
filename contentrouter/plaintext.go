package contentrouter

import (
	"github.com/use-agent/peel/models"
)

// routePlainText passes text/plain, markdown, CSS, and JS bodies through
// unmodified, extracting any embedded URLs by regex since there's no DOM.
func routePlainText(sourceURL string, body []byte) (*models.PeelResult, bool, error) {
	content := string(body)
	result := finish(sourceURL, content, &models.DocumentMeta{Kind: "text"}, extractURLs(content), 0.8)
	return result, true, nil
}
