package contentrouter

import (
	"bytes"
	"encoding/json"

	"github.com/use-agent/peel/models"
)

// routeJSON pretty-prints a JSON body and harvests any embedded URLs as
// links. Quality is always 1.0 per spec since there's no extraction
// ambiguity for structured data.
func routeJSON(sourceURL string, body []byte) (*models.PeelResult, bool, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return nil, true, models.NewPeelError(models.ErrCodeParse, "invalid JSON body", err)
	}

	content := buf.String()
	result := finish(sourceURL, content, &models.DocumentMeta{Kind: "json"}, extractURLs(content), 1.0)
	return result, true, nil
}
