package contentrouter

import (
	"bytes"
	"strings"

	"github.com/lu4p/cat"

	"github.com/use-agent/peel/models"
)

// routeDOCX converts a DOCX body to plain text via lu4p/cat and returns it
// trimmed. cat only returns text, so headings, lists and tables are not
// turned into markdown structure.
func routeDOCX(sourceURL string, body []byte) (*models.PeelResult, bool, error) {
	text, err := cat.Docx(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, true, models.NewPeelError(models.ErrCodeParse, "failed to parse DOCX", err)
	}

	content := strings.TrimSpace(text)
	result := finish(sourceURL, content, &models.DocumentMeta{
		Kind:      "docx",
		WordCount: len(strings.Fields(content)),
	}, nil, 0.85)
	return result, true, nil
}
