package cleaner

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/use-agent/peel/models"
	"github.com/use-agent/peel/simhash"
)

// Cleaner orchestrates the readability/pruning + markdown pipeline:
//
//	Stage 1 (readability|pruning|raw|auto): extract main content
//	Stage 2 (markdown|html|text|citations): convert clean HTML to the
//	requested output format
//
// The converter is created once and reused across all requests (goroutine-safe).
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// CleanOptions carries optional content-filtering and selection parameters
// for the pipeline.
type CleanOptions struct {
	IncludeTags    []string
	ExcludeTags    []string
	Selector       string
	ChangeTracking bool
}

// Clean runs the full pipeline and returns a partial PeelResult (Content,
// Metadata, Links, Images, JSONLD, Tokens, Fingerprint filled; Timing is
// left to the orchestrator).
func (c *Cleaner) Clean(rawHTML, sourceURL, format, mode string, opts ...CleanOptions) (*models.PeelResult, error) {
	var opt CleanOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	originalTokens := EstimateTokens(rawHTML)

	jsonLD := ExtractJSONLD(rawHTML)
	links := ExtractLinks(rawHTML, sourceURL)
	images := ExtractImages(rawHTML, sourceURL)
	ogMeta := ExtractOGMetadata(rawHTML)

	// §4.4: a supported JSON-LD @type renders to a fixed markdown template
	// and is preferred over the DOM pipeline outright. This only covers the
	// markdown/citations/text formats the template is meaningful for; a
	// caller asking for raw "html" still goes through the DOM pipeline
	// below, since there is no HTML template to hand back.
	var article readability.Article
	var content string
	var err error
	usedJSONLD := false

	if format != "html" {
		if jsonLDMarkdown, ok := RenderJSONLD(rawHTML); ok {
			usedJSONLD = true
			article = readability.Article{
				Title:       firstMarkdownHeading(jsonLDMarkdown),
				Excerpt:     excerptFrom(jsonLDMarkdown),
				TextContent: stripMarkdownFormatting(jsonLDMarkdown),
			}
			switch format {
			case "citations":
				content = ConvertToCitations(jsonLDMarkdown)
			case "text":
				content = article.TextContent
			default: // "markdown"
				content = jsonLDMarkdown
			}
		}
	}

	workingHTML := rawHTML
	if !usedJSONLD {
		if opt.Selector != "" {
			if selected, err := ApplyCSSSelector(workingHTML, opt.Selector); err == nil {
				workingHTML = selected
			}
		}
		if len(opt.IncludeTags) > 0 || len(opt.ExcludeTags) > 0 {
			workingHTML = FilterContent(workingHTML, opt.IncludeTags, opt.ExcludeTags)
		}

		article = extractByMode(workingHTML, sourceURL, mode)

		content, err = renderFormat(c.mdConverter, article, sourceURL, format)
		if err != nil {
			return nil, models.NewPeelError(models.ErrCodeParse, "format conversion failed", err)
		}
	}

	if strings.TrimSpace(content) == "" && strings.TrimSpace(rawHTML) != "" {
		content = fallbackContent(article, ogMeta, rawHTML)
		slog.Warn("cleaner: extraction produced no content, used fallback", "url", sourceURL)
	}

	cleanedTokens := EstimateTokens(content)
	savingsPercent := 0.0
	if originalTokens > 0 {
		savingsPercent = math.Round(float64(originalTokens-cleanedTokens)/float64(originalTokens)*10000) / 100
	}

	sum := sha256.Sum256([]byte(content))
	fingerprint := hex.EncodeToString(sum[:])[:16]

	quality := ScoreQuality(content, rawHTML)

	var changeFP uint64
	if opt.ChangeTracking {
		changeFP = simhash.FingerprintDOM(rawHTML)
	}

	return &models.PeelResult{
		Success: true,
		Content: content,
		Metadata: models.Metadata{
			Title:       article.Title,
			Description: article.Excerpt,
			SiteName:    article.SiteName,
			Author:      article.Byline,
			Language:    article.Language,
			SourceURL:   sourceURL,
			OG:          ogMeta,
			Extra:       ExtractExtraMetadata(rawHTML),
		},
		Links:             links,
		Images:            images,
		JSONLD:            jsonLD,
		Fingerprint:       fingerprint,
		ChangeFingerprint: changeFP,
		Quality:           quality,
		Tokens: models.TokenInfo{
			OriginalEstimate: originalTokens,
			CleanedEstimate:  cleanedTokens,
			SavingsPercent:   savingsPercent,
		},
	}, nil
}

// extractByMode runs the requested content-extraction strategy.
func extractByMode(rawHTML, sourceURL, mode string) readability.Article {
	switch mode {
	case "raw":
		return fallbackArticle(rawHTML)

	case "pruning":
		prunedHTML, err := PruneContent(rawHTML, sourceURL)
		if err != nil {
			slog.Warn("pruning: extraction failed, falling back to raw HTML", "url", sourceURL, "error", err)
			prunedHTML = fallbackArticle(rawHTML).Content
		}
		metaArticle, _ := ExtractContent(rawHTML, sourceURL)
		return readability.Article{
			Title:       metaArticle.Title,
			Byline:      metaArticle.Byline,
			Excerpt:     metaArticle.Excerpt,
			SiteName:    metaArticle.SiteName,
			Language:    metaArticle.Language,
			Content:     prunedHTML,
			TextContent: stripTags(prunedHTML),
		}

	case "auto":
		return autoExtract(rawHTML, sourceURL)

	default: // "readability"
		article, _ := ExtractContent(rawHTML, sourceURL)
		return article
	}
}

// renderFormat converts the extracted article into the requested output
// shape: markdown (default), html, text, or citations (markdown with
// inline links rewritten to numbered references).
func renderFormat(conv *converter.Converter, article readability.Article, sourceURL, format string) (string, error) {
	switch format {
	case "html":
		return article.Content, nil
	case "text":
		return article.TextContent, nil
	case "citations":
		md, err := ToMarkdown(conv, article.Content, sourceURL)
		if err != nil {
			return "", err
		}
		return ConvertToCitations(md), nil
	default: // "markdown"
		return ToMarkdown(conv, article.Content, sourceURL)
	}
}

// autoExtract runs both Readability and Pruning concurrently, then picks the
// result that extracted more meaningful text content.
func autoExtract(rawHTML, sourceURL string) readability.Article {
	var (
		readabilityArticle readability.Article
		prunedHTML         string
		pruneErr           error
	)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		readabilityArticle, _ = ExtractContent(rawHTML, sourceURL)
	}()

	go func() {
		defer wg.Done()
		prunedHTML, pruneErr = PruneContent(rawHTML, sourceURL)
	}()

	wg.Wait()

	if pruneErr != nil {
		slog.Warn("auto: pruning failed, using readability result", "url", sourceURL, "error", pruneErr)
		return readabilityArticle
	}

	prunedText := stripTags(prunedHTML)
	readabilityText := strings.TrimSpace(readabilityArticle.TextContent)

	useReadability := len(readabilityText) >= len(prunedText)

	// Quality check: if the longer result is >10x the shorter, it may
	// contain too much noise — prefer the shorter one if it still has a
	// reasonable amount of content.
	if useReadability && len(prunedText) > minContentLength {
		if len(readabilityText) > 10*len(prunedText) {
			useReadability = false
		}
	} else if !useReadability && len(readabilityText) > minContentLength {
		if len(prunedText) > 10*len(readabilityText) {
			useReadability = true
		}
	}

	if useReadability {
		return readabilityArticle
	}

	return readability.Article{
		Title:       readabilityArticle.Title,
		Byline:      readabilityArticle.Byline,
		Excerpt:     readabilityArticle.Excerpt,
		SiteName:    readabilityArticle.SiteName,
		Language:    readabilityArticle.Language,
		Content:     prunedHTML,
		TextContent: prunedText,
	}
}

// fallbackContent is the zero-token safety net: when extraction and
// rendering collapse a non-empty fetch down to nothing, a 200 response
// with an empty body is worse than a short but non-empty one. It prefers
// the article's own excerpt, then the page's Open Graph description,
// and finally the first 500 characters of visible text.
func fallbackContent(article readability.Article, ogMeta models.OGMetadata, rawHTML string) string {
	if excerpt := strings.TrimSpace(article.Excerpt); excerpt != "" {
		return excerpt
	}
	if desc := strings.TrimSpace(ogMeta.Description); desc != "" {
		return desc
	}
	visible := stripTags(rawHTML)
	if len(visible) > 500 {
		visible = visible[:500]
	}
	return visible
}

// stripTags extracts visible text from an HTML fragment via goquery.
func stripTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.TrimSpace(doc.Text())
}
