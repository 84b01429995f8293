package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/peel/models"
)

const watchPageUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// BrowserCaptionFetch is Path B: launch a browser, navigate to the watch
// page, intercept the player's `**/api/timedtext**` request, and return the
// first response body with non-trivial content. Injected from the scraper
// package (which owns the rod browser) to avoid an import cycle.
type BrowserCaptionFetch func(ctx context.Context, watchURL string) ([]byte, error)

// Extractor extracts transcripts for recognised YouTube video IDs.
type Extractor struct {
	httpClient      *http.Client
	browserFallback BrowserCaptionFetch
}

// NewExtractor builds an Extractor. browserFallback may be nil, in which
// case only Path A (simple fetch) is attempted.
func NewExtractor(browserFallback BrowserCaptionFetch) *Extractor {
	return &Extractor{
		httpClient:      &http.Client{Timeout: 20 * time.Second},
		browserFallback: browserFallback,
	}
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated, empty for manual
	Name         struct {
		SimpleText string `json:"simpleText"`
	} `json:"name"`
}

type playerResponse struct {
	Captions struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	VideoDetails struct {
		ShortDescription string `json:"shortDescription"`
	} `json:"videoDetails"`
}

// Extract runs Path A, falling back to Path B when the cheap path produces
// no usable caption track or empty segments.
func (e *Extractor) Extract(ctx context.Context, videoID, language string) (*models.TranscriptResult, error) {
	watchURL := WatchURL(videoID)

	page, err := e.fetch(ctx, watchURL)
	if err == nil {
		if pr, ok := findPlayerResponse(page); ok {
			tracks := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
			if track, ok := selectTrack(tracks, language); ok {
				if capBody, err := e.fetch(ctx, track.BaseURL); err == nil {
					segments := parseCaptionDoc(capBody)
					if len(segments) > 0 {
						return buildResult(videoID, track.LanguageCode, "caption_track", segments, pr.VideoDetails.ShortDescription), nil
					}
				}
			}
		}
	}

	if e.browserFallback != nil {
		capBody, ferr := e.browserFallback(ctx, watchURL)
		if ferr != nil {
			return nil, models.NewPeelError(models.ErrCodeNavigation, "youtube transcript: browser fallback failed", ferr)
		}
		segments := parseCaptionDoc(capBody)
		if len(segments) == 0 {
			return nil, models.NewPeelError(models.ErrCodeParse, "youtube transcript: no caption segments found", nil)
		}
		return buildResult(videoID, language, "network_intercept", segments, ""), nil
	}

	return nil, models.NewPeelError(models.ErrCodeParse, "youtube transcript: no caption track available", nil)
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", watchPageUA)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("youtube: HTTP %d for %s", resp.StatusCode, rawURL)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
}

// findPlayerResponse locates `ytInitialPlayerResponse = {...};` in the watch
// page and brace-walks from the opening `{` to its matching close, tolerant
// of the JSON being followed by arbitrary trailing script rather than
// relying on a single greedy regex (which breaks on nested braces).
func findPlayerResponse(page []byte) (*playerResponse, bool) {
	marker := []byte("ytInitialPlayerResponse")
	idx := indexOf(page, marker)
	if idx < 0 {
		return nil, false
	}
	start := indexOfByteFrom(page, '{', idx)
	if start < 0 {
		return nil, false
	}
	end := matchBrace(page, start)
	if end < 0 {
		return nil, false
	}

	var pr playerResponse
	if err := json.Unmarshal(page[start:end+1], &pr); err != nil {
		return nil, false
	}
	return &pr, true
}

func indexOf(haystack, needle []byte) int {
	return strings.Index(string(haystack), string(needle))
}

func indexOfByteFrom(s []byte, b byte, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// matchBrace walks from s[start] == '{' to the index of its matching '}',
// respecting string literals so braces inside quoted JSON values don't
// throw off the depth count.
func matchBrace(s []byte, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// selectTrack picks the best caption track: manual-in-requested-language >
// auto-generated-in-requested-language > any manual track > the first track.
func selectTrack(tracks []captionTrack, language string) (captionTrack, bool) {
	if len(tracks) == 0 {
		return captionTrack{}, false
	}

	pick := func(pred func(captionTrack) bool) (captionTrack, bool) {
		for _, t := range tracks {
			if pred(t) {
				return t, true
			}
		}
		return captionTrack{}, false
	}

	isManual := func(t captionTrack) bool { return t.Kind != "asr" }
	matchesLang := func(t captionTrack) bool {
		return language == "" || strings.EqualFold(t.LanguageCode, language)
	}

	if t, ok := pick(func(t captionTrack) bool { return isManual(t) && matchesLang(t) }); ok {
		return t, true
	}
	if t, ok := pick(func(t captionTrack) bool { return !isManual(t) && matchesLang(t) }); ok {
		return t, true
	}
	if t, ok := pick(isManual); ok {
		return t, true
	}
	return tracks[0], true
}

// --- caption document parsing (legacy XML and JSON3) ---

type xmlTranscript struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
}

type json3Doc struct {
	Events []struct {
		TStartMs int64 `json:"tStartMs"`
		DDurationMs int64 `json:"dDurationMs"`
		Segs     []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func parseCaptionDoc(body []byte) []models.TranscriptSegment {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var doc json3Doc
		if err := json.Unmarshal(body, &doc); err == nil {
			var segments []models.TranscriptSegment
			for _, ev := range doc.Events {
				var text strings.Builder
				for _, seg := range ev.Segs {
					text.WriteString(seg.UTF8)
				}
				line := cleanCaptionText(text.String())
				if line == "" {
					continue
				}
				segments = append(segments, models.TranscriptSegment{
					Start: float64(ev.TStartMs) / 1000,
					Dur:   float64(ev.DDurationMs) / 1000,
					Text:  line,
				})
			}
			return segments
		}
	}

	var doc xmlTranscript
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil
	}
	var segments []models.TranscriptSegment
	for _, t := range doc.Texts {
		line := cleanCaptionText(t.Text)
		if line == "" {
			continue
		}
		start, _ := strconv.ParseFloat(t.Start, 64)
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		segments = append(segments, models.TranscriptSegment{Start: start, Dur: dur, Text: line})
	}
	return segments
}

var inlineTagRe = regexp.MustCompile(`<[^>]+>`)

func cleanCaptionText(s string) string {
	s = inlineTagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

func buildResult(videoID, language, method string, segments []models.TranscriptSegment, description string) *models.TranscriptResult {
	var full strings.Builder
	for i, seg := range segments {
		if i > 0 {
			full.WriteByte(' ')
		}
		full.WriteString(seg.Text)
	}
	fullText := full.String()

	chapters := parseChapters(description, segments)
	summary := firstWords(fullText, 200)

	return &models.TranscriptResult{
		VideoID:  videoID,
		Language: language,
		Method:   method,
		Segments: segments,
		FullText: fullText,
		Chapters: chapters,
		Summary:  summary,
	}
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return s
	}
	return strings.Join(fields[:n], " ")
}
