package models

import "encoding/json"

// FetchOutcome is the raw product of the escalation fetcher, before
// readability/pruning/markdown conversion. It is what each rung of the
// ladder (simple, browser, stealth) produces.
type FetchOutcome struct {
	RawHTML     string `json:"-"`
	StatusCode  int    `json:"status_code"`
	FinalURL    string `json:"final_url"`
	EngineUsed  string `json:"engine_used"` // engine name ("http", "rod", "rod-stealth"), not the rung names simple/browser/stealth
	ContentType string `json:"-"`
}

// PeelResult is the response shape returned by /v1/fetch and embedded into
// every higher-level endpoint (extract, batch items, crawl pages).
type PeelResult struct {
	Success bool `json:"success"`

	// Content is the cleaned output in the requested format.
	Content string `json:"content"`

	// Metadata contains extracted page-level information.
	Metadata Metadata `json:"metadata"`

	// Links and Images are harvested from the fetched DOM. Only http(s)
	// URLs are ever included.
	Links  LinksResult `json:"links"`
	Images []Image     `json:"images,omitempty"`

	// JSONLD holds first-class structured data extracted from
	// <script type="application/ld+json"> blocks, keyed by schema.org @type.
	JSONLD map[string]json.RawMessage `json:"json_ld,omitempty"`

	// QuickAnswer and RelevantChunks are populated when PeelRequest.Query
	// is set. QuickAnswerConfidence is the bm25 package's confidence that
	// QuickAnswer actually answers the question, in [0,1].
	QuickAnswer           string        `json:"quick_answer,omitempty"`
	QuickAnswerConfidence float64       `json:"quick_answer_confidence,omitempty"`
	RelevantChunks        []ScoredChunk `json:"relevant_chunks,omitempty"`

	// Fingerprint is sha256(content)[:16] hex, the canonical idempotence
	// signal. ChangeFingerprint is the simhash-based structural signal,
	// populated only when PeelRequest.ChangeTracking is set.
	Fingerprint       string `json:"fingerprint"`
	ChangeFingerprint uint64 `json:"change_fingerprint,omitempty"`

	// Quality is a [0,1] estimate combining compression ratio, text
	// density, structural signal (headings/paragraphs) and length (§4.4).
	Quality float64 `json:"quality"`

	// Screenshot is a base64-encoded PNG, populated when PeelRequest.Screenshot
	// or ScreenshotFullPage was set and a browser rung served the request.
	Screenshot string `json:"screenshot,omitempty"`

	Tokens      TokenInfo `json:"tokens"`
	Timing      TimingInfo `json:"timing"`
	CacheStatus string     `json:"cache_status"` // "hit", "miss", "bypass"
	StatusCode  int        `json:"status_code"`
	FinalURL    string     `json:"final_url"`
	EngineUsed  string     `json:"engine_used"`

	Extract *ExtractResult `json:"extract,omitempty"`

	// Transcript is populated instead of the normal readability pipeline
	// when the source URL is recognised as a YouTube video (§4.6).
	Transcript *TranscriptResult `json:"transcript,omitempty"`

	// Document carries the structured metadata produced by the content-type
	// dispatcher's PDF/DOCX branches (§4.5). Nil for HTML/plain-text pages.
	Document *DocumentMeta `json:"document,omitempty"`

	Error *ErrorDetail `json:"error,omitempty"`
}

// DocumentMeta holds parser-reported metadata for non-HTML documents
// (PDF page count, DOCX word count) routed through the content-type
// dispatcher instead of the readability pipeline.
type DocumentMeta struct {
	Kind      string `json:"kind"` // "pdf", "docx", "json", "feed", "text"
	PageCount int    `json:"page_count,omitempty"`
	WordCount int    `json:"word_count,omitempty"`
}

// TranscriptSegment is a single timed caption line.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	Dur   float64 `json:"dur"`
	Text  string  `json:"text"`
}

// Chapter is a parsed `HH:MM:SS title` description line with a derived key
// point sentence.
type Chapter struct {
	Start     float64 `json:"start"`
	Title     string  `json:"title"`
	KeyPoint  string  `json:"key_point,omitempty"`
}

// TranscriptResult is the YouTube transcript extractor's output (§4.6).
type TranscriptResult struct {
	VideoID  string              `json:"video_id"`
	Language string              `json:"language,omitempty"`
	Method   string              `json:"method"` // "caption_track" or "network_intercept"
	Segments []TranscriptSegment `json:"segments"`
	FullText string              `json:"full_text"`
	Chapters []Chapter           `json:"chapters,omitempty"`
	Summary  string              `json:"summary,omitempty"`
}

// Metadata holds page-level information extracted during the fetch.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Author      string `json:"author,omitempty"`
	Language    string `json:"language,omitempty"`
	SourceURL   string `json:"source_url"`
	FetchMethod string `json:"fetch_method"` // "http", "browser", "rod" or "rod-stealth"; the rung names simple/stealth are not used

	OG OGMetadata `json:"og,omitempty"`

	// Extra carries any additional key-value metadata (e.g. article:*
	// tags, Twitter card fields) not promoted to a named field.
	Extra map[string]string `json:"extra,omitempty"`
}

// OGMetadata holds Open Graph tags.
type OGMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Type        string `json:"type,omitempty"`
}

// Link is a single extracted hyperlink.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

// LinksResult splits extracted links by whether they stay on the source host.
type LinksResult struct {
	Internal []Link `json:"internal,omitempty"`
	External []Link `json:"external,omitempty"`
}

// Image is a single extracted <img>.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// ScoredChunk is one BM25-ranked content chunk returned for a query.
type ScoredChunk struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// TokenInfo provides before/after token estimates to show cleaning efficacy.
type TokenInfo struct {
	OriginalEstimate int     `json:"original_estimate"`
	CleanedEstimate  int     `json:"cleaned_estimate"`
	SavingsPercent   float64 `json:"savings_percent"`
	Truncated        bool    `json:"truncated,omitempty"`
}

// TimingInfo breaks down the time spent in each pipeline stage.
type TimingInfo struct {
	TotalMs      int64 `json:"total_ms"`
	NavigationMs int64 `json:"navigation_ms"`
	CleaningMs   int64 `json:"cleaning_ms"`
	ExtractionMs int64 `json:"extraction_ms,omitempty"`
}

// ExtractResult carries the LLM schema-guided extraction outcome.
type ExtractResult struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Usage *LLMUsage       `json:"usage,omitempty"`
}

// LLMUsage reports token consumption from the LLM call.
type LLMUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// HealthResponse is the response for GET /v1/health. The route is only
// registered under /v1; there is no unversioned /health route.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
	BrowserPID  int `json:"browser_pid"`
}
