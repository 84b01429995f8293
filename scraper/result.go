package scraper

// ScrapeResult holds the output of a single scrape operation.
type ScrapeResult struct {
	// RawHTML is the raw page HTML.
	RawHTML string

	// Title is the page title.
	Title string

	// StatusCode is the HTTP status code of the navigation response.
	StatusCode int

	// FinalURL is the URL after any redirects.
	FinalURL string

	// EngineUsed records which engine produced the result (e.g. "http", "rod", "rod-stealth").
	EngineUsed string

	// FetchMethod records how the page was fetched: "http" or "browser" on
	// the direct paths, or the serving engine's name ("http", "rod",
	// "rod-stealth") when the dispatcher served it; empty on the CDP path.
	// Used by the extract handler for metadata.
	FetchMethod string

	// ContentType is the response's Content-Type header (HTTP rung only;
	// browser rungs always render HTML). Drives the content-type dispatcher.
	ContentType string

	// RawBytes holds the undecoded response body when ContentType indicates
	// a non-HTML document (PDF, DOCX, JSON, feed). Empty for HTML/browser
	// results, which use RawHTML instead.
	RawBytes []byte

	// Screenshot is a PNG capture, populated only when the request asked
	// for one and a browser rung served it.
	Screenshot []byte
}
