package cleaner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractJSONLD collects every <script type="application/ld+json"> block on
// the page, keyed by the block's "@type" (or a positional fallback when the
// type is missing or the block is a bare array). Malformed blocks are
// skipped rather than failing the whole extraction.
func ExtractJSONLD(rawHTML string) map[string]json.RawMessage {
	result := map[string]json.RawMessage{}

	for idx, raw := range collectJSONLDBlocks(rawHTML) {
		key := jsonLDKey(raw, idx)
		result[key] = json.RawMessage(raw)
	}

	return result
}

// collectJSONLDBlocks pulls the raw text of every valid
// application/ld+json script tag on the page, in document order.
func collectJSONLDBlocks(rawHTML string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" || !json.Valid([]byte(raw)) {
			return
		}
		blocks = append(blocks, raw)
	})
	return blocks
}

// jsonLDKey pulls "@type" out of a JSON-LD block for a human-readable map
// key, falling back to a positional name ("block-0", "block-1", ...) for
// arrays or objects that don't carry an "@type".
func jsonLDKey(raw string, idx int) string {
	var probe struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err == nil && probe.Type != "" {
		return probe.Type
	}
	return "block-" + strconv.Itoa(idx)
}

// jsonLDNode is a loosely-typed JSON-LD object: schema.org vocabularies mix
// strings, nested objects and arrays-of-either for the same property across
// pages, so a generic map is cheaper to work with here than a struct per
// @type.
type jsonLDNode map[string]any

// supportedJSONLDTypes is the §4.4 allowlist of @type values that get a
// markdown template instead of falling through to the DOM pipeline.
var supportedJSONLDTypes = map[string]func(jsonLDNode) string{
	"Recipe":          renderRecipe,
	"Product":         renderProduct,
	"Article":         renderArticleLD,
	"NewsArticle":     renderArticleLD,
	"BlogPosting":     renderArticleLD,
	"TechArticle":     renderArticleLD,
	"FAQPage":         renderFAQPage,
	"HowTo":           renderHowTo,
	"Event":           renderEvent,
	"LocalBusiness":   renderLocalBusiness,
	"Review":          renderReview,
}

// RenderJSONLD looks for a JSON-LD block whose @type is in
// supportedJSONLDTypes and renders it to markdown via a fixed per-type
// template. It flattens @graph and bare-array forms before matching. The
// second return value is false when no supported, non-empty template could
// be produced, telling the caller to fall back to the DOM pipeline.
func RenderJSONLD(rawHTML string) (string, bool) {
	for _, raw := range collectJSONLDBlocks(rawHTML) {
		for _, node := range flattenJSONLD(raw) {
			for _, typ := range jsonLDTypes(node) {
				render, ok := supportedJSONLDTypes[typ]
				if !ok {
					continue
				}
				if md := strings.TrimSpace(render(node)); md != "" {
					return md, true
				}
			}
		}
	}
	return "", false
}

// flattenJSONLD normalises a JSON-LD block into a flat list of nodes,
// unwrapping bare top-level arrays and "@graph" containers (both common
// ways pages batch multiple schema.org entities into one script tag).
func flattenJSONLD(raw string) []jsonLDNode {
	var any_ any
	if err := json.Unmarshal([]byte(raw), &any_); err != nil {
		return nil
	}

	var nodes []jsonLDNode
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case []any:
			for _, item := range val {
				walk(item)
			}
		case map[string]any:
			if graph, ok := val["@graph"]; ok {
				walk(graph)
				return
			}
			nodes = append(nodes, jsonLDNode(val))
		}
	}
	walk(any_)
	return nodes
}

// jsonLDTypes returns a node's @type as a list, since schema.org allows a
// single string or an array of strings there.
func jsonLDTypes(node jsonLDNode) []string {
	switch v := node["@type"].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func ldString(node jsonLDNode, keys ...string) string {
	for _, k := range keys {
		switch v := node[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]any:
			if name, ok := v["name"].(string); ok && strings.TrimSpace(name) != "" {
				return strings.TrimSpace(name)
			}
		}
	}
	return ""
}

// ldStringList coerces a JSON-LD property that may be a single string, a
// flat array of strings, or an array of {"@type":"HowToStep","text":...}
// objects (used by recipeInstructions and HowTo steps) into a plain list.
func ldStringList(v any) []string {
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			switch it := item.(type) {
			case string:
				if s := strings.TrimSpace(it); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if text, ok := it["text"].(string); ok && strings.TrimSpace(text) != "" {
					out = append(out, strings.TrimSpace(text))
				} else if name, ok := it["name"].(string); ok && strings.TrimSpace(name) != "" {
					out = append(out, strings.TrimSpace(name))
				}
			}
		}
		return out
	}
	return nil
}

var isoDurationRe = regexp.MustCompile(`^PT?(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// isoDuration renders an ISO-8601 duration like "PT1H20M" as "1 hr 20 min".
// Malformed or empty input returns "".
func isoDuration(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	days, hours, mins := m[1], m[2], m[3]

	var parts []string
	if days != "" && days != "0" {
		parts = append(parts, days+" d")
	}
	if hours != "" && hours != "0" {
		parts = append(parts, hours+" hr")
	}
	if mins != "" && mins != "0" {
		parts = append(parts, mins+" min")
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ")
}

func renderRecipe(node jsonLDNode) string {
	name := ldString(node, "name")
	if name == "" {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)

	if desc := ldString(node, "description"); desc != "" {
		fmt.Fprintf(&b, "%s\n\n", desc)
	}

	var timing []string
	if prep := isoDuration(ldString(node, "prepTime")); prep != "" {
		timing = append(timing, "**Prep time:** "+prep)
	}
	if cook := isoDuration(ldString(node, "cookTime")); cook != "" {
		timing = append(timing, "**Cook time:** "+cook)
	}
	if total := isoDuration(ldString(node, "totalTime")); total != "" {
		timing = append(timing, "**Total time:** "+total)
	}
	if len(timing) > 0 {
		b.WriteString(strings.Join(timing, " · "))
		b.WriteString("\n\n")
	}

	if ingredients := ldStringList(node["recipeIngredient"]); len(ingredients) > 0 {
		b.WriteString("## Ingredients\n\n")
		for _, ing := range ingredients {
			fmt.Fprintf(&b, "- %s\n", ing)
		}
		b.WriteString("\n")
	}

	if steps := ldStringList(node["recipeInstructions"]); len(steps) > 0 {
		b.WriteString("## Instructions\n\n")
		for i, step := range steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		b.WriteString("\n")
	}

	if rating := renderRating(node["aggregateRating"]); rating != "" {
		b.WriteString(rating)
		b.WriteString("\n")
	}

	return b.String()
}

func renderProduct(node jsonLDNode) string {
	name := ldString(node, "name")
	if name == "" {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)

	if desc := ldString(node, "description"); desc != "" {
		fmt.Fprintf(&b, "%s\n\n", desc)
	}

	if brand := ldString(node, "brand"); brand != "" {
		fmt.Fprintf(&b, "**Brand:** %s\n\n", brand)
	}

	if offers, ok := node["offers"].(map[string]any); ok {
		offerNode := jsonLDNode(offers)
		var bits []string
		if price := ldString(offerNode, "price"); price != "" {
			currency := ldString(offerNode, "priceCurrency")
			if currency != "" {
				bits = append(bits, fmt.Sprintf("**Price:** %s %s", currency, price))
			} else {
				bits = append(bits, "**Price:** "+price)
			}
		}
		if avail := ldString(offerNode, "availability"); avail != "" {
			bits = append(bits, "**Availability:** "+lastPathSegment(avail))
		}
		if len(bits) > 0 {
			b.WriteString(strings.Join(bits, " · "))
			b.WriteString("\n\n")
		}
	}

	if rating := renderRating(node["aggregateRating"]); rating != "" {
		b.WriteString(rating)
		b.WriteString("\n")
	}

	return b.String()
}

func renderArticleLD(node jsonLDNode) string {
	title := ldString(node, "headline", "name")
	if title == "" {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	if author := ldString(node, "author"); author != "" {
		fmt.Fprintf(&b, "**By %s**", author)
		if date := ldString(node, "datePublished"); date != "" {
			fmt.Fprintf(&b, " · %s", date)
		}
		b.WriteString("\n\n")
	}

	if desc := ldString(node, "description"); desc != "" {
		fmt.Fprintf(&b, "%s\n\n", desc)
	}

	if body := ldString(node, "articleBody"); body != "" {
		fmt.Fprintf(&b, "%s\n\n", body)
	}

	return b.String()
}

func renderFAQPage(node jsonLDNode) string {
	entities, ok := node["mainEntity"].([]any)
	if !ok || len(entities) == 0 {
		return ""
	}

	var b strings.Builder
	if name := ldString(node, "name"); name != "" {
		fmt.Fprintf(&b, "# %s\n\n", name)
	} else {
		b.WriteString("# Frequently Asked Questions\n\n")
	}

	for _, e := range entities {
		q, ok := e.(map[string]any)
		if !ok {
			continue
		}
		qNode := jsonLDNode(q)
		question := ldString(qNode, "name")
		if question == "" {
			continue
		}
		answer := ""
		if ans, ok := q["acceptedAnswer"].(map[string]any); ok {
			answer = ldString(jsonLDNode(ans), "text")
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", question, answer)
	}

	return b.String()
}

func renderHowTo(node jsonLDNode) string {
	name := ldString(node, "name")
	if name == "" {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)

	if desc := ldString(node, "description"); desc != "" {
		fmt.Fprintf(&b, "%s\n\n", desc)
	}

	if total := isoDuration(ldString(node, "totalTime")); total != "" {
		fmt.Fprintf(&b, "**Total time:** %s\n\n", total)
	}

	if steps := ldStringList(node["step"]); len(steps) > 0 {
		b.WriteString("## Steps\n\n")
		for i, step := range steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func renderEvent(node jsonLDNode) string {
	name := ldString(node, "name")
	if name == "" {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)

	var when []string
	if start := ldString(node, "startDate"); start != "" {
		when = append(when, "**Starts:** "+start)
	}
	if end := ldString(node, "endDate"); end != "" {
		when = append(when, "**Ends:** "+end)
	}
	if len(when) > 0 {
		b.WriteString(strings.Join(when, " · "))
		b.WriteString("\n\n")
	}

	if loc := ldString(node, "location"); loc != "" {
		fmt.Fprintf(&b, "**Location:** %s\n\n", loc)
	}

	if desc := ldString(node, "description"); desc != "" {
		fmt.Fprintf(&b, "%s\n\n", desc)
	}

	return b.String()
}

func renderLocalBusiness(node jsonLDNode) string {
	name := ldString(node, "name")
	if name == "" {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)

	var bits []string
	if addr := ldString(node, "address"); addr != "" {
		bits = append(bits, "**Address:** "+addr)
	}
	if tel := ldString(node, "telephone"); tel != "" {
		bits = append(bits, "**Phone:** "+tel)
	}
	if pr := ldString(node, "priceRange"); pr != "" {
		bits = append(bits, "**Price range:** "+pr)
	}
	if len(bits) > 0 {
		b.WriteString(strings.Join(bits, " · "))
		b.WriteString("\n\n")
	}

	if rating := renderRating(node["aggregateRating"]); rating != "" {
		b.WriteString(rating)
		b.WriteString("\n")
	}

	return b.String()
}

func renderReview(node jsonLDNode) string {
	subject := ldString(node, "itemReviewed")
	if subject == "" {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Review: %s\n\n", subject)

	if author := ldString(node, "author"); author != "" {
		fmt.Fprintf(&b, "**By %s**\n\n", author)
	}

	if rating := renderRating(node["reviewRating"]); rating != "" {
		b.WriteString(rating)
		b.WriteString("\n\n")
	}

	if body := ldString(node, "reviewBody"); body != "" {
		fmt.Fprintf(&b, "%s\n\n", body)
	}

	return b.String()
}

// renderRating renders an AggregateRating/Rating node's value and count as
// a one-line footer: "**Rating:** 4.8 (1234 ratings)".
func renderRating(v any) string {
	rating, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	node := jsonLDNode(rating)
	value := ldString(node, "ratingValue")
	if value == "" {
		return ""
	}
	count := ldString(node, "ratingCount", "reviewCount")
	if count != "" {
		return fmt.Sprintf("**Rating:** %s (%s ratings)", value, count)
	}
	return fmt.Sprintf("**Rating:** %s", value)
}

// lastPathSegment trims a schema.org enumeration IRI like
// "https://schema.org/InStock" down to "InStock".
func lastPathSegment(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 && i+1 < len(s) {
		return s[i+1:]
	}
	return s
}

var mdHeadingLineRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// firstMarkdownHeading pulls the text of the first "# Heading" line out of
// a rendered JSON-LD markdown template, for use as the result's title.
func firstMarkdownHeading(md string) string {
	if m := mdHeadingLineRe.FindStringSubmatch(md); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// excerptFrom returns the first non-heading, non-empty paragraph of a
// rendered JSON-LD markdown template as a short excerpt.
func excerptFrom(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}

var mdFormattingRe = regexp.MustCompile(`[#*_\[\]()` + "`" + `>-]`)

// stripMarkdownFormatting removes common markdown punctuation, leaving
// plain text for format=text requests.
func stripMarkdownFormatting(md string) string {
	return strings.TrimSpace(mdFormattingRe.ReplaceAllString(md, ""))
}

// supportedJSONLDTypeNames is exposed for tests asserting the §4.4
// allowlist without duplicating it.
func supportedJSONLDTypeNames() []string {
	names := make([]string, 0, len(supportedJSONLDTypes))
	for k := range supportedJSONLDTypes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
