package distill

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
)

// contextWindows holds rough context sizes for common model identifiers.
// Best-effort and not exhaustive — unknown models fall back to a
// conservative default.
var contextWindows = map[string]int{
	"gpt-4o":            128_000,
	"gpt-4o-mini":       128_000,
	"gpt-4-turbo":       128_000,
	"gpt-3.5-turbo":     16_384,
	"claude-3-5-sonnet": 200_000,
	"claude-3-opus":     200_000,
	"claude-3-haiku":    200_000,
	"llama-3":           8_192,
	"llama-3.1":         128_000,
}

const defaultContextTokens = 8192

// ContextBudget returns the content-token budget for a named model: its
// context window minus a reservation for the system/user prompt framing
// and the model's own output. Used when a request names a model but no
// explicit MaxTokens.
func ContextBudget(modelName string) int {
	max := modelContextTokens(modelName)
	headroom := int(math.Ceil(float64(max) * 0.15)) // prompt framing + output reservation
	budget := max - headroom
	if budget < 0 {
		return 0
	}
	return budget
}

func modelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if v, ok := contextWindows[name]; ok {
		return v
	}
	return defaultContextTokens
}

const tableRowsKept = 5

// Fit reduces content to fit within maxTokens, estimated at ceil(chars/4)
// (the same heuristic cleaner.EstimateTokens uses). It first runs a
// non-truncating smart-distiller pass — stripping boilerplate lines,
// compressing tables down to their header and first few rows, and
// dropping low-density paragraphs — then, if that alone didn't bring the
// content under budget, walks the remaining lines top-down, always
// keeping the first heading, and accumulates lines in order until adding
// one would exceed the budget. Returns the (possibly unchanged) content
// and whether it was modified.
func Fit(content string, maxTokens int) (string, bool) {
	if maxTokens <= 0 {
		return content, false
	}
	maxChars := maxTokens * 4
	if len(content) <= maxChars {
		return content, false
	}

	lines := strings.Split(content, "\n")
	lines = stripBoilerplate(lines)
	lines = compressTables(lines, tableRowsKept)
	lines = dropLowDensityParagraphs(lines)

	distilled := strings.Join(lines, "\n")
	if len(distilled) <= maxChars {
		return distilled, true
	}

	return hardTruncate(lines, maxChars, maxTokens), true
}

// hardTruncate accumulates lines top-down until the next line would exceed
// maxChars, always keeping the first heading regardless of where the
// top-down walk would otherwise have cut it off.
func hardTruncate(lines []string, maxChars, maxTokens int) string {
	headingIdx := -1
	for i, l := range lines {
		if isHeadingLine(strings.TrimSpace(l)) {
			headingIdx = i
			break
		}
	}

	var kept []string
	usedChars := 0
	addLine := func(l string) bool {
		cost := len(l) + 1 // + newline
		if usedChars+cost > maxChars {
			return false
		}
		kept = append(kept, l)
		usedChars += cost
		return true
	}

	if headingIdx >= 0 {
		addLine(lines[headingIdx])
	}
	for i, l := range lines {
		if i == headingIdx {
			continue
		}
		if !addLine(l) {
			break
		}
	}

	notice := fmt.Sprintf("[Content truncated to ~%d tokens]", maxTokens)
	return strings.TrimRight(strings.Join(kept, "\n"), " \n\t") + "\n\n" + notice
}

var boilerplateLines = map[string]bool{
	"home": true, "about": true, "about us": true, "contact": true, "contact us": true,
	"privacy policy": true, "terms of service": true, "terms & conditions": true,
	"terms and conditions": true, "cookie policy": true, "subscribe": true,
	"sign in": true, "sign up": true, "log in": true, "login": true, "follow us": true,
	"all rights reserved": true, "skip to content": true, "back to top": true,
	"share this": true, "related articles": true, "advertisement": true,
}

// stripBoilerplate drops known nav/footer phrases and any short line that
// repeats often enough to look like a recurring nav element (a sidebar
// link list, a repeated "Share" widget) rather than article content.
func stripBoilerplate(lines []string) []string {
	freq := make(map[string]int, len(lines))
	for _, l := range lines {
		t := strings.ToLower(strings.TrimSpace(l))
		if t != "" && len(t) < 60 {
			freq[t]++
		}
	}

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		t := strings.ToLower(strings.TrimSpace(l))
		if boilerplateLines[t] {
			continue
		}
		if t != "" && len(t) < 60 && freq[t] > 2 {
			continue
		}
		out = append(out, l)
	}
	return out
}

func isTableLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "|")
}

// compressTables keeps a markdown table's header and separator row plus
// its first keepRows data rows, dropping the remainder.
func compressTables(lines []string, keepRows int) []string {
	out := make([]string, 0, len(lines))
	i := 0
	for i < len(lines) {
		if !isTableLine(strings.TrimSpace(lines[i])) {
			out = append(out, lines[i])
			i++
			continue
		}
		start := i
		for i < len(lines) && isTableLine(strings.TrimSpace(lines[i])) {
			i++
		}
		block := lines[start:i]
		if max := keepRows + 2; len(block) > max { // header + separator + keepRows
			block = block[:max]
		}
		out = append(out, block...)
	}
	return out
}

var headingRe = regexp.MustCompile(`^#{1,6}\s`)

func isHeadingLine(trimmed string) bool {
	return headingRe.MatchString(trimmed)
}

// dropLowDensityParagraphs removes paragraphs (blank-line-delimited runs
// of non-heading, non-table lines) whose ratio of letters/digits to total
// characters is too low to carry much signal — separators, ad copy,
// symbol-heavy decoration.
func dropLowDensityParagraphs(lines []string) []string {
	out := make([]string, 0, len(lines))
	var para []string

	flush := func() {
		if len(para) == 0 {
			return
		}
		first := strings.TrimSpace(para[0])
		if !isHeadingLine(first) && !isTableLine(first) && isLowDensity(strings.Join(para, "\n")) {
			para = nil
			return
		}
		out = append(out, para...)
		para = nil
	}

	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			flush()
			out = append(out, l)
			continue
		}
		para = append(para, l)
	}
	flush()
	return out
}

func isLowDensity(text string) bool {
	runes := []rune(text)
	if len(runes) < 20 {
		return false
	}
	alnum := 0
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	return float64(alnum)/float64(len(runes)) < 0.35
}
