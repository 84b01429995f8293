package cleaner

import (
	"regexp"
	"strings"
)

var qualityHeadingRe = regexp.MustCompile(`(?m)^#{1,6}\s`)

// ScoreQuality combines four signals into a single [0,1] quality estimate
// for a markdown/text extraction result (§4.4):
//
//   - compression ratio between the cleaned content and the original HTML,
//     scored best in the 5-40% sweet spot (too close to 100% suggests
//     nothing was removed; too close to 0% suggests over-pruning),
//   - text density versus markdown formatting characters,
//   - structural signal: at least one heading and more than two paragraphs,
//   - absolute length falling in a sensible window (neither a stub nor an
//     unbounded dump).
func ScoreQuality(content, originalHTML string) float64 {
	if strings.TrimSpace(content) == "" {
		return 0
	}

	compression := scoreCompression(len(content), len(originalHTML))
	density := scoreDensity(content)
	structure := scoreStructure(content)
	length := scoreLength(len(content))

	return 0.30*compression + 0.30*density + 0.20*structure + 0.20*length
}

// scoreCompression peaks at 1.0 inside the 5-40% ratio band and falls off
// linearly outside it.
func scoreCompression(cleanedLen, originalLen int) float64 {
	if originalLen == 0 {
		return 0.5
	}
	ratio := float64(cleanedLen) / float64(originalLen)
	switch {
	case ratio >= 0.05 && ratio <= 0.40:
		return 1.0
	case ratio < 0.05:
		return ratio / 0.05
	default: // ratio > 0.40
		if ratio >= 1.0 {
			return 0
		}
		return 1 - (ratio-0.40)/0.60
	}
}

// scoreDensity rewards content where letters/digits dominate over markdown
// punctuation and formatting characters.
func scoreDensity(content string) float64 {
	var alnum, formatting, total int
	for _, r := range content {
		total++
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			alnum++
		case r == '#' || r == '*' || r == '_' || r == '|' || r == '>' || r == '-' || r == '[' || r == ']' || r == '(' || r == ')':
			formatting++
		}
	}
	if total == 0 {
		return 0
	}
	textDensity := float64(alnum) / float64(total)
	formatPenalty := float64(formatting) / float64(total)
	score := textDensity - 0.5*formatPenalty
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// scoreStructure gives full credit when the content has a heading and more
// than two paragraphs, half credit for either alone.
func scoreStructure(content string) float64 {
	hasHeading := qualityHeadingRe.MatchString(content)

	paragraphs := 0
	for _, block := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(block) != "" {
			paragraphs++
		}
	}

	switch {
	case hasHeading && paragraphs > 2:
		return 1.0
	case hasHeading || paragraphs > 2:
		return 0.5
	default:
		return 0
	}
}

// scoreLength rewards a sensible article length window (roughly 200 to
// 20,000 characters) and tapers off for stubs or unbounded dumps.
func scoreLength(n int) float64 {
	switch {
	case n < 50:
		return 0
	case n < 200:
		return float64(n-50) / 150
	case n <= 20_000:
		return 1.0
	case n <= 100_000:
		return 1 - float64(n-20_000)/80_000
	default:
		return 0
	}
}
