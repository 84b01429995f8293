package bm25

import (
	"regexp"
	"strings"
)

var (
	urlRe        = regexp.MustCompile(`https?://\S+`)
	decimalRe    = regexp.MustCompile(`\d+\.\d+`)
	abbrevRe     = regexp.MustCompile(`(?i)\b(mr|mrs|ms|dr|prof|sr|jr|st|vs|etc|approx|inc|ltd|co|no|fig|e\.g|i\.e|u\.s|u\.k)\.`)
	sentenceEnds = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
)

// protectedPeriod stands in for a "." that must not be treated as a
// sentence boundary while splitting.
const protectedPeriod = "\x00"

// splitSentences breaks text into sentences, guarding URLs, common
// abbreviations, and decimal numbers from being mistaken for sentence
// boundaries.
func splitSentences(text string) []string {
	protected := urlRe.ReplaceAllStringFunc(text, protectPeriods)
	protected = decimalRe.ReplaceAllStringFunc(protected, protectPeriods)
	protected = abbrevRe.ReplaceAllStringFunc(protected, protectPeriods)

	raw := sentenceEnds.Split(protected, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ReplaceAll(s, protectedPeriod, ".")
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func protectPeriods(match string) string {
	return strings.ReplaceAll(match, ".", protectedPeriod)
}
