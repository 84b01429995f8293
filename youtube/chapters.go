package youtube

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/peel/models"
)

// chapterLineRe matches description lines like "12:34 Introduction" or
// "1:02:03 - Deep dive", requiring a timestamp at the start of the line.
var chapterLineRe = regexp.MustCompile(`^\s*(\d+):(\d{2})(?::(\d{2}))?\s*[-–—]?\s*(.+)$`)

const minChaptersToQualify = 2

// parseChapters looks for `HH:MM:SS title` lines in the video description;
// at least two are required to qualify as a chapter list. Each chapter's
// key point is the first substantive (>= 5 words) sentence of the segments
// falling within its span, falling back to a per-2-minute block when there
// are no qualifying description chapters.
func parseChapters(description string, segments []models.TranscriptSegment) []models.Chapter {
	var chapters []models.Chapter
	for _, line := range strings.Split(description, "\n") {
		m := chapterLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		start := parseTimestamp(m[1], m[2], m[3])
		title := strings.TrimSpace(m[4])
		if title == "" {
			continue
		}
		chapters = append(chapters, models.Chapter{Start: start, Title: title})
	}

	if len(chapters) < minChaptersToQualify {
		return syntheticChapters(segments)
	}

	for i := range chapters {
		end := segmentsEnd(segments)
		if i+1 < len(chapters) {
			end = chapters[i+1].Start
		}
		chapters[i].KeyPoint = firstSubstantiveSentence(segments, chapters[i].Start, end)
	}
	return chapters
}

// syntheticChapters builds one "chapter" per 2-minute block when the
// description has no qualifying timestamp list, so key points are still
// available for long transcripts.
func syntheticChapters(segments []models.TranscriptSegment) []models.Chapter {
	if len(segments) == 0 {
		return nil
	}
	const blockSeconds = 120.0
	end := segmentsEnd(segments)
	var chapters []models.Chapter
	for start := 0.0; start < end; start += blockSeconds {
		blockEnd := start + blockSeconds
		kp := firstSubstantiveSentence(segments, start, blockEnd)
		if kp == "" {
			continue
		}
		chapters = append(chapters, models.Chapter{Start: start, KeyPoint: kp})
	}
	return chapters
}

func segmentsEnd(segments []models.TranscriptSegment) float64 {
	if len(segments) == 0 {
		return 0
	}
	last := segments[len(segments)-1]
	return last.Start + last.Dur
}

func firstSubstantiveSentence(segments []models.TranscriptSegment, start, end float64) string {
	var block strings.Builder
	for _, seg := range segments {
		if seg.Start < start || seg.Start >= end {
			continue
		}
		block.WriteString(seg.Text)
		block.WriteByte(' ')
	}
	for _, sentence := range splitSentences(block.String()) {
		if len(strings.Fields(sentence)) >= 5 {
			return sentence
		}
	}
	return ""
}

var sentenceSplitRe = regexp.MustCompile(`(?:[.!?])\s+`)

func splitSentences(s string) []string {
	parts := sentenceSplitRe.Split(strings.TrimSpace(s), -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseTimestamp(hourOrMin, minOrSec, sec string) float64 {
	if sec == "" {
		// "MM:SS"
		m, _ := strconv.Atoi(hourOrMin)
		s, _ := strconv.Atoi(minOrSec)
		return float64(m*60 + s)
	}
	// "HH:MM:SS"
	h, _ := strconv.Atoi(hourOrMin)
	m, _ := strconv.Atoi(minOrSec)
	s, _ := strconv.Atoi(sec)
	return float64(h*3600 + m*60 + s)
}
