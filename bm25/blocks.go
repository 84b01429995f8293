package bm25

import (
	"regexp"
	"strings"
)

// block is one structural unit of a document considered by Filter.
type block struct {
	text   string
	tokens []string
}

func newBlock(text string) block {
	return block{text: text, tokens: tokenize(text)}
}

var (
	headingRe     = regexp.MustCompile(`^#{1,6}\s`)
	orderedItemRe = regexp.MustCompile(`^\d+[.)]\s`)
)

func isListOrTableLine(trimmed string) bool {
	switch {
	case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "), strings.HasPrefix(trimmed, "+ "):
		return true
	case strings.HasPrefix(trimmed, "|"):
		return true
	case orderedItemRe.MatchString(trimmed):
		return true
	}
	return false
}

// splitBlocks breaks cleaned Markdown content into structural units:
// fenced code blocks stay intact as a single unit, a heading is merged
// with the paragraph that follows it, contiguous list items or table rows
// merge into one unit, and anything else falls back to paragraph-per-unit
// splitting on blank lines.
func splitBlocks(content string) []block {
	lines := strings.Split(content, "\n")
	var blocks []block
	var buf []string

	flush := func() {
		if len(buf) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if text == "" {
			return
		}
		blocks = append(blocks, newBlock(text))
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flush()
			i++

		case strings.HasPrefix(trimmed, "```"):
			flush()
			fence := []string{line}
			i++
			for i < len(lines) {
				fence = append(fence, lines[i])
				closed := strings.HasPrefix(strings.TrimSpace(lines[i]), "```")
				i++
				if closed {
					break
				}
			}
			blocks = append(blocks, newBlock(strings.TrimSpace(strings.Join(fence, "\n"))))

		case headingRe.MatchString(trimmed):
			flush()
			group := []string{line}
			i++
			for i < len(lines) {
				t := strings.TrimSpace(lines[i])
				if t == "" || headingRe.MatchString(t) {
					break
				}
				group = append(group, lines[i])
				i++
			}
			blocks = append(blocks, newBlock(strings.TrimSpace(strings.Join(group, "\n"))))

		case isListOrTableLine(trimmed):
			flush()
			group := []string{line}
			i++
			for i < len(lines) {
				t := strings.TrimSpace(lines[i])
				if !isListOrTableLine(t) {
					break
				}
				group = append(group, lines[i])
				i++
			}
			blocks = append(blocks, newBlock(strings.TrimSpace(strings.Join(group, "\n"))))

		default:
			buf = append(buf, line)
			i++
		}
	}
	flush()

	return blocks
}
