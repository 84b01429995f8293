package bm25

import (
	"regexp"
	"strings"
)

// infoboxLineRe matches a "Field: Value" or "Field · Value" row, the shape
// markdown conversions of infobox/sidebar tables tend to collapse to.
var infoboxLineRe = regexp.MustCompile(`^\*{0,2}([A-Za-z][A-Za-z0-9 /'-]{1,40})\*{0,2}\s*[:\x{00B7}]\s*(.+)$`)

// extractDirect looks for a literal, high-confidence answer before BM25
// ranking runs at all: an infobox-style "Field: Value" row whose field
// name overlaps the query, or a definition sentence naming the query
// subject. It only fires for who/when/what questions, where a single
// labelled fact or a definition clause is a reliable answer on its own.
func extractDirect(content, query string) (answer string, confidence float64, ok bool) {
	qt := classifyQuestion(query)
	if qt != qWho && qt != qWhen && qt != qWhat {
		return "", 0, false
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return "", 0, false
	}

	if a, c, found := extractInfoboxRow(content, qt, queryTerms); found {
		return a, c, true
	}
	if qt == qWhat {
		if a, c, found := extractDefinitionSentence(content, queryTerms); found {
			return a, c, true
		}
	}
	return "", 0, false
}

var fieldHintsByType = map[questionType][]string{
	qWho:  {"author", "by", "director", "creator", "founder", "ceo", "writer", "artist", "host"},
	qWhen: {"date", "released", "published", "founded", "established", "born", "year"},
	qWhat: {"type", "genre", "category", "format", "description"},
}

// extractInfoboxRow scans for a "Field: Value" line whose field name
// either matches the question-type's expected labels or shares a term
// with the query itself.
func extractInfoboxRow(content string, qt questionType, queryTerms []string) (string, float64, bool) {
	hints := fieldHintsByType[qt]
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		m := infoboxLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		field := strings.ToLower(strings.TrimSpace(m[1]))
		value := strings.TrimSpace(m[2])
		if value == "" {
			continue
		}

		matched := false
		for _, hint := range hints {
			if strings.Contains(field, hint) {
				matched = true
				break
			}
		}
		if !matched {
			for _, term := range queryTerms {
				if strings.Contains(field, term) {
					matched = true
					break
				}
			}
		}
		if matched {
			return m[1] + ": " + value, 0.9, true
		}
	}
	return "", 0, false
}

// extractDefinitionSentence looks for the first sentence that both reads
// like a definition ("X is a/an/the ...") and shares a term with the
// query, which is a strong signal the sentence answers a "what is X"
// question directly.
func extractDefinitionSentence(content string, queryTerms []string) (string, float64, bool) {
	for _, sentence := range splitSentences(content) {
		if !definitionRe.MatchString(sentence) && !refersToRe.MatchString(sentence) {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, term := range queryTerms {
			if strings.Contains(lower, term) {
				return sentence, 0.88, true
			}
		}
	}
	return "", 0, false
}
