// Package bm25 ranks and filters cleaned page content against a caller
// query using Okapi BM25, and derives a single quick answer from it.
//
// Two modes sit on top of the same scorer:
//
//   - Filter mode (Filter) operates on document-structure-aware blocks
//     (paragraphs, headings, list/table groups, fenced code) and returns
//     the blocks worth keeping, in original document order.
//   - Quick-answer mode (Answer) operates on sentences, classifies the
//     question being asked, and layers positional/type-specific boosts on
//     top of the raw BM25 score to pick the single best passage.
package bm25

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/peel/models"
)

// Okapi BM25 parameters.
const (
	k1 = 1.5
	b  = 0.75
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// tokenize lowercases s and splits it into word tokens, discarding
// single-character tokens ("a", "I", "3") which carry no ranking signal.
func tokenize(s string) []string {
	words := wordRe.FindAllString(strings.ToLower(s), -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) >= 2 {
			out = append(out, w)
		}
	}
	return out
}

func termFrequencies(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return freq
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func containsTerm(tokens []string, term string) bool {
	for _, t := range tokens {
		if t == term {
			return true
		}
	}
	return false
}

func averageLength(tokenSets [][]string) float64 {
	if len(tokenSets) == 0 {
		return 1
	}
	total := 0
	for _, ts := range tokenSets {
		total += len(ts)
	}
	avg := float64(total) / float64(len(tokenSets))
	if avg <= 0 {
		return 1
	}
	return avg
}

// scoreAll computes the Okapi BM25 score of every document in docs against
// queryTerms. A "document" here is whatever unit the caller split content
// into: blocks for Filter, sentences for the quick-answer scorer.
func scoreAll(docs [][]string, queryTerms []string) []float64 {
	n := len(docs)
	avgLen := averageLength(docs)

	unique := uniqueTerms(queryTerms)
	docFreq := make(map[string]int, len(unique))
	for _, term := range unique {
		for _, d := range docs {
			if containsTerm(d, term) {
				docFreq[term]++
			}
		}
	}

	scores := make([]float64, n)
	for i, d := range docs {
		tf := termFrequencies(d)
		docLen := float64(len(d))
		var score float64
		for _, term := range queryTerms {
			freq := float64(tf[term])
			if freq == 0 {
				continue
			}
			df := docFreq[term]
			idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
			denom := freq + k1*(1-b+b*docLen/avgLen)
			score += idf * (freq * (k1 + 1)) / denom
		}
		scores[i] = score
	}
	return scores
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Filter splits content into structural blocks, scores each against query
// with BM25, and returns the blocks worth keeping in their original
// document order: anything scoring at least half the mean block score.
// If the threshold would discard everything, the top 3 blocks are kept
// instead, so a narrow query never zeroes out the document entirely.
func Filter(content, query string) []models.ScoredChunk {
	blocks := splitBlocks(content)
	if len(blocks) == 0 {
		return nil
	}
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	tokenSets := make([][]string, len(blocks))
	for i, blk := range blocks {
		tokenSets[i] = blk.tokens
	}
	scores := scoreAll(tokenSets, queryTerms)
	threshold := 0.5 * mean(scores)

	kept := make([]int, 0, len(blocks))
	for i, s := range scores {
		if s > 0 && s >= threshold {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		kept = topNIndices(scores, 3)
		sort.Ints(kept)
	}

	result := make([]models.ScoredChunk, 0, len(kept))
	for _, i := range kept {
		result = append(result, models.ScoredChunk{Text: blocks[i].text, Score: scores[i]})
	}
	return result
}

// topNIndices returns the indices of the n highest-scoring entries,
// breaking ties by original index so the result is deterministic.
func topNIndices(scores []float64, n int) []int {
	type indexed struct {
		idx   int
		score float64
	}
	ranked := make([]indexed, len(scores))
	for i, s := range scores {
		ranked[i] = indexed{idx: i, score: s}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].idx < ranked[j].idx
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]int, len(ranked))
	for i, r := range ranked {
		out[i] = r.idx
	}
	return out
}

// Answer produces a quick answer and confidence plus the ranked set of
// relevant blocks for content against query. A direct-pattern match
// (infobox rows, definition sentences) always wins over the BM25 sentence
// scorer, since a literal match is cheaper and more reliable than ranking.
func Answer(content, query string) (answer string, confidence float64, chunks []models.ScoredChunk) {
	chunks = Filter(content, query)

	if a, c, ok := extractDirect(content, query); ok {
		return a, c, chunks
	}

	a, c := quickAnswer(content, query)
	return a, c, chunks
}
