package cleaner

import "math"

// EstimateTokens provides a fast token count estimate without importing
// tiktoken: ceil(chars/4), the same heuristic the distiller's budget math
// uses, so a single number is shown for "how many tokens is this" anywhere
// in the pipeline rather than two disagreeing ones.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / 4.0))
}
