package safeguard

import (
	"math"
	"strings"
)

// DefaultMaxTokensPerSnippet is the snippet token cap.
const DefaultMaxTokensPerSnippet = 100

// tokensPerWord approximates a token as 0.75 words.
const tokensPerWord = 0.75

// EstimateTokens approximates the token count of text as
// ceil(word_count * 0.75). This word-based estimator stands in for a
// model-specific tokenizer; see DESIGN.md for the rationale.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * tokensPerWord))
}

// SnippetTruncator truncates result snippets to a bounded token budget,
// word-boundary safe.
type SnippetTruncator struct {
	MaxTokens int
}

// NewSnippetTruncator creates a [SnippetTruncator]. maxTokens, if zero,
// defaults to [DefaultMaxTokensPerSnippet].
func NewSnippetTruncator(maxTokens int) *SnippetTruncator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokensPerSnippet
	}
	return &SnippetTruncator{MaxTokens: maxTokens}
}

// Truncate shortens text to at most MaxTokens (estimated), breaking on a
// word boundary and appending "..." when truncated.
func (t *SnippetTruncator) Truncate(text string) string {
	if EstimateTokens(text) <= t.MaxTokens {
		return text
	}

	maxWords := int(math.Floor(float64(t.MaxTokens) / tokensPerWord))
	if maxWords <= 0 {
		maxWords = 1
	}

	words := strings.Fields(text)
	if maxWords >= len(words) {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
