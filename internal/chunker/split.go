package chunker

import (
	"strings"
	"unicode"
)

// MaxCharsFor converts a token budget into the character limit Split works
// with, using the same estimation coefficient as EstimateTokens.
func MaxCharsFor(maxTokens int) int {
	if maxTokens <= 0 {
		return 0
	}
	return maxTokens * bytesPerToken
}

// Split cuts text into pieces of at most limit unicode code points each,
// preferring (in order) paragraph boundaries, sentence-ending punctuation,
// then word boundaries, with a hard cut as the last resort. It is used to
// sub-divide an oversized batch before sending it for refinement.
//
// If text already fits, a single-element slice is returned. limit ≤ 0 is
// treated as unlimited.
func Split(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var pieces []string
	remaining := text
	for len([]rune(remaining)) > limit {
		cut := findCut(remaining, limit)
		piece := strings.TrimSpace(remaining[:cut])
		if piece != "" {
			pieces = append(pieces, piece)
		}
		remaining = strings.TrimSpace(remaining[cut:])
	}
	if strings.TrimSpace(remaining) != "" {
		pieces = append(pieces, strings.TrimSpace(remaining))
	}
	return pieces
}

// findCut returns the byte offset at which to cut, aiming for at most limit
// runes, searching backwards from the limit for the best boundary.
func findCut(text string, limit int) int {
	runes := []rune(text)
	if len(runes) <= limit {
		return len(text)
	}
	candidate := runes[:limit]
	window := string(candidate)

	// Paragraph boundary, consumed together with the blank line.
	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return idx + 2
	}
	if idx := strings.LastIndex(window, "\r\n\r\n"); idx > 0 {
		return idx + 4
	}

	// Sentence end followed by whitespace.
	for i := len(candidate) - 2; i > 0; i-- {
		r := candidate[i]
		if (r == '.' || r == '!' || r == '?') && unicode.IsSpace(candidate[i+1]) {
			return len(string(candidate[:i+1]))
		}
	}

	// Word boundary.
	for i := len(candidate) - 1; i > 0; i-- {
		if unicode.IsSpace(candidate[i]) {
			return len(string(candidate[:i]))
		}
	}

	return len(window)
}
