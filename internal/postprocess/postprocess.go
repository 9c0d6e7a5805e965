// Package postprocess strips common LLM artifacts from rewritten text.
//
// It runs on the raw completion from any backend (Ollama, OpenRouter) before
// the text is reassembled into the document.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes artifacts in three phases and returns the trimmed result:
//  1. Thinking / reasoning block removal
//  2. Instruction echo removal (prompt leakage)
//  3. Wrapping quote removal
func Clean(text string) string {
	text = stripThinkingBlocks(text)
	text = stripInstructionEchoes(text)
	text = stripWrappingQuotes(text)
	return strings.TrimSpace(text)
}

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// Tag variants are listed explicitly; RE2 has no backreferences.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches a thinking tag the model never closed.
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func stripThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// echoPatterns match the introductions models prepend even when told not to.
// Anchored to the start and requiring a colon to avoid eating real content.
var echoPatterns = []*regexp.Regexp{
	// "Here is / Here's [the|your] [rewritten|humanized|revised] [text|version]:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the| your)? (?:rewritten |humanized |revised |refined )?(?:text|version)\s*:`),
	// "[The] [rewritten|humanized|revised] [text|version]:"
	regexp.MustCompile(`(?i)^(?:the )?(?:rewritten |humanized |revised |refined )(?:text|version)\s*:`),
	// "Certainly / Sure / Of course[,] here is the rewritten text:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is)(?: the| your)? (?:rewritten |humanized |revised |refined )?(?:text|version)\s*:`),
}

func stripInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// stripWrappingQuotes removes one matching pair of outer quotes when the
// whole text is wrapped in them. Supported pairs: "…" '…' «…» and the
// typographic double/single quotes.
func stripWrappingQuotes(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
