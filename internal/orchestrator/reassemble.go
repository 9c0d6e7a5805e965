package orchestrator

import (
	"math"
	"regexp"
	"strings"
)

var paragraphBreakRe = regexp.MustCompile(`\n[ \t]*\n+`)

// splitRefined cuts refined text at blank lines, dropping empty pieces.
func splitRefined(refined string) []string {
	raw := paragraphBreakRe.Split(refined, -1)
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func countParagraphs(refined string) int {
	return len(splitRefined(refined))
}

// reassemble maps refined text onto the batch's original units. When the
// model kept the paragraph boundaries (piece count matches), each unit gets
// its corresponding piece. Otherwise the text is redistributed across the
// units proportionally to each original's length; exact reports which path
// was taken so the caller can record a warning, and kept counts the units
// that fell back to their original text.
func reassemble(refined string, originals []string) (parts []string, exact bool, kept int) {
	if len(originals) == 1 {
		trimmed := strings.TrimSpace(refined)
		if trimmed == "" {
			return []string{originals[0]}, false, 1
		}
		return []string{trimmed}, true, 0
	}
	pieces := splitRefined(refined)
	if len(pieces) == len(originals) {
		return pieces, true, 0
	}
	parts, kept = redistribute(refined, originals)
	return parts, false, kept
}

// redistribute splits refined text into len(originals) pieces whose sizes
// are proportional to the original unit lengths. Word boundaries are
// respected; the last unit takes the remainder. A unit is never blanked:
// when the refined text runs out of words, the remaining units keep their
// original text, and kept reports how many did.
func redistribute(refined string, originals []string) ([]string, int) {
	words := strings.Fields(refined)
	out := make([]string, len(originals))
	if len(words) == 0 {
		copy(out, originals)
		return out, len(originals)
	}

	total := 0
	for _, orig := range originals {
		total += len([]rune(orig))
	}
	if total == 0 {
		out[0] = strings.Join(words, " ")
		return out, 0
	}

	kept := 0
	pos := 0
	for i, orig := range originals {
		if pos >= len(words) {
			out[i] = originals[i]
			kept++
			continue
		}
		if i == len(originals)-1 {
			out[i] = strings.Join(words[pos:], " ")
			break
		}
		share := float64(len([]rune(orig))) / float64(total)
		n := int(math.Round(share * float64(len(words))))
		if n < 1 {
			n = 1
		}
		if remaining := len(words) - pos; n > remaining {
			n = remaining
		}
		out[i] = strings.Join(words[pos:pos+n], " ")
		pos += n
	}
	return out, kept
}
