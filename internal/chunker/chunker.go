// Package chunker groups document units into batches under a token budget
// and splits oversized text at natural boundaries. Token counts are a cheap,
// deterministic estimate; the only guarantee is monotonicity in input
// length, which makes batching reproducible for identical input.
package chunker

import "strings"

// bytesPerToken is the estimation coefficient: tokens ≈ ceil(utf8 bytes / 4).
const bytesPerToken = 4

// unitSeparator joins unit texts inside a batch payload and is what the
// reassembler splits refined text on.
const unitSeparator = "\n\n"

// EstimateTokens approximates the token count of s.
func EstimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	return (len(s) + bytesPerToken - 1) / bytesPerToken
}

// Batch is a run of consecutive units whose combined text is sent in one
// request. Start and End are a half-open index range into the unit slice
// Plan was given.
type Batch struct {
	Start  int
	End    int
	Text   string
	Tokens int
}

// Size returns the number of units in the batch.
func (b Batch) Size() int { return b.End - b.Start }

// Plan packs units into batches greedily in order: units accumulate into the
// current batch while the running token estimate stays within maxTokens.
// A single unit over the budget becomes its own oversized batch, never
// dropped or truncated. Every unit lands in exactly one batch and batch
// order concatenated equals unit order.
//
// maxTokens ≤ 0 means unlimited: one batch holds everything.
func Plan(units []string, maxTokens int) []Batch {
	if len(units) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		return []Batch{makeBatch(units, 0, len(units))}
	}

	var batches []Batch
	start := 0
	running := 0
	for i, u := range units {
		t := EstimateTokens(u)
		if i > start && running+t > maxTokens {
			batches = append(batches, makeBatch(units, start, i))
			start = i
			running = 0
		}
		running += t
	}
	batches = append(batches, makeBatch(units, start, len(units)))
	return batches
}

func makeBatch(units []string, start, end int) Batch {
	text := strings.Join(units[start:end], unitSeparator)
	tokens := 0
	for _, u := range units[start:end] {
		tokens += EstimateTokens(u)
	}
	return Batch{Start: start, End: end, Text: text, Tokens: tokens}
}
