// Package prompt builds the humanizer system prompt sent with every
// rewrite request.
package prompt

import (
	"fmt"
	"os"
	"strings"
)

// Default is the embedded humanizer prompt, used when no prompt file is
// configured or the configured file does not exist.
const Default = `Rewrite the following text to make it sound more natural and human-like.
Keep the same meaning and key information, but vary the sentence structure,
use more casual language where appropriate, and make it feel like a person wrote it naturally.
Do not add any preamble or explanation, just provide the rewritten text.`

// Load returns the system prompt from path, falling back to Default when
// path is empty or points to a missing file. A file that exists but cannot
// be read is an error.
func Load(path string) (string, error) {
	if path == "" {
		return Default, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default, nil
		}
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return Default, nil
	}
	return text, nil
}

// WithTone appends an optional tone/formality directive to a base prompt.
func WithTone(base, tone string) string {
	tone = strings.TrimSpace(tone)
	if tone == "" {
		return base
	}
	return fmt.Sprintf("%s\n\nStyle directive: write in a %s tone.", base, tone)
}
