package document

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
)

// blankGapRe matches a paragraph gap: a newline followed by at least one more
// newline, with only horizontal whitespace in between.
var blankGapRe = regexp.MustCompile(`\r?\n[ \t]*(?:\r?\n[ \t]*)+`)

// textDocument holds a plain text or Markdown file split into paragraphs.
// The exact bytes between paragraphs (gaps) are retained so an unmodified
// document saves back byte for byte.
type textDocument struct {
	path   string
	prefix string   // whitespace before the first paragraph
	paras  []string // unit texts, without surrounding whitespace
	gaps   []string // gaps[i] follows paras[i]; always len(paras) entries
}

func loadText(path string) (*textDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	d := &textDocument{path: path}
	d.prefix, d.paras, d.gaps = splitIntoParagraphs(string(data))
	return d, nil
}

// splitIntoParagraphs cuts content at blank-line gaps. Leading and trailing
// whitespace of each paragraph is moved into the surrounding gap strings so
// that unit text is clean while reconstruction stays exact.
func splitIntoParagraphs(content string) (prefix string, paras, gaps []string) {
	locs := blankGapRe.FindAllStringIndex(content, -1)
	pos := 0
	for _, loc := range locs {
		paras = append(paras, content[pos:loc[0]])
		gaps = append(gaps, content[loc[0]:loc[1]])
		pos = loc[1]
	}
	paras = append(paras, content[pos:])
	gaps = append(gaps, "")

	// Trailing whitespace of a paragraph belongs to the gap after it,
	// leading whitespace to the gap before it (or the document prefix).
	for i := range paras {
		p := paras[i]
		trimmed := strings.TrimRightFunc(p, unicode.IsSpace)
		gaps[i] = p[len(trimmed):] + gaps[i]
		p = trimmed

		rest := strings.TrimLeftFunc(p, unicode.IsSpace)
		lead := p[:len(p)-len(rest)]
		if lead != "" {
			if i == 0 {
				prefix = lead
			} else {
				gaps[i-1] += lead
			}
		}
		paras[i] = rest
	}

	// A file that is nothing but whitespace collapses to a single empty unit.
	return prefix, paras, gaps
}

func (d *textDocument) Path() string { return d.path }

func (d *textDocument) Units() []Unit {
	units := make([]Unit, len(d.paras))
	for i, p := range d.paras {
		units[i] = Unit{Index: i, Text: p}
	}
	return units
}

func (d *textDocument) ReplaceText(index int, text string) error {
	if index < 0 || index >= len(d.paras) {
		return fmt.Errorf("unit index %d out of range (document has %d units)", index, len(d.paras))
	}
	// Plain text carries no styles, so any text is representable.
	d.paras[index] = text
	return nil
}

func (d *textDocument) Save(outPath string, plainText bool) error {
	// plainText is a no-op here: a text document has no formatting to drop.
	_ = plainText

	var sb strings.Builder
	sb.WriteString(d.prefix)
	for i, p := range d.paras {
		sb.WriteString(p)
		sb.WriteString(d.gaps[i])
	}
	return atomicWrite(outPath, []byte(sb.String()))
}

func (d *textDocument) Close() error { return nil }
