package document

import (
	"regexp"
	"strings"
)

// WordprocessingML handling for the docx adapter.
//
// Paragraphs and runs are manipulated as raw markup inside word/document.xml
// rather than through a full XML object model: only run text (<w:t>) is ever
// rewritten, so paragraph and run properties (w:pPr, w:rPr) survive
// untouched. Table cell paragraphs are ordinary <w:p> elements and are picked
// up in document order.

var (
	// paraRe matches one <w:p> element, open/close or self-closing.
	// WordprocessingML paragraphs do not nest, so a lazy match is safe.
	paraRe = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*[^/>]|)>.*?</w:p>|<w:p(?:\s[^>]*)?/>`)

	// runTextRe matches one <w:t> element including its content.
	runTextRe = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>.*?</w:t>|<w:t(?:\s[^>]*)?/>`)

	// runTextContentRe captures the content of a non-empty <w:t>.
	runTextContentRe = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)

	breakRe = regexp.MustCompile(`<w:br\s*/>|<w:cr\s*/>`)
	tabRe   = regexp.MustCompile(`<w:tab\s*/>`)

	// runTokenRe walks a paragraph's text-bearing elements in order.
	runTokenRe = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>.*?</w:t>|<w:br\s*/>|<w:cr\s*/>|<w:tab\s*/>`)
)

var xmlUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// paragraphSpans returns the byte spans of every paragraph element in a
// document.xml body, in document order.
func paragraphSpans(content string) [][]int {
	return paraRe.FindAllStringIndex(content, -1)
}

// paragraphText extracts the visible text of one paragraph's markup:
// run text concatenated, with breaks as newlines and tabs as tabs.
func paragraphText(para string) string {
	var sb strings.Builder
	// Walk run-level elements in order so breaks land between text pieces.
	for _, tok := range runTokenRe.FindAllString(para, -1) {
		switch {
		case breakRe.MatchString(tok):
			sb.WriteString("\n")
		case tabRe.MatchString(tok):
			sb.WriteString("\t")
		default:
			if m := runTextContentRe.FindStringSubmatch(tok); m != nil {
				sb.WriteString(xmlUnescaper.Replace(m[1]))
			}
		}
	}
	return sb.String()
}

// setParagraphText rewrites a paragraph's visible text in place: the new
// text goes into the first run's <w:t> (keeping that run's properties) and
// every other <w:t> is emptied. Paragraphs without any run get a plain run
// appended before </w:p>.
//
// Returns ErrStyleConflict when text contains characters WordprocessingML
// cannot carry.
func setParagraphText(para, text string) (string, error) {
	for _, r := range text {
		if !isXMLChar(r) {
			return "", ErrStyleConflict
		}
	}

	spans := runTextRe.FindAllStringIndex(para, -1)
	if len(spans) == 0 {
		if strings.TrimSpace(text) == "" {
			return para, nil
		}
		run := "<w:r>" + runMarkup(text) + "</w:r>"
		if idx := strings.LastIndex(para, "</w:p>"); idx >= 0 {
			return para[:idx] + run + para[idx:], nil
		}
		// Self-closing empty paragraph: expand it, keeping its attributes.
		open := strings.TrimSuffix(para, "/>")
		return open + ">" + run + "</w:p>", nil
	}

	// Existing breaks and tabs would duplicate the ones encoded in the new
	// run text; drop them before splicing.
	stripped := tabRe.ReplaceAllString(breakRe.ReplaceAllString(para, ""), "")
	spans = runTextRe.FindAllStringIndex(stripped, -1)

	var sb strings.Builder
	pos := 0
	for i, span := range spans {
		sb.WriteString(stripped[pos:span[0]])
		if i == 0 {
			sb.WriteString(runMarkup(text))
		} else {
			sb.WriteString("<w:t/>")
		}
		pos = span[1]
	}
	sb.WriteString(stripped[pos:])
	return sb.String(), nil
}

// runMarkup encodes text as the inner markup of a run: escaped <w:t>
// segments with <w:br/> for newlines and <w:tab/> for tabs.
func runMarkup(text string) string {
	var sb strings.Builder
	segment := func(s string) {
		if s == "" {
			return
		}
		sb.WriteString(`<w:t xml:space="preserve">`)
		sb.WriteString(xmlEscaper.Replace(s))
		sb.WriteString(`</w:t>`)
	}
	start := 0
	for i, r := range text {
		if r != '\n' && r != '\t' {
			continue
		}
		segment(text[start:i])
		if r == '\n' {
			sb.WriteString("<w:br/>")
		} else {
			sb.WriteString("<w:tab/>")
		}
		start = i + 1
	}
	segment(text[start:])
	if sb.Len() == 0 {
		return `<w:t xml:space="preserve"></w:t>`
	}
	return sb.String()
}
