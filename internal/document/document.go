// Package document loads and saves the documents DocHumanize can refine.
//
// A loaded document is an ordered sequence of Units (paragraphs). Unit text
// can be replaced in place without disturbing the formatting markup the unit
// came with; saving always goes through a temp file and an atomic rename so
// a failed save never leaves a half-written output behind.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned by Load for file types DocHumanize
	// does not understand.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrStyleConflict is returned by ReplaceText when the replacement text
	// cannot be represented in the document format. The caller should fall
	// back to Sanitize and insert the text as plain runs.
	ErrStyleConflict = errors.New("replacement text cannot be represented in document format")
)

// Unit is one text-bearing structural element of a document, typically a
// paragraph. The formatting that belongs to the unit stays inside the owning
// Document; a Unit only carries its position and visible text.
type Unit struct {
	// Index is the unit's position within the document. It is stable for the
	// lifetime of the Document and is the key passed to ReplaceText.
	Index int
	// Text is the unit's visible text at load time.
	Text string
}

// Refinable reports whether the unit carries any text worth sending for
// refinement. Whitespace-only units keep their position but are skipped.
func (u Unit) Refinable() bool {
	return strings.TrimSpace(u.Text) != ""
}

// Document is an in-memory, mutable view of a loaded file.
type Document interface {
	// Path returns the path the document was loaded from.
	Path() string
	// Units returns the document's units in document order.
	Units() []Unit
	// ReplaceText rewrites the visible text of the unit at index, leaving
	// its formatting untouched.
	ReplaceText(index int, text string) error
	// Save writes the document to outPath. When plainText is true all
	// formatting is discarded and only the text content is written.
	// The write is atomic: temp file in the destination directory, then
	// rename.
	Save(outPath string, plainText bool) error
	// Close releases any resources held open since Load.
	Close() error
}

// Load opens path and returns a Document for its format. Plain text and
// Markdown files are handled natively; .docx goes through the docx adapter.
func Load(path string) (Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", ".md", ".markdown":
		return loadText(path)
	case ".docx":
		return loadDocx(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Sanitize strips characters that no document format can carry (XML-invalid
// control characters). Used as the fallback when ReplaceText reports
// ErrStyleConflict.
func Sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return -1
	}, text)
}

// isXMLChar reports whether r is allowed in XML 1.0 character data.
func isXMLChar(r rune) bool {
	return r == '\t' || r == '\n' || r == '\r' ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

// atomicWrite writes data to path via a temp file in the same directory
// followed by a rename, so the destination is never partially overwritten.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".dochumanize-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
