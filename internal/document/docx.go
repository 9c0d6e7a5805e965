package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// docxDocument adapts a Word document. The zip container is handled by the
// docx library; paragraph and run text inside word/document.xml is handled
// by the WordprocessingML helpers in this package so formatting markup is
// never regenerated, only the run text is.
type docxDocument struct {
	path     string
	reader   *docx.ReplaceDocx
	editable *docx.Docx
	content  string  // document.xml body as loaded
	spans    [][]int // paragraph spans within content
	paras    []string
	markup   []string // current markup per paragraph, updated by ReplaceText
}

func loadDocx(path string) (*docxDocument, error) {
	reader, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx file: %w", err)
	}

	editable := reader.Editable()
	content := editable.GetContent()
	spans := paragraphSpans(content)

	d := &docxDocument{
		path:     path,
		reader:   reader,
		editable: editable,
		content:  content,
		spans:    spans,
		paras:    make([]string, len(spans)),
		markup:   make([]string, len(spans)),
	}
	for i, span := range spans {
		d.markup[i] = content[span[0]:span[1]]
		d.paras[i] = paragraphText(d.markup[i])
	}
	return d, nil
}

func (d *docxDocument) Path() string { return d.path }

func (d *docxDocument) Units() []Unit {
	units := make([]Unit, len(d.paras))
	for i, p := range d.paras {
		units[i] = Unit{Index: i, Text: p}
	}
	return units
}

func (d *docxDocument) ReplaceText(index int, text string) error {
	if index < 0 || index >= len(d.paras) {
		return fmt.Errorf("unit index %d out of range (document has %d units)", index, len(d.paras))
	}
	updated, err := setParagraphText(d.markup[index], text)
	if err != nil {
		return err
	}
	d.markup[index] = updated
	d.paras[index] = text
	return nil
}

func (d *docxDocument) Save(outPath string, plainText bool) error {
	if plainText {
		var parts []string
		for _, p := range d.paras {
			if strings.TrimSpace(p) != "" {
				parts = append(parts, p)
			}
		}
		return atomicWrite(outPath, []byte(strings.Join(parts, "\n\n")+"\n"))
	}

	// Splice rewritten paragraph markup back into the original body.
	var sb strings.Builder
	pos := 0
	for i, span := range d.spans {
		sb.WriteString(d.content[pos:span[0]])
		sb.WriteString(d.markup[i])
		pos = span[1]
	}
	sb.WriteString(d.content[pos:])
	d.editable.SetContent(sb.String())

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".dochumanize-*.docx")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	if err := d.editable.WriteToFile(tmpName); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write docx: %w", err)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

func (d *docxDocument) Close() error {
	return d.reader.Close()
}
