package document

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nguyenthenguyen/docx"
)

const docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

// writeDocx builds a minimal .docx container around the given body markup.
func writeDocx(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body + `<w:sectPr/></w:body></w:document>`

	zw := zip.NewWriter(f)
	for _, entry := range []struct{ name, content string }{
		{"word/document.xml", document},
		{"word/_rels/document.xml.rels", docxRels},
	} {
		w, err := zw.Create(entry.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(entry.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

const fixtureBody = `<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr>` +
	`<w:r><w:rPr><w:b/></w:rPr><w:t>Quarterly Report</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t xml:space="preserve">The results were </w:t></w:r>` +
	`<w:r><w:rPr><w:i/></w:rPr><w:t>good</w:t></w:r><w:r><w:t>.</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Unchanged paragraph.</w:t></w:r></w:p>`

func TestDocxDocument_Units(t *testing.T) {
	path := writeDocx(t, t.TempDir(), "report.docx", fixtureBody)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load docx: %v", err)
	}
	defer doc.Close()

	if doc.Path() != path {
		t.Errorf("expected path %q, got %q", path, doc.Path())
	}
	units := doc.Units()
	want := []string{"Quarterly Report", "The results were good.", "Unchanged paragraph."}
	if len(units) != len(want) {
		t.Fatalf("expected %d units, got %d", len(want), len(units))
	}
	for i, w := range want {
		if units[i].Text != w {
			t.Errorf("unit %d: expected %q, got %q", i, w, units[i].Text)
		}
		if units[i].Index != i {
			t.Errorf("unit %d has index %d", i, units[i].Index)
		}
	}
}

func TestDocxDocument_ReplaceAndSave(t *testing.T) {
	dir := t.TempDir()
	path := writeDocx(t, dir, "report.docx", fixtureBody)
	outPath := filepath.Join(dir, "report_out.docx")

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load docx: %v", err)
	}
	if err := doc.ReplaceText(0, "Annual Report"); err != nil {
		t.Fatalf("ReplaceText(0) failed: %v", err)
	}
	if err := doc.ReplaceText(1, "The results were strong."); err != nil {
		t.Fatalf("ReplaceText(1) failed: %v", err)
	}
	if err := doc.Save(outPath, false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	doc.Close()

	// The saved file is a valid container with the new texts.
	reopened, err := Load(outPath)
	if err != nil {
		t.Fatalf("failed to reopen saved docx: %v", err)
	}
	defer reopened.Close()

	units := reopened.Units()
	want := []string{"Annual Report", "The results were strong.", "Unchanged paragraph."}
	if len(units) != len(want) {
		t.Fatalf("expected %d units after save, got %d", len(want), len(units))
	}
	for i, w := range want {
		if units[i].Text != w {
			t.Errorf("unit %d: expected %q, got %q", i, w, units[i].Text)
		}
	}

	// Style markup survives the round trip.
	reader, err := docx.ReadDocxFile(outPath)
	if err != nil {
		t.Fatalf("failed to read saved container: %v", err)
	}
	defer reader.Close()
	content := reader.Editable().GetContent()
	if !strings.Contains(content, `<w:pStyle w:val="Heading1"/>`) {
		t.Error("paragraph style was lost on save")
	}
	if !strings.Contains(content, "<w:b/>") {
		t.Error("bold run properties were lost on save")
	}
	if !strings.Contains(content, "<w:i/>") {
		t.Error("italic run properties were lost on save")
	}
	if strings.Contains(content, "Quarterly Report") {
		t.Error("old text survived the replacement")
	}
}

func TestDocxDocument_InputNeverMutated(t *testing.T) {
	dir := t.TempDir()
	path := writeDocx(t, dir, "report.docx", fixtureBody)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.ReplaceText(0, "Changed"); err != nil {
		t.Fatal(err)
	}
	if err := doc.Save(filepath.Join(dir, "out.docx"), false); err != nil {
		t.Fatal(err)
	}
	doc.Close()

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("input docx was modified")
	}
}

func TestDocxDocument_SavePlainText(t *testing.T) {
	dir := t.TempDir()
	path := writeDocx(t, dir, "report.docx", fixtureBody)
	outPath := filepath.Join(dir, "report.txt")

	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()

	if err := doc.Save(outPath, true); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	want := "Quarterly Report\n\nThe results were good.\n\nUnchanged paragraph.\n"
	if string(data) != want {
		t.Errorf("plain text output mismatch:\ngot  %q\nwant %q", string(data), want)
	}
}

func TestDocxDocument_TableCellUnits(t *testing.T) {
	body := `<w:p><w:r><w:t>Before table.</w:t></w:r></w:p>` +
		`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell text.</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
		`<w:p><w:r><w:t>After table.</w:t></w:r></w:p>`
	dir := t.TempDir()
	path := writeDocx(t, dir, "table.docx", body)

	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.ReplaceText(1, "New cell text."); err != nil {
		t.Fatalf("cell ReplaceText failed: %v", err)
	}
	outPath := filepath.Join(dir, "table_out.docx")
	if err := doc.Save(outPath, false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	doc.Close()

	reopened, err := Load(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	units := reopened.Units()
	want := []string{"Before table.", "New cell text.", "After table."}
	for i, w := range want {
		if units[i].Text != w {
			t.Errorf("unit %d: expected %q, got %q", i, w, units[i].Text)
		}
	}
}
