package orchestrator

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/valpere/dochumanize/internal"
	"github.com/valpere/dochumanize/internal/document"
	"github.com/valpere/dochumanize/internal/rewriter"
)

// fakeService records requests and answers from a lookup function.
type fakeService struct {
	mu     sync.Mutex
	calls  []string
	answer func(text string) (string, error)
}

func (s *fakeService) Name() string { return "fake" }

func (s *fakeService) Rewrite(ctx context.Context, cfg rewriter.Config, req rewriter.Request) (*rewriter.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Text)
	s.mu.Unlock()
	if s.answer != nil {
		text, err := s.answer(req.Text)
		if err != nil {
			return nil, err
		}
		return &rewriter.Result{ServiceName: s.Name(), Text: text, Model: "fake-model"}, nil
	}
	return &rewriter.Result{ServiceName: s.Name(), Text: "refined: " + req.Text, Model: "fake-model"}, nil
}

func (s *fakeService) IsAvailable(ctx context.Context) error        { return nil }
func (s *fakeService) Models(ctx context.Context) ([]string, error) { return nil, nil }

func (s *fakeService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakeMemory is an in-memory Memory implementation for cache behavior tests.
type fakeMemory struct {
	mu       sync.Mutex
	cache    map[string]string
	saves    int
	requests int
	results  int
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{cache: make(map[string]string)}
}

func (m *fakeMemory) GetCachedRewrite(ctx context.Context, sourceText, model, tone string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.cache[sourceText]
	return v, ok, nil
}

func (m *fakeMemory) SaveToMemory(ctx context.Context, sourceText, model, tone, refinedText, serviceUsed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[sourceText] = refinedText
	m.saves++
	return nil
}

func (m *fakeMemory) SaveRequest(ctx context.Context, req internal.RewriteRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	return nil
}

func (m *fakeMemory) SaveResult(ctx context.Context, requestID string, batchIndex int, serviceName, refinedText string, latencyMs int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results++
	return nil
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestDerivedOutputPath(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"report.docx", "report_edited.docx"},
		{"/tmp/docs/report.docx", "/tmp/docs/report_edited.docx"},
		{"notes.txt", "notes_edited.txt"},
		{"noext", "noext_edited"},
	}
	for _, c := range cases {
		if got := DerivedOutputPath(c.in); got != c.want {
			t.Errorf("DerivedOutputPath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestProcess_SingleParagraph(t *testing.T) {
	input := writeInput(t, "in.txt", "Hello world.")
	output := filepath.Join(filepath.Dir(input), "out.txt")

	svc := &fakeService{answer: func(text string) (string, error) {
		if !strings.Contains(text, "Hello world.") {
			t.Errorf("unexpected request text %q", text)
		}
		return "Greetings, world.", nil
	}}
	orch := New(Options{Service: svc, Config: rewriter.Config{MaxTokens: 2000}, OutPath: output})

	report, err := orch.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Output != output {
		t.Errorf("expected output %q, got %q", output, report.Output)
	}
	if got := readFile(t, output); got != "Greetings, world." {
		t.Errorf("expected exact refined content, got %q", got)
	}
	if report.UnitsRefined != 1 || report.BatchesFailed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	// Input is never modified.
	if got := readFile(t, input); got != "Hello world." {
		t.Errorf("input file was modified: %q", got)
	}
}

func TestProcess_DerivesOutputPath(t *testing.T) {
	input := writeInput(t, "notes.txt", "Hello world.")

	svc := &fakeService{}
	orch := New(Options{Service: svc, Config: rewriter.Config{MaxTokens: 2000}})

	report, err := orch.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(filepath.Dir(input), "notes_edited.txt")
	if report.Output != want {
		t.Errorf("expected derived output %q, got %q", want, report.Output)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("derived output missing: %v", err)
	}
}

func TestProcess_FailedBatchKeepsOriginal(t *testing.T) {
	// Three 9-byte paragraphs, 3 estimated tokens each; a 3-token budget
	// puts each paragraph in its own batch.
	input := writeInput(t, "in.txt", "Para one.\n\nPara two.\n\nPara three.")
	output := filepath.Join(filepath.Dir(input), "out.txt")

	svc := &fakeService{answer: func(text string) (string, error) {
		if text == "Para two." {
			return "", rewriter.ErrUnreachable
		}
		return "refined " + text, nil
	}}
	orch := New(Options{Service: svc, Config: rewriter.Config{MaxTokens: 3}, OutPath: output})

	report, err := orch.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.BatchesTotal != 3 {
		t.Fatalf("expected 3 batches, got %d", report.BatchesTotal)
	}
	if report.BatchesFailed != 1 {
		t.Errorf("expected 1 failed batch, got %d", report.BatchesFailed)
	}
	if report.UnitsRefined != 2 {
		t.Errorf("expected 2 refined units, got %d", report.UnitsRefined)
	}

	got := readFile(t, output)
	if !strings.Contains(got, "refined Para one.") || !strings.Contains(got, "refined Para three.") {
		t.Errorf("expected surrounding paragraphs refined, got %q", got)
	}
	if !strings.Contains(got, "Para two.") || strings.Contains(got, "refined Para two.") {
		t.Errorf("expected failed paragraph kept verbatim, got %q", got)
	}

	if len(report.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(report.Warnings))
	}
	w := report.Warnings[0]
	if w.Kind != PartialFailure || w.BatchIndex != 1 {
		t.Errorf("unexpected warning: %+v", w)
	}
}

// writeDocxInput builds a minimal .docx with one paragraph per text.
func writeDocxInput(t *testing.T, dir, name string, paragraphs []string) string {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:pPr><w:pStyle w:val="Normal"/></w:pPr><w:r><w:t>`)
		body.WriteString(p)
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	documentXML := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body.String() + `<w:sectPr/></w:body></w:document>`
	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for _, entry := range []struct{ name, content string }{
		{"word/document.xml", documentXML},
		{"word/_rels/document.xml.rels", rels},
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

func TestProcess_DocxFailedBatchKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	input := writeDocxInput(t, dir, "report.docx", []string{"Para one.", "Para two.", "Para three."})

	svc := &fakeService{answer: func(text string) (string, error) {
		if text == "Para two." {
			return "", rewriter.ErrUnreachable
		}
		return "refined " + text, nil
	}}
	orch := New(Options{
		Service:            svc,
		Config:             rewriter.Config{MaxTokens: 3},
		PreserveFormatting: true,
	})

	report, err := orch.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.BatchesTotal != 3 || report.BatchesFailed != 1 {
		t.Fatalf("unexpected batch counts: %+v", report)
	}
	if len(report.Warnings) != 1 || report.Warnings[0].Kind != PartialFailure || report.Warnings[0].BatchIndex != 1 {
		t.Errorf("unexpected warnings: %+v", report.Warnings)
	}

	outPath := filepath.Join(dir, "report_edited.docx")
	if report.Output != outPath {
		t.Errorf("expected output %q, got %q", outPath, report.Output)
	}
	doc, err := document.Load(outPath)
	if err != nil {
		t.Fatalf("saved docx is not loadable: %v", err)
	}
	defer doc.Close()
	units := doc.Units()
	want := []string{"refined Para one.", "Para two.", "refined Para three."}
	if len(units) != len(want) {
		t.Fatalf("expected %d units, got %d", len(want), len(units))
	}
	for i, w := range want {
		if units[i].Text != w {
			t.Errorf("unit %d: expected %q, got %q", i, w, units[i].Text)
		}
	}
}

func TestProcess_AllBatchesFailedIsError(t *testing.T) {
	input := writeInput(t, "in.txt", "Para one.\n\nPara two.")
	svc := &fakeService{answer: func(string) (string, error) {
		return "", rewriter.ErrUnreachable
	}}
	orch := New(Options{Service: svc, Config: rewriter.Config{MaxTokens: 3}, OutPath: filepath.Join(t.TempDir(), "out.txt")})

	report, err := orch.Process(context.Background(), input)
	if err == nil {
		t.Fatal("expected error when every batch fails")
	}
	if report == nil || report.BatchesFailed != report.BatchesTotal {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestProcess_ReassemblyMismatch(t *testing.T) {
	input := writeInput(t, "in.txt", "Alpha beta gamma delta.\n\nEpsilon zeta.")
	output := filepath.Join(filepath.Dir(input), "out.txt")

	// Both paragraphs fit one batch; the model merges them into a single
	// paragraph, forcing proportional redistribution.
	svc := &fakeService{answer: func(string) (string, error) {
		return "One merged answer with exactly eight whole words.", nil
	}}
	orch := New(Options{Service: svc, Config: rewriter.Config{MaxTokens: 2000}, OutPath: output})

	report, err := orch.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var found bool
	for _, w := range report.Warnings {
		if w.Kind == PartialReassembly {
			found = true
		}
	}
	if !found {
		t.Errorf("expected PartialReassembly warning, got %+v", report.Warnings)
	}

	got := readFile(t, output)
	paras := strings.Split(got, "\n\n")
	if len(paras) != 2 {
		t.Fatalf("expected 2 paragraphs in output, got %d: %q", len(paras), got)
	}
	for i, p := range paras {
		if strings.TrimSpace(p) == "" {
			t.Errorf("paragraph %d is empty", i)
		}
	}
	joined := strings.Join(strings.Fields(got), " ")
	if joined != "One merged answer with exactly eight whole words." {
		t.Errorf("redistribution lost or duplicated words: %q", joined)
	}
}

func TestProcess_Cancelled(t *testing.T) {
	input := writeInput(t, "in.txt", "Para one.\n\nPara two.")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &fakeService{}
	orch := New(Options{Service: svc, Config: rewriter.Config{MaxTokens: 3}, OutPath: filepath.Join(t.TempDir(), "out.txt")})

	_, err := orch.Process(ctx, input)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if svc.callCount() != 0 {
		t.Errorf("expected no requests after cancellation, got %d", svc.callCount())
	}
}

func TestProcess_MemoryCacheHit(t *testing.T) {
	input := writeInput(t, "in.txt", "Hello world.")
	output := filepath.Join(filepath.Dir(input), "out.txt")

	mem := newFakeMemory()
	mem.cache["Hello world."] = "Cached greeting."

	svc := &fakeService{}
	orch := New(Options{
		Service: svc,
		Config:  rewriter.Config{MaxTokens: 2000},
		Memory:  mem,
		OutPath: output,
	})

	if _, err := orch.Process(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.callCount() != 0 {
		t.Errorf("expected cache hit to skip the service, got %d calls", svc.callCount())
	}
	if got := readFile(t, output); got != "Cached greeting." {
		t.Errorf("expected cached text in output, got %q", got)
	}
}

func TestProcess_MemoryRecordsRun(t *testing.T) {
	input := writeInput(t, "in.txt", "Hello world.")
	mem := newFakeMemory()
	svc := &fakeService{}
	orch := New(Options{
		Service: svc,
		Config:  rewriter.Config{MaxTokens: 2000},
		Memory:  mem,
		OutPath: filepath.Join(t.TempDir(), "out.txt"),
	})

	if _, err := orch.Process(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mem.requests != 1 {
		t.Errorf("expected 1 request record, got %d", mem.requests)
	}
	if mem.results != 1 {
		t.Errorf("expected 1 result record, got %d", mem.results)
	}
	if mem.saves != 1 {
		t.Errorf("expected 1 memory save, got %d", mem.saves)
	}
}

func TestProcess_ProgressPerBatch(t *testing.T) {
	input := writeInput(t, "in.txt", "Para one.\n\nPara two.\n\nPara three.")
	var events []int
	svc := &fakeService{}
	orch := New(Options{
		Service: svc,
		Config:  rewriter.Config{MaxTokens: 3},
		OutPath: filepath.Join(t.TempDir(), "out.txt"),
		Progress: func(current, total int, message string) {
			if total != 3 {
				t.Errorf("expected total 3, got %d", total)
			}
			events = append(events, current)
		},
	})

	if _, err := orch.Process(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 || events[0] != 1 || events[2] != 3 {
		t.Errorf("unexpected progress events: %v", events)
	}
}

func TestProcessAll_FileIsolation(t *testing.T) {
	dir := t.TempDir()
	good1 := filepath.Join(dir, "one.txt")
	missing := filepath.Join(dir, "missing.txt")
	good2 := filepath.Join(dir, "two.txt")
	os.WriteFile(good1, []byte("First file."), 0o644)
	os.WriteFile(good2, []byte("Second file."), 0o644)

	svc := &fakeService{}
	orch := New(Options{Service: svc, Config: rewriter.Config{MaxTokens: 2000}})

	outcomes := orch.ProcessAll(context.Background(), []string{good1, missing, good2}, 1)
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil {
		t.Errorf("file 1 failed: %v", outcomes[0].Err)
	}
	if outcomes[1].Err == nil {
		t.Error("expected error for missing file")
	}
	if outcomes[2].Err != nil {
		t.Errorf("file 3 failed: %v", outcomes[2].Err)
	}
	if outcomes[0].Path != good1 || outcomes[2].Path != good2 {
		t.Error("outcomes out of input order")
	}
	if _, err := os.Stat(filepath.Join(dir, "one_edited.txt")); err != nil {
		t.Errorf("expected derived output for file 1: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "two_edited.txt")); err != nil {
		t.Errorf("expected derived output for file 3: %v", err)
	}
}

func TestProcessAll_Workers(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		p := filepath.Join(dir, name)
		os.WriteFile(p, []byte("Text in "+name), 0o644)
		paths = append(paths, p)
	}

	svc := &fakeService{}
	orch := New(Options{Service: svc, Config: rewriter.Config{MaxTokens: 2000}})

	outcomes := orch.ProcessAll(context.Background(), paths, 3)
	if len(outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(outcomes))
	}
	for i, oc := range outcomes {
		if oc.Err != nil {
			t.Errorf("file %d failed: %v", i, oc.Err)
		}
		if oc.Path != paths[i] {
			t.Errorf("outcome %d has path %q, want %q", i, oc.Path, paths[i])
		}
	}
}

func TestProcessAll_CancelledSkipsRemaining(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	os.WriteFile(p, []byte("Text."), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &fakeService{}
	orch := New(Options{Service: svc, Config: rewriter.Config{MaxTokens: 2000}})

	outcomes := orch.ProcessAll(ctx, []string{p, p}, 1)
	for i, oc := range outcomes {
		if !errors.Is(oc.Err, context.Canceled) {
			t.Errorf("outcome %d: expected context.Canceled, got %v", i, oc.Err)
		}
	}
}

func TestReassemble(t *testing.T) {
	t.Run("single original takes whole text", func(t *testing.T) {
		parts, exact, kept := reassemble("  Refined.  ", []string{"Original."})
		if !exact || kept != 0 || len(parts) != 1 || parts[0] != "Refined." {
			t.Errorf("got parts=%v exact=%v kept=%d", parts, exact, kept)
		}
	})

	t.Run("matching counts map one to one", func(t *testing.T) {
		parts, exact, _ := reassemble("New one.\n\nNew two.", []string{"Old one.", "Old two."})
		if !exact {
			t.Error("expected exact mapping")
		}
		if parts[0] != "New one." || parts[1] != "New two." {
			t.Errorf("unexpected parts: %v", parts)
		}
	})

	t.Run("extra blank lines still match", func(t *testing.T) {
		parts, exact, _ := reassemble("New one.\n\n\n\nNew two.", []string{"a", "b"})
		if !exact || len(parts) != 2 {
			t.Errorf("got parts=%v exact=%v", parts, exact)
		}
	})

	t.Run("mismatch redistributes proportionally", func(t *testing.T) {
		originals := []string{
			"This original paragraph is quite long compared to the next one.",
			"Short.",
		}
		parts, exact, kept := reassemble("one two three four five six seven eight nine ten", originals)
		if exact {
			t.Error("expected inexact mapping")
		}
		if kept != 0 {
			t.Errorf("expected no units falling back, got %d", kept)
		}
		if len(parts) != 2 {
			t.Fatalf("expected 2 parts, got %d", len(parts))
		}
		for i, p := range parts {
			if p == "" {
				t.Errorf("part %d is empty", i)
			}
		}
		if len(strings.Fields(parts[0])) <= len(strings.Fields(parts[1])) {
			t.Errorf("expected longer original to take more words: %v", parts)
		}
		joined := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
		if joined != "one two three four five six seven eight nine ten" {
			t.Errorf("words lost or duplicated: %q", joined)
		}
	})

	t.Run("fewer words than units keeps trailing originals", func(t *testing.T) {
		originals := []string{"First original.", "Second original.", "Third original."}
		parts, exact, kept := reassemble("Okay sure", originals)
		if exact {
			t.Error("expected inexact mapping")
		}
		if len(parts) != 3 {
			t.Fatalf("expected 3 parts, got %d", len(parts))
		}
		for i, p := range parts {
			if p == "" {
				t.Errorf("part %d was blanked", i)
			}
		}
		if parts[2] != "Third original." {
			t.Errorf("expected trailing unit to keep its original text, got %q", parts[2])
		}
		if kept < 1 {
			t.Errorf("expected at least 1 kept unit, got %d", kept)
		}
	})

	t.Run("empty refined keeps originals", func(t *testing.T) {
		originals := []string{"Keep one.", "Keep two."}
		parts, exact, kept := reassemble("   \n\n  ", originals)
		if exact {
			t.Error("expected inexact mapping")
		}
		if kept != 2 {
			t.Errorf("expected both units kept, got %d", kept)
		}
		if parts[0] != "Keep one." || parts[1] != "Keep two." {
			t.Errorf("expected originals kept, got %v", parts)
		}
	})
}

func TestCountParagraphs(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"one", 1},
		{"one\n\ntwo", 2},
		{"one\n\n\n\ntwo\n\nthree", 3},
		{"one\n \ntwo", 2},
	}
	for _, c := range cases {
		if got := countParagraphs(c.in); got != c.want {
			t.Errorf("countParagraphs(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	outcomes := []FileOutcome{
		{Path: "a", Report: &FileReport{BatchesFailed: 0}},
		{Path: "b", Err: errors.New("boom")},
		{Path: "c", Report: &FileReport{BatchesFailed: 2}},
	}
	s := Summarize(outcomes)
	if s.FilesProcessed != 2 {
		t.Errorf("expected 2 processed, got %d", s.FilesProcessed)
	}
	if s.FilesFailed != 1 {
		t.Errorf("expected 1 failed, got %d", s.FilesFailed)
	}
	if s.BatchesSkipped != 2 {
		t.Errorf("expected 2 skipped batches, got %d", s.BatchesSkipped)
	}
}
