package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Default {
		t.Error("expected embedded default prompt")
	}
}

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "no-such-prompt.txt"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Default {
		t.Error("expected embedded default prompt for missing file")
	}
}

func TestLoad_FileContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "humanizer.txt")
	if err := os.WriteFile(path, []byte("Custom prompt here.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Custom prompt here." {
		t.Errorf("expected trimmed file contents, got %q", got)
	}
}

func TestLoad_EmptyFileReturnsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "humanizer.txt")
	if err := os.WriteFile(path, []byte("  \n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Default {
		t.Error("expected default prompt for blank file")
	}
}

func TestWithTone(t *testing.T) {
	base := "Base prompt."

	if got := WithTone(base, ""); got != base {
		t.Errorf("expected base prompt unchanged, got %q", got)
	}
	if got := WithTone(base, "  "); got != base {
		t.Errorf("expected base prompt unchanged for blank tone, got %q", got)
	}

	got := WithTone(base, "formal")
	if !strings.HasPrefix(got, base) {
		t.Errorf("expected tone appended to base, got %q", got)
	}
	if !strings.Contains(got, "formal") {
		t.Errorf("expected tone in directive, got %q", got)
	}
}

func TestDefaultPromptShape(t *testing.T) {
	if !strings.Contains(Default, "human") {
		t.Error("default prompt should describe humanizing")
	}
	if !strings.Contains(Default, "same meaning") {
		t.Error("default prompt should require meaning preservation")
	}
}
