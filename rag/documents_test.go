package rag

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()

	vacation := "Vacation accrues monthly.\n\nUnused days carry over one year.\n"
	if err := os.WriteFile(filepath.Join(dir, "vacation.md"), []byte(vacation), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("Expenses need receipts."), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	// Ignored: wrong extension.
	if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte(`{"k":"v"}`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	chunks, err := LoadDocuments(dir)
	if err != nil {
		t.Fatalf("LoadDocuments failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	bySource := map[string]int{}
	for _, c := range chunks {
		bySource[c.Source]++
		if c.Text == "" {
			t.Fatalf("empty chunk text")
		}
	}
	if bySource["vacation.md"] != 2 || bySource["notes.txt"] != 1 {
		t.Fatalf("unexpected chunk distribution: %v", bySource)
	}
}

func TestLoadDocumentsMissingDir(t *testing.T) {
	chunks, err := LoadDocuments(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("expected no error for missing dir, got %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}
