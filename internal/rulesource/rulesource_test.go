package rulesource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTempPatternFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestFileLoaderParsesEntries(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPatternFile(t, dir, "a.json", `{"patterns":[{"key":"he","value":1},{"key":"she","value":2}]}`)

	loader := NewFileLoader(path)
	entries, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Key != "he" {
		t.Fatalf("expected first entry key 'he', got %q", entries[0].Key)
	}
}

func TestFileLoaderMissingFile(t *testing.T) {
	loader := NewFileLoader(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestDirectoryLoaderMergesFiles(t *testing.T) {
	dir := t.TempDir()
	writeTempPatternFile(t, dir, "a.json", `{"patterns":[{"key":"he","value":1}]}`)
	writeTempPatternFile(t, dir, "b.json", `{"patterns":[{"key":"she","value":2}]}`)
	writeTempPatternFile(t, dir, "ignored.txt", `not json`)

	loader := NewDirectoryLoader(dir)
	entries, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 merged entries, got %d", len(entries))
	}
}

func TestDirectoryLoaderEmptyIsError(t *testing.T) {
	loader := NewDirectoryLoader(t.TempDir())
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatalf("expected an error for an empty directory")
	}
}
