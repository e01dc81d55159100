package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "present.yml")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if !Exists(file) {
		t.Errorf("expected %s to exist", file)
	}
	if Exists(filepath.Join(dir, "absent.yml")) {
		t.Errorf("expected absent file to not exist")
	}
}

func TestCanonicalMissingPath(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "not", "yet", "created")

	got, err := Canonical(missing)
	if err != nil {
		t.Fatalf("Canonical returned error for missing path: %v", err)
	}
	if !filepath.IsAbs(filepath.FromSlash(got)) {
		t.Errorf("expected absolute path, got %s", got)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")

	if err := EnsureDir(nested); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	info, err := os.Stat(nested)
	if err != nil || !info.IsDir() {
		t.Errorf("expected directory at %s", nested)
	}

	// Creating an existing directory is not an error.
	if err := EnsureDir(nested); err != nil {
		t.Errorf("EnsureDir on existing directory failed: %v", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yml")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	// Overwrite replaces the content in place.
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "second" {
		t.Errorf("content = %q, err = %v", data, err)
	}

	// No stray temp files remain.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestFindFile(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()

	// No match anywhere.
	got, err := FindFile([]string{dirA, dirB}, "defaults.yml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty result, got %s", got)
	}

	// Single match.
	if err := os.WriteFile(filepath.Join(dirA, "defaults.yml"), []byte("defaults:\n"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	got, err = FindFile([]string{dirA, dirB}, "defaults.yml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == "" {
		t.Errorf("expected a match in %s", dirA)
	}

	// Conflicting matches.
	if err := os.WriteFile(filepath.Join(dirB, "defaults.yml"), []byte("defaults:\n"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := FindFile([]string{dirA, dirB}, "defaults.yml"); err == nil {
		t.Errorf("expected error for multiple matches")
	}
}
