// Package fsutil provides the small set of file-system helpers the pipeline
// relies on: existence checks, canonical paths and directory creation. All
// helpers are total; on failure they return an error without leaving partial
// state behind.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Exists reports whether the given path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Canonical returns the absolute, symlink-resolved form of path with forward
// slashes, suitable for use as a stable map key across the run.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The path may not exist yet; fall back to the absolute form.
		if os.IsNotExist(err) {
			return filepath.ToSlash(abs), nil
		}
		return "", fmt.Errorf("failed to canonicalize path %s: %w", path, err)
	}
	return filepath.ToSlash(resolved), nil
}

// EnsureDir creates the directory and any missing parents.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// WriteFileAtomic writes data to path through a temporary file in the same
// directory followed by a rename, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// FindFile searches the given directories for a file with the exact name.
// Exactly one match is expected: zero matches return ("", nil), more than one
// is an error naming the first two conflicting locations.
func FindFile(searchDirs []string, name string) (string, error) {
	var found string
	for _, dir := range searchDirs {
		candidate := filepath.Join(dir, name)
		if !Exists(candidate) {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("multiple %s files were found: %s, %s", name, found, candidate)
		}
		found = candidate
	}
	if found == "" {
		return "", nil
	}
	return Canonical(found)
}
