package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// defaultFileMode is used when the destination file does not exist yet.
// Pipeline writes always target existing enumerated files, so this only
// matters for callers using WriteFile directly.
const defaultFileMode fs.FileMode = 0600

// ReadFile reads the entire UTF-8 text content of a file.
// Stages call this fresh at the start of each per-file operation, so a
// stage always sees the previous stage's writes.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Paths come from the user's own project tree
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteFile replaces the file at path with content, byte for byte.
//
// The write goes to a temporary file in the destination directory
// followed by a rename, so a crash mid-write leaves either the old or
// the new content, never a truncated file. The original file's mode is
// preserved when it exists. Rename is atomic on POSIX filesystems
// because the temp file lives in the same directory.
func WriteFile(path, content string) error {
	dir := filepath.Dir(path)

	mode := defaultFileMode
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	// Remove the temp file on any failure past this point.
	cleanup := func() {
		_ = tmp.Close()           //nolint:errcheck // Best effort cleanup
		_ = os.Remove(tmpName)    //nolint:errcheck // Best effort cleanup
	}

	if _, err := tmp.WriteString(content); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return fmt.Errorf("failed to set mode on %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
