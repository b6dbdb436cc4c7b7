package source

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// writeTree creates a file with parent directories under root.
func writeTree(t *testing.T, root, rel, content string) string {
	t.Helper()

	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestEnumerate tests recursive enumeration with suffix filtering.
func TestEnumerate(t *testing.T) {
	t.Parallel()

	t.Run("returns exactly the matching files", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		a := writeTree(t, root, "a.go", "package a")
		b := writeTree(t, root, "sub/b.go", "package sub")
		writeTree(t, root, "README.md", "# readme")
		writeTree(t, root, "sub/notes.txt", "notes")

		got, err := Enumerate(root, []string{".go"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{a, b}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("multiple suffixes", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeTree(t, root, "m.go", "")
		writeTree(t, root, "s.py", "")
		writeTree(t, root, "x.rs", "")

		got, err := Enumerate(root, []string{".go", ".py"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 files, got %v", got)
		}
	})

	t.Run("does not skip hidden directories", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		hidden := writeTree(t, root, ".vendor/h.go", "package h")

		got, err := Enumerate(root, []string{".go"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0] != hidden {
			t.Errorf("expected hidden dir traversed, got %v", got)
		}
	})

	t.Run("empty tree yields empty list", func(t *testing.T) {
		t.Parallel()

		got, err := Enumerate(t.TempDir(), []string{".go"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no files, got %v", got)
		}
	})

	t.Run("missing root is an error", func(t *testing.T) {
		t.Parallel()

		_, err := Enumerate(filepath.Join(t.TempDir(), "missing"), []string{".go"})
		if err == nil {
			t.Error("expected error for missing root")
		}
	})
}

// TestReadFile tests whole-file reads.
func TestReadFile(t *testing.T) {
	t.Parallel()

	t.Run("reads content", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		path := writeTree(t, root, "f.go", "package f\n")

		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "package f\n" {
			t.Errorf("unexpected content: %q", got)
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		t.Parallel()

		if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.go")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

// TestWriteFile tests the atomic write-through contract.
func TestWriteFile(t *testing.T) {
	t.Parallel()

	t.Run("replaces content byte for byte", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		path := writeTree(t, root, "f.go", "old content")

		reply := "package f\n\nfunc New() {}\n"
		if err := WriteFile(path, reply); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != reply {
			t.Errorf("expected %q, got %q", reply, got)
		}
	})

	t.Run("preserves file mode", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		path := filepath.Join(root, "script.go")
		if err := os.WriteFile(path, []byte("x"), 0640); err != nil {
			t.Fatal(err)
		}

		if err := WriteFile(path, "y"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0640 {
			t.Errorf("expected mode 0640 preserved, got %v", info.Mode().Perm())
		}
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		path := writeTree(t, root, "f.go", "old")

		if err := WriteFile(path, "new"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.Contains(e.Name(), ".tmp-") {
				t.Errorf("temp file left behind: %s", e.Name())
			}
		}
	})
}
