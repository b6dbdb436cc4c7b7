package source

import (
	"fmt"
	"strings"

	"github.com/karrick/godirwalk"
)

// Enumerate walks the directory tree rooted at root and returns every
// regular file whose name ends with one of the given suffixes, in
// traversal order (lexical within each directory).
//
// The returned list is the pipeline's file set: it is produced exactly
// once per run and passed by value through every stage, so files created
// or renamed after enumeration are invisible to the run.
//
// No filtering of hidden directories or symlink handling is performed.
// Any traversal error (unreadable directory, vanished entry) aborts the
// walk and is returned; partial results are discarded.
func Enumerate(root string, suffixes []string) ([]string, error) {
	var files []string

	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if !de.IsRegular() {
				return nil
			}
			if matchesSuffix(osPathname, suffixes) {
				files = append(files, osPathname)
			}
			return nil
		},
		// Sorted traversal keeps run output and reports deterministic.
		Unsorted: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", root, err)
	}

	return files, nil
}

// matchesSuffix reports whether the path ends with any of the suffixes.
func matchesSuffix(path string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if suffix != "" && strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
