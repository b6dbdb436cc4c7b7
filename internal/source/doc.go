// Package source provides filesystem access for the pipeline: recursive
// enumeration of source files by suffix, and whole-file read/write with
// atomic replacement.
package source
