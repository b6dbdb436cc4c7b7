// Package main provides the entry point for the codelift CLI.
//
// codelift is an AI-assisted refactoring tool. It processes every source
// file in a project directory through four stages: analysis, refactoring,
// documentation, and review. The refactor and documentation stages rewrite
// files in place, so run it only on projects under version control.
//
// Usage:
//
//	codelift run <project-dir>
//	codelift run --ext .py --model gpt-4.1 <project-dir>
//
// See --help for all available options.
package main

// main is the entry point for codelift.
func main() {
	Execute()
}
