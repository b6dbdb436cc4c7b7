// Package config provides configuration structures and utilities for codelift.
// It defines the main configuration options for the refactor pipeline,
// generation client settings, and report generation preferences.
package config
