// Package config loads application configuration and ignore files from disk.
package config

import (
	"fmt"
	"os"

	"github.com/unveilai/unveil/internal/ignore"
	"github.com/unveilai/unveil/internal/utils"
)

// LoadIgnoreFilePatterns reads an ignore file from disk and returns its
// patterns. A missing file yields no patterns and no error.
//
// #nosec G304
func LoadIgnoreFilePatterns(ignoreFilePath string) ([]string, error) {
	if ignoreFilePath == "" {
		return nil, nil
	}
	fileHandle, openFileError := os.Open(ignoreFilePath)
	if openFileError != nil {
		if os.IsNotExist(openFileError) {
			return nil, nil
		}
		return nil, openFileError
	}
	defer func() {
		closeError := fileHandle.Close()
		if closeError != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close %s: %v\n", ignoreFilePath, closeError)
		}
	}()

	patterns, parseError := ignore.ParsePatterns(fileHandle)
	if parseError != nil {
		return nil, fmt.Errorf("parse %s: %w", ignoreFilePath, parseError)
	}
	return patterns, nil
}

// ExcludePatterns returns the configured exclude patterns followed by the
// patterns of the configured ignore file.
func (config IngestConfiguration) ExcludePatterns() ([]string, error) {
	filePatterns, loadError := LoadIgnoreFilePatterns(config.IgnoreFile)
	if loadError != nil {
		return nil, fmt.Errorf("loading ignore file %s: %w", config.IgnoreFile, loadError)
	}
	combined := append(append([]string{}, config.Exclude...), filePatterns...)
	return utils.DeduplicatePatterns(combined), nil
}
