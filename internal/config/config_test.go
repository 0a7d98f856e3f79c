package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeTestFile creates a file with the specified content, failing the test on error.
func writeTestFile(testingHandle *testing.T, filePath string, content string) {
	testingHandle.Helper()
	if writeError := os.WriteFile(filePath, []byte(content), 0o644); writeError != nil {
		testingHandle.Fatalf("failed to write %s: %v", filePath, writeError)
	}
}

// TestLoadIgnoreFilePatterns verifies comment and blank line handling.
func TestLoadIgnoreFilePatterns(testingHandle *testing.T) {
	ignoreFilePath := filepath.Join(testingHandle.TempDir(), "extra.ignore")
	writeTestFile(testingHandle, ignoreFilePath, "# generated\n\ncoverage/\n  *.snap  \n")

	patternList, loadError := LoadIgnoreFilePatterns(ignoreFilePath)
	if loadError != nil {
		testingHandle.Fatalf("LoadIgnoreFilePatterns failed: %v", loadError)
	}
	expectedPatterns := []string{"coverage/", "*.snap"}
	if !reflect.DeepEqual(patternList, expectedPatterns) {
		testingHandle.Fatalf("unexpected patterns: got %v want %v", patternList, expectedPatterns)
	}
}

// TestLoadIgnoreFilePatternsMissingFile verifies that a missing file is not an error.
func TestLoadIgnoreFilePatternsMissingFile(testingHandle *testing.T) {
	patternList, loadError := LoadIgnoreFilePatterns(filepath.Join(testingHandle.TempDir(), "absent"))
	if loadError != nil || patternList != nil {
		testingHandle.Fatalf("expected no patterns and no error, got %v, %v", patternList, loadError)
	}
	patternList, loadError = LoadIgnoreFilePatterns("")
	if loadError != nil || patternList != nil {
		testingHandle.Fatalf("expected no patterns for an empty path, got %v, %v", patternList, loadError)
	}
}

// TestIngestExcludePatterns verifies that file patterns follow configured ones without duplicates.
func TestIngestExcludePatterns(testingHandle *testing.T) {
	ignoreFilePath := filepath.Join(testingHandle.TempDir(), "extra.ignore")
	writeTestFile(testingHandle, ignoreFilePath, "dist/\nfixtures/\n")

	configuration := IngestConfiguration{Exclude: []string{"dist/", "*.tmp"}, IgnoreFile: ignoreFilePath}
	patternList, loadError := configuration.ExcludePatterns()
	if loadError != nil {
		testingHandle.Fatalf("ExcludePatterns failed: %v", loadError)
	}
	expectedPatterns := []string{"dist/", "*.tmp", "fixtures/"}
	if !reflect.DeepEqual(patternList, expectedPatterns) {
		testingHandle.Fatalf("unexpected patterns: got %v want %v", patternList, expectedPatterns)
	}

	directoryConfiguration := IngestConfiguration{IgnoreFile: testingHandle.TempDir()}
	if _, loadError := directoryConfiguration.ExcludePatterns(); loadError == nil {
		testingHandle.Fatalf("expected an error when the ignore file is a directory")
	}
}
