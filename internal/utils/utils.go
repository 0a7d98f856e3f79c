// Package utils contains general helper functions used across the unveil tool.
package utils

import (
	"strings"
)

// Repository layout constants used across the project.
const (
	// GitIgnoreFileName is the name of the Git ignore file.
	GitIgnoreFileName = ".gitignore"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
	// NodeModulesDirectoryName is the name of the npm dependency directory.
	NodeModulesDirectoryName = "node_modules"
	// ConfigFileName is the name of the local configuration file.
	ConfigFileName = ".unveil.yaml"
	// GlobalConfigFileName is the name of the configuration file inside GlobalConfigDirectoryName.
	GlobalConfigFileName = "config.yaml"
	// GlobalConfigDirectoryName is the directory under the home directory holding global configuration.
	GlobalConfigDirectoryName = ".unveil"
	// ApplicationName is used for cache directories and user agents.
	ApplicationName = "unveil"
)

// PathSeparator separates segments of every repository path handled by unveil.
const PathSeparator = "/"

// DeduplicatePatterns removes duplicate patterns from a slice while preserving order.
// The first occurrence of each unique pattern is kept.
func DeduplicatePatterns(patterns []string) []string {
	encounteredPatterns := make(map[string]struct{})
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, exists := encounteredPatterns[pattern]; !exists {
			encounteredPatterns[pattern] = struct{}{}
			result = append(result, pattern)
		}
	}
	return result
}

// ContainsString checks if a slice of strings contains a specific target string.
func ContainsString(stringSlice []string, targetString string) bool {
	for _, currentString := range stringSlice {
		if currentString == targetString {
			return true
		}
	}
	return false
}

// NormalizeSlashes converts backslashes to forward slashes.
func NormalizeSlashes(path string) string {
	return strings.ReplaceAll(path, "\\", PathSeparator)
}

// SplitPath splits a slash separated path into its segments.
func SplitPath(path string) []string {
	return strings.Split(NormalizeSlashes(path), PathSeparator)
}

// JoinPath joins a parent path and a child name. An empty parent yields the name.
func JoinPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + PathSeparator + name
}

// IsNestedUnder reports whether path equals prefix or lies below it.
func IsNestedUnder(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+PathSeparator)
}
