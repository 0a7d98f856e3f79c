// Package ignore resolves the ignore patterns of an ingested repository and
// decides which paths are excluded from its tree.
//
// Matching is a deliberate approximation of ignore-file syntax: negation
// (!pattern) is not supported and patterns are not anchored to the directory
// of the ignore file. Every pattern only ever removes paths.
package ignore

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/unveilai/unveil/internal/source"
	"github.com/unveilai/unveil/internal/utils"
)

const (
	commentPrefix         = "#"
	extensionPrefix       = "*."
	recursivePrefix       = "**/"
	recursiveSuffix       = "/**"
	globMetacharacters    = "*?["
	errorReadIgnoreFormat = "read %s: %w"
	errorScanIgnoreFormat = "parse %s: %w"
)

var defaultPatterns = []string{
	utils.NodeModulesDirectoryName,
	utils.GitDirectoryName,
	".DS_Store",
	"*.log",
	".env",
	".env.local",
	".env.development",
	".env.test",
	".env.production",
	"dist",
	"build",
	"coverage",
	".next",
	".cache",
	".idea",
	".vscode",
	"*.min.js",
	"*.min.css",
	"*.lock",
	"package-lock.json",
	"yarn.lock",
	"npm-debug.log*",
	"yarn-debug.log*",
	"yarn-error.log*",
	"*.tsbuildinfo",
	"*.swp",
	"*.bak",
	"*.tmp",
}

// alwaysIgnoredDirectories are excluded even when the pattern list omits them.
// They match as a whole segment at any depth, so web/node_modules/x.js is
// excluded as well as node_modules/x.js.
var alwaysIgnoredDirectories = []string{utils.NodeModulesDirectoryName, utils.GitDirectoryName}

// DefaultPatterns returns a fresh copy of the baseline ignore list.
func DefaultPatterns() []string {
	return append([]string(nil), defaultPatterns...)
}

// ParsePatterns reads ignore lines from reader. Lines are trimmed; empty lines
// and comments are dropped.
func ParsePatterns(reader io.Reader) ([]string, error) {
	var patterns []string
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
			continue
		}
		patterns = append(patterns, trimmedLine)
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return patterns, nil
}

// FindIgnoreFile returns the entry located at <root>/.gitignore.
func FindIgnoreFile(set source.Set) (source.Entry, bool) {
	for _, entry := range set.Entries {
		segments := utils.SplitPath(entry.Path)
		if len(segments) == 2 && segments[0] != "" && segments[1] == utils.GitIgnoreFileName {
			return entry, true
		}
	}
	return source.Entry{}, false
}

// ResolvePatterns returns the default patterns followed by the custom patterns
// of the repository's root ignore file, when there is one.
func ResolvePatterns(ctx context.Context, set source.Set) ([]string, error) {
	patterns := DefaultPatterns()
	ignoreEntry, found := FindIgnoreFile(set)
	if !found {
		return patterns, nil
	}
	rawContent, readError := ignoreEntry.Reader.ReadContent(ctx)
	if readError != nil {
		return nil, fmt.Errorf(errorReadIgnoreFormat, ignoreEntry.Path, readError)
	}
	customPatterns, parseError := ParsePatterns(strings.NewReader(string(rawContent)))
	if parseError != nil {
		return nil, fmt.Errorf(errorScanIgnoreFormat, ignoreEntry.Path, parseError)
	}
	return append(patterns, customPatterns...), nil
}

// ShouldIgnore reports whether a root-relative path is excluded by patterns.
// The first matching pattern wins.
func ShouldIgnore(candidatePath string, patterns []string) bool {
	normalizedPath := strings.TrimPrefix(utils.NormalizeSlashes(candidatePath), utils.PathSeparator)
	if normalizedPath == "" {
		return false
	}
	segments := strings.Split(normalizedPath, utils.PathSeparator)
	for _, directoryName := range alwaysIgnoredDirectories {
		if utils.ContainsString(segments, directoryName) {
			return true
		}
	}
	for _, pattern := range patterns {
		if patternMatches(normalizedPath, segments, pattern) {
			return true
		}
	}
	return false
}

// patternMatches applies every rule of one pattern. The rules only add
// matches: a pattern in one of the special forms still falls through to the
// substring test.
func patternMatches(normalizedPath string, segments []string, pattern string) bool {
	unrootedPattern := strings.TrimPrefix(strings.TrimSpace(pattern), utils.PathSeparator)
	cleanPattern := strings.Trim(unrootedPattern, utils.PathSeparator)
	if cleanPattern == "" {
		return false
	}
	if normalizedPath == cleanPattern {
		return true
	}
	if strings.HasSuffix(unrootedPattern, utils.PathSeparator) && strings.HasPrefix(normalizedPath, cleanPattern) {
		return true
	}
	if strings.HasPrefix(cleanPattern, extensionPrefix) && strings.HasSuffix(normalizedPath, strings.TrimPrefix(cleanPattern, "*")) {
		return true
	}
	if strings.HasPrefix(cleanPattern, recursivePrefix) && strings.Contains(normalizedPath, strings.TrimPrefix(cleanPattern, recursivePrefix)) {
		return true
	}
	if strings.HasSuffix(cleanPattern, recursiveSuffix) && strings.HasPrefix(normalizedPath, strings.TrimSuffix(cleanPattern, recursiveSuffix)) {
		return true
	}
	if strings.Contains(normalizedPath, cleanPattern) || strings.HasPrefix(normalizedPath, cleanPattern+utils.PathSeparator) {
		return true
	}
	if strings.ContainsAny(cleanPattern, globMetacharacters) {
		return globMatches(normalizedPath, segments, cleanPattern)
	}
	return false
}

// globMatches evaluates wildcard patterns such as npm-debug.log* against the
// last segment, or against the whole path when the pattern has a separator.
func globMatches(normalizedPath string, segments []string, cleanPattern string) bool {
	if strings.Contains(cleanPattern, utils.PathSeparator) {
		isMatched, matchError := path.Match(cleanPattern, normalizedPath)
		return matchError == nil && isMatched
	}
	isMatched, matchError := path.Match(cleanPattern, segments[len(segments)-1])
	return matchError == nil && isMatched
}

// Matcher is an ignore predicate over a fixed pattern list.
type Matcher struct {
	patterns []string
}

// NewMatcher concatenates the provided pattern lists into one matcher.
func NewMatcher(patternLists ...[]string) Matcher {
	var patterns []string
	for _, patternList := range patternLists {
		for _, pattern := range patternList {
			if strings.TrimSpace(pattern) == "" {
				continue
			}
			patterns = append(patterns, pattern)
		}
	}
	return Matcher{patterns: patterns}
}

// Patterns returns a copy of the matcher's patterns in evaluation order.
func (matcher Matcher) Patterns() []string {
	return append([]string(nil), matcher.patterns...)
}

// Match reports whether candidatePath is ignored.
func (matcher Matcher) Match(candidatePath string) bool {
	return ShouldIgnore(candidatePath, matcher.patterns)
}
