package ingest

import (
	"fmt"
	"strings"

	"github.com/unveilai/unveil/internal/utils"
)

const (
	errorEmptySetFormat         = "%w: the path set is empty"
	errorMissingRootFormat      = "%w: path %q has no root segment"
	errorInconsistentRootFormat = "%w: path %q is outside root %q"
)

// IsRepository reports whether any path has the version control metadata
// directory as its second segment.
func IsRepository(paths []string) bool {
	for _, candidatePath := range paths {
		segments := utils.SplitPath(candidatePath)
		if len(segments) > 1 && segments[1] == utils.GitDirectoryName {
			return true
		}
	}
	return false
}

// RootSegment returns the first segment shared by every path.
func RootSegment(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf(errorEmptySetFormat, ErrInvalidInput)
	}
	var rootSegment string
	for _, candidatePath := range paths {
		firstSegment := utils.SplitPath(candidatePath)[0]
		if strings.TrimSpace(firstSegment) == "" {
			return "", fmt.Errorf(errorMissingRootFormat, ErrInvalidInput, candidatePath)
		}
		if rootSegment == "" {
			rootSegment = firstSegment
			continue
		}
		if firstSegment != rootSegment {
			return "", fmt.Errorf(errorInconsistentRootFormat, ErrInvalidInput, candidatePath, rootSegment)
		}
	}
	return rootSegment, nil
}

// stripRoot removes the root segment from a path and drops empty segments, so
// repo/a//b.ts becomes a/b.ts. A path consisting of the root alone yields an
// empty string.
func stripRoot(candidatePath, rootSegment string) string {
	normalizedPath := utils.NormalizeSlashes(candidatePath)
	relativePath := strings.TrimPrefix(normalizedPath, rootSegment)
	segments := make([]string, 0, strings.Count(relativePath, utils.PathSeparator)+1)
	for _, segment := range strings.Split(relativePath, utils.PathSeparator) {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return strings.Join(segments, utils.PathSeparator)
}
