package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/unveilai/unveil/internal/utils"
)

const (
	errorAbsoluteDirectoryFormat = "resolve directory %s: %w"
	errorStatDirectoryFormat     = "stat directory %s: %w"
	errorNotDirectoryFormat      = "%s is not a directory"
	errorWalkDirectoryFormat     = "walk directory %s: %w"
)

// FromDirectory enumerates every regular file below directoryPath. Entry paths
// start with the directory's base name, the way a browser directory picker
// reports them, and include the .git directory. Content is read lazily.
func FromDirectory(directoryPath string) (Set, error) {
	absoluteDirectoryPath, absoluteError := filepath.Abs(directoryPath)
	if absoluteError != nil {
		return Set{}, fmt.Errorf(errorAbsoluteDirectoryFormat, directoryPath, absoluteError)
	}
	directoryInfo, statError := os.Stat(absoluteDirectoryPath)
	if statError != nil {
		return Set{}, fmt.Errorf(errorStatDirectoryFormat, directoryPath, statError)
	}
	if !directoryInfo.IsDir() {
		return Set{}, fmt.Errorf(errorNotDirectoryFormat, directoryPath)
	}

	rootName := filepath.Base(absoluteDirectoryPath)
	var entries []Entry
	walkFunction := func(currentPath string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}
		if !directoryEntry.Type().IsRegular() {
			return nil
		}
		relativePath, relativeError := filepath.Rel(absoluteDirectoryPath, currentPath)
		if relativeError != nil {
			return relativeError
		}
		entries = append(entries, Entry{
			Path:   utils.JoinPath(rootName, filepath.ToSlash(relativePath)),
			Reader: diskFile(currentPath),
		})
		return nil
	}
	if walkError := filepath.WalkDir(absoluteDirectoryPath, walkFunction); walkError != nil {
		return Set{}, fmt.Errorf(errorWalkDirectoryFormat, directoryPath, walkError)
	}
	if len(entries) == 0 {
		return Set{}, fmt.Errorf("%s: %w", directoryPath, ErrNoEntries)
	}
	return Set{Entries: entries, Origin: absoluteDirectoryPath}, nil
}

type diskFile string

// ReadContent reads the file from disk.
//
// #nosec G304
func (file diskFile) ReadContent(ctx context.Context) ([]byte, error) {
	if ctx != nil {
		if contextError := ctx.Err(); contextError != nil {
			return nil, contextError
		}
	}
	return os.ReadFile(string(file))
}
