package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrNotARepository is returned when the path set carries no .git marker.
	ErrNotARepository = errors.New("not a git repository: the .git directory is missing")
	// ErrInvalidInput is returned for empty path sets and sets without a
	// common root segment.
	ErrInvalidInput = errors.New("invalid input")
)

const fileReadErrorFormat = "read %s: %v"

// FileReadError reports a file whose content could not be read or decoded as text.
type FileReadError struct {
	Path string
	Err  error
}

func (fileReadError *FileReadError) Error() string {
	return fmt.Sprintf(fileReadErrorFormat, fileReadError.Path, fileReadError.Err)
}

func (fileReadError *FileReadError) Unwrap() error {
	return fileReadError.Err
}
