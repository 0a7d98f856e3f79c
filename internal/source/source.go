// Package source supplies flat enumerations of repository files, either from a
// local directory or from a downloaded archive, together with the text decoder
// used to turn raw file bytes into content.
package source

import (
	"context"
	"errors"
)

// ErrNoEntries is returned by providers that produced an empty enumeration.
var ErrNoEntries = errors.New("no files found")

// ContentReader yields the raw bytes of one file.
type ContentReader interface {
	ReadContent(ctx context.Context) ([]byte, error)
}

// ContentReaderFunc adapts a function to ContentReader.
type ContentReaderFunc func(ctx context.Context) ([]byte, error)

// ReadContent calls the function.
func (function ContentReaderFunc) ReadContent(ctx context.Context) ([]byte, error) {
	return function(ctx)
}

// StaticContent is an in-memory ContentReader.
type StaticContent []byte

// ReadContent returns a copy of the stored bytes.
func (content StaticContent) ReadContent(context.Context) ([]byte, error) {
	return append([]byte(nil), content...), nil
}

// Entry is one file of a repository enumeration. Path is slash separated and
// starts with the repository root segment.
type Entry struct {
	Path   string
	Reader ContentReader
}

// TextEntry returns an entry whose content is the provided text.
func TextEntry(path string, text string) Entry {
	return Entry{Path: path, Reader: StaticContent(text)}
}

// Set is the flat enumeration produced by a provider.
type Set struct {
	Entries []Entry
	// Origin describes where the set came from (a directory or a URL).
	Origin string
	// Repository is true when the provider guarantees a version-controlled
	// source even though the metadata directory is not part of the set.
	Repository bool
}

// NewSet returns a set holding the provided entries.
func NewSet(entries ...Entry) Set {
	return Set{Entries: entries}
}

// Paths returns the entry paths in enumeration order.
func (set Set) Paths() []string {
	paths := make([]string, 0, len(set.Entries))
	for _, entry := range set.Entries {
		paths = append(paths, entry.Path)
	}
	return paths
}

// Lookup returns the entry with the provided path.
func (set Set) Lookup(path string) (Entry, bool) {
	for _, entry := range set.Entries {
		if entry.Path == path {
			return entry, true
		}
	}
	return Entry{}, false
}
