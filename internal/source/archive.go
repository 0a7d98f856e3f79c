package source

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/unveilai/unveil/internal/utils"
)

const (
	errorOpenArchiveFormat  = "open archive: %w"
	errorReadArchiveFormat  = "read %s from archive: %w"
	errorUnsafeArchivePath  = "archive entry %q escapes the archive root"
	errorArchiveRootsFormat = "archive has more than one top-level folder: %q and %q"
)

// FromZip enumerates the files of an in-memory zip archive. Directory records
// are skipped and the archive's top-level folder becomes the root segment.
func FromZip(data []byte) (Set, error) {
	archiveReader, openError := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if openError != nil {
		return Set{}, fmt.Errorf(errorOpenArchiveFormat, openError)
	}
	var entries []Entry
	rootSegment := ""
	for _, archiveFile := range archiveReader.File {
		if archiveFile.FileInfo().IsDir() || strings.HasSuffix(archiveFile.Name, utils.PathSeparator) {
			continue
		}
		entryPath := strings.TrimPrefix(utils.NormalizeSlashes(archiveFile.Name), utils.PathSeparator)
		segments := strings.Split(entryPath, utils.PathSeparator)
		if utils.ContainsString(segments, "..") {
			return Set{}, fmt.Errorf(errorUnsafeArchivePath, archiveFile.Name)
		}
		if rootSegment == "" {
			rootSegment = segments[0]
		} else if segments[0] != rootSegment {
			return Set{}, fmt.Errorf(errorArchiveRootsFormat, rootSegment, segments[0])
		}
		entries = append(entries, Entry{Path: entryPath, Reader: zipFile{file: archiveFile}})
	}
	if len(entries) == 0 {
		return Set{}, fmt.Errorf("archive: %w", ErrNoEntries)
	}
	return Set{Entries: entries}, nil
}

type zipFile struct {
	file *zip.File
}

// ReadContent decompresses the archive member.
func (member zipFile) ReadContent(ctx context.Context) ([]byte, error) {
	if ctx != nil {
		if contextError := ctx.Err(); contextError != nil {
			return nil, contextError
		}
	}
	fileReader, openError := member.file.Open()
	if openError != nil {
		return nil, fmt.Errorf(errorReadArchiveFormat, member.file.Name, openError)
	}
	defer fileReader.Close()
	contentBytes, readError := io.ReadAll(fileReader)
	if readError != nil {
		return nil, fmt.Errorf(errorReadArchiveFormat, member.file.Name, readError)
	}
	return contentBytes, nil
}
