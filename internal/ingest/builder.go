// Package ingest turns a flat repository enumeration into a FileNode tree:
// it classifies paths into files and directories, prunes ignored subtrees,
// drops unsupported files and reads the retained ones as text.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unveilai/unveil/internal/ignore"
	"github.com/unveilai/unveil/internal/source"
	"github.com/unveilai/unveil/internal/types"
	"github.com/unveilai/unveil/internal/utils"
)

// ReadFailurePolicy selects what happens to a file that cannot be read as
// text: skip omits the file and continues, abort fails the whole build with
// the *FileReadError.
type ReadFailurePolicy string

const (
	ReadFailureSkip  ReadFailurePolicy = "skip"
	ReadFailureAbort ReadFailurePolicy = "abort"

	defaultConcurrency = 8

	errorUnknownPolicyFormat  = "unknown read failure policy %q (expected %s or %s)"
	errorResolvePatternFormat = "resolve ignore patterns: %w"
	errorMissingEntryMessage  = "entry has no content reader"

	logMessageSkippedFile  = "skipping unreadable file"
	logMessageBuiltTree    = "built repository tree"
	logFieldPath           = "path"
	logFieldRoot           = "root"
	logFieldFiles          = "files"
	logFieldSkipped        = "skipped"
	logFieldPatterns       = "patterns"
	logFieldDuration       = "duration"
	logMessageResolvedRule = "resolved ignore patterns"
)

// ParseReadFailurePolicy validates a policy name. The empty string selects skip.
func ParseReadFailurePolicy(value string) (ReadFailurePolicy, error) {
	switch ReadFailurePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", ReadFailureSkip:
		return ReadFailureSkip, nil
	case ReadFailureAbort:
		return ReadFailureAbort, nil
	default:
		return "", fmt.Errorf(errorUnknownPolicyFormat, value, ReadFailureSkip, ReadFailureAbort)
	}
}

// Decoder turns raw file bytes into text.
type Decoder interface {
	Decode(raw []byte) (string, error)
}

// Predicate reports whether a root-relative path is excluded from the tree.
type Predicate func(path string) bool

// Builder builds FileNode trees from source sets.
// The zero value is usable: it decodes with source.TextDecoder, reads eight
// files at a time and skips unreadable files.
type Builder struct {
	Decoder           Decoder
	Concurrency       int
	ReadFailurePolicy ReadFailurePolicy

	// SkipRepositoryCheck disables the .git marker gate of BuildRepositoryTree.
	SkipRepositoryCheck bool

	// ExtraPatterns are appended to the resolved ignore patterns.
	ExtraPatterns []string

	Logger   *zap.Logger
	Metrics  *Metrics
	Progress ProgressConfig
}

// pendingRead is a retained file waiting for its content.
type pendingRead struct {
	node  *types.FileNode
	entry source.Entry
	err   error
}

// BuildRepositoryTree checks that the set is a repository, resolves its ignore
// patterns and builds the tree. Nothing is returned when any step fails.
func (builder *Builder) BuildRepositoryTree(ctx context.Context, set source.Set) ([]*types.FileNode, error) {
	if len(set.Entries) == 0 {
		return nil, fmt.Errorf(errorEmptySetFormat, ErrInvalidInput)
	}
	if !builder.SkipRepositoryCheck && !set.Repository && !IsRepository(set.Paths()) {
		return nil, ErrNotARepository
	}
	patterns, resolveError := ignore.ResolvePatterns(ctx, set)
	if resolveError != nil {
		return nil, fmt.Errorf(errorResolvePatternFormat, resolveError)
	}
	matcher := ignore.NewMatcher(patterns, builder.ExtraPatterns)
	builder.logger().Debug(logMessageResolvedRule, zap.Int(logFieldPatterns, len(matcher.Patterns())))
	return builder.BuildTree(ctx, set, matcher.Match)
}

// BuildTree builds the tree of set, excluding every path matched by isIgnored.
// Siblings are ordered directories first, then by name.
func (builder *Builder) BuildTree(ctx context.Context, set source.Set, isIgnored Predicate) ([]*types.FileNode, error) {
	startedAt := time.Now()
	defer builder.Metrics.observeDuration(startedAt)

	rootSegment, rootError := RootSegment(set.Paths())
	if rootError != nil {
		return nil, rootError
	}
	if isIgnored == nil {
		isIgnored = func(string) bool { return false }
	}

	entriesByPath := make(map[string]source.Entry, len(set.Entries))
	relativePaths := make([]string, 0, len(set.Entries))
	for _, entry := range set.Entries {
		relativePath := stripRoot(entry.Path, rootSegment)
		if relativePath == "" {
			continue
		}
		entriesByPath[relativePath] = entry
		relativePaths = append(relativePaths, relativePath)
	}
	index := NewPathIndex(relativePaths)

	var reads []*pendingRead
	skippedCount := 0
	var plan func(prefix string) []*types.FileNode
	plan = func(prefix string) []*types.FileNode {
		nodes := []*types.FileNode{}
		for _, childName := range index.Children(prefix) {
			childPath := utils.JoinPath(prefix, childName)
			if isIgnored(childPath) {
				builder.Metrics.recordSkip(SkipReasonIgnored)
				skippedCount++
				continue
			}
			if index.IsDirectory(childPath) {
				nodes = append(nodes, types.NewDirectoryNode(childName, childPath, plan(childPath)))
				continue
			}
			if !source.IsSupportedFile(childName) {
				builder.Metrics.recordSkip(SkipReasonUnsupported)
				skippedCount++
				continue
			}
			fileNode := &types.FileNode{Name: childName, Path: childPath, Type: types.NodeTypeFile}
			reads = append(reads, &pendingRead{node: fileNode, entry: entriesByPath[childPath]})
			nodes = append(nodes, fileNode)
		}
		return nodes
	}
	tree := plan("")

	if readError := builder.readAll(ctx, reads); readError != nil {
		return nil, readError
	}

	failed := map[*types.FileNode]bool{}
	for _, read := range reads {
		if read.err == nil {
			continue
		}
		failed[read.node] = true
		skippedCount++
		builder.Metrics.recordSkip(SkipReasonUnreadable)
		builder.logger().Warn(logMessageSkippedFile, zap.String(logFieldPath, read.node.Path), zap.Error(read.err))
	}
	tree = assemble(tree, failed)

	builder.logger().Debug(logMessageBuiltTree,
		zap.String(logFieldRoot, rootSegment),
		zap.Int(logFieldFiles, len(reads)-len(failed)),
		zap.Int(logFieldSkipped, skippedCount),
		zap.Duration(logFieldDuration, time.Since(startedAt)),
	)
	return tree, nil
}

// readAll fills the content of every pending read. Under the abort policy the
// first failure cancels the remaining reads and is returned.
func (builder *Builder) readAll(ctx context.Context, reads []*pendingRead) error {
	progressBar := newProgressBar(builder.Progress, len(reads))
	if progressBar != nil {
		defer func() { _ = progressBar.Finish() }()
	}

	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(builder.concurrency())
	decoder := builder.decoder()
	for _, read := range reads {
		read := read
		group.Go(func() error {
			if progressBar != nil {
				defer func() { _ = progressBar.Add(1) }()
			}
			content, byteCount, readError := readText(groupContext, read.entry, decoder)
			if readError != nil {
				if errors.Is(readError, context.Canceled) || errors.Is(readError, context.DeadlineExceeded) {
					return readError
				}
				read.err = &FileReadError{Path: read.node.Path, Err: readError}
				if builder.ReadFailurePolicy == ReadFailureAbort {
					return read.err
				}
				return nil
			}
			read.node.Content = &content
			builder.Metrics.recordRead(byteCount)
			return nil
		})
	}
	return group.Wait()
}

func readText(ctx context.Context, entry source.Entry, decoder Decoder) (string, int, error) {
	if entry.Reader == nil {
		return "", 0, errors.New(errorMissingEntryMessage)
	}
	rawContent, readError := entry.Reader.ReadContent(ctx)
	if readError != nil {
		return "", 0, readError
	}
	content, decodeError := decoder.Decode(rawContent)
	if decodeError != nil {
		return "", 0, decodeError
	}
	return content, len(rawContent), nil
}

// assemble drops failed files and orders siblings directories first, then by name.
func assemble(nodes []*types.FileNode, failed map[*types.FileNode]bool) []*types.FileNode {
	kept := make([]*types.FileNode, 0, len(nodes))
	for _, node := range nodes {
		if failed[node] {
			continue
		}
		if node.IsDirectory() {
			node.Children = assemble(node.Children, failed)
		}
		kept = append(kept, node)
	}
	sort.SliceStable(kept, func(left, right int) bool {
		if kept[left].IsDirectory() != kept[right].IsDirectory() {
			return kept[left].IsDirectory()
		}
		return kept[left].Name < kept[right].Name
	})
	return kept
}

func (builder *Builder) decoder() Decoder {
	if builder.Decoder == nil {
		return source.TextDecoder{}
	}
	return builder.Decoder
}

func (builder *Builder) concurrency() int {
	if builder.Concurrency < 1 {
		return defaultConcurrency
	}
	return builder.Concurrency
}

func (builder *Builder) logger() *zap.Logger {
	return utils.LoggerOrNop(builder.Logger)
}
