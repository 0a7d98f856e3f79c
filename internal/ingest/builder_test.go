package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/unveilai/unveil/internal/ignore"
	"github.com/unveilai/unveil/internal/ingest"
	"github.com/unveilai/unveil/internal/source"
	"github.com/unveilai/unveil/internal/types"
)

const (
	testGitConfigPath = "repo/.git/config"
	testGitHeadPath   = "repo/.git/HEAD"
	testIndexPath     = "repo/src/index.ts"
	testReadmePath    = "repo/README.md"
	testIndexContent  = "export const answer = 42\n"
	testReadmeContent = "# repo\n"
	testBinaryContent = "\x00\x01\x02"
)

func describeTree(nodes []*types.FileNode) string {
	var builder strings.Builder
	var walk func(level []*types.FileNode, depth int)
	walk = func(level []*types.FileNode, depth int) {
		for _, node := range level {
			builder.WriteString(strings.Repeat("  ", depth))
			builder.WriteString(node.Name)
			if node.IsDirectory() {
				builder.WriteString("/")
			}
			builder.WriteString("\n")
			walk(node.Children, depth+1)
		}
	}
	walk(nodes, 0)
	return builder.String()
}

func findNode(nodes []*types.FileNode, path string) *types.FileNode {
	for _, node := range nodes {
		if node.Path == path {
			return node
		}
		if found := findNode(node.Children, path); found != nil {
			return found
		}
	}
	return nil
}

func TestBuildRepositoryTreeStripsRootAndMetadata(testingHandle *testing.T) {
	set := source.NewSet(
		source.TextEntry(testGitConfigPath, "[core]"),
		source.TextEntry(testIndexPath, testIndexContent),
		source.TextEntry(testReadmePath, testReadmeContent),
	)
	builder := &ingest.Builder{}
	tree, buildError := builder.BuildRepositoryTree(context.Background(), set)
	if buildError != nil {
		testingHandle.Fatalf("BuildRepositoryTree: %v", buildError)
	}
	expected := "src/\n  index.ts\nREADME.md\n"
	if actual := describeTree(tree); actual != expected {
		testingHandle.Fatalf("tree =\n%s\nwant\n%s", actual, expected)
	}
	indexNode := findNode(tree, "src/index.ts")
	if indexNode == nil || indexNode.ContentOrEmpty() != testIndexContent {
		testingHandle.Fatalf("unexpected index node %+v", indexNode)
	}
	if indexNode.Selected {
		testingHandle.Fatalf("new nodes must start unselected")
	}
}

func TestBuildRepositoryTreeAppliesIgnoreFile(testingHandle *testing.T) {
	set := source.NewSet(
		source.TextEntry(testGitHeadPath, "ref: refs/heads/main"),
		source.TextEntry("repo/.gitignore", "*.log\nbuild/\n"),
		source.TextEntry("repo/app.log", "boot"),
		source.TextEntry("repo/build/out.js", "console.log(1)"),
		source.TextEntry("repo/main.ts", "main()"),
	)
	builder := &ingest.Builder{}
	tree, buildError := builder.BuildRepositoryTree(context.Background(), set)
	if buildError != nil {
		testingHandle.Fatalf("BuildRepositoryTree: %v", buildError)
	}
	expected := "main.ts\n"
	if actual := describeTree(tree); actual != expected {
		testingHandle.Fatalf("tree =\n%s\nwant\n%s", actual, expected)
	}
}

func TestBuildTreeWithCustomPatternsOnly(testingHandle *testing.T) {
	customPatterns, parseError := ignore.ParsePatterns(strings.NewReader("*.log\nbuild/"))
	if parseError != nil {
		testingHandle.Fatalf("ParsePatterns: %v", parseError)
	}
	matcher := ignore.NewMatcher(ignore.DefaultPatterns(), customPatterns)
	set := source.NewSet(
		source.TextEntry("repo/app.log", "boot"),
		source.TextEntry("repo/build/out.js", "console.log(1)"),
		source.TextEntry("repo/main.ts", "main()"),
	)
	builder := &ingest.Builder{}
	tree, buildError := builder.BuildTree(context.Background(), set, matcher.Match)
	if buildError != nil {
		testingHandle.Fatalf("BuildTree: %v", buildError)
	}
	if actual := describeTree(tree); actual != "main.ts\n" {
		testingHandle.Fatalf("tree =\n%s", actual)
	}
}

func TestBuildRepositoryTreeRequiresRepository(testingHandle *testing.T) {
	set := source.NewSet(source.TextEntry("repo/main.ts", "main()"))
	builder := &ingest.Builder{}
	tree, buildError := builder.BuildRepositoryTree(context.Background(), set)
	if !errors.Is(buildError, ingest.ErrNotARepository) {
		testingHandle.Fatalf("expected ErrNotARepository, got %v", buildError)
	}
	if tree != nil {
		testingHandle.Fatalf("expected no tree, got %v", tree)
	}

	set.Repository = true
	if _, buildError = builder.BuildRepositoryTree(context.Background(), set); buildError != nil {
		testingHandle.Fatalf("archive sets should pass the gate: %v", buildError)
	}

	set.Repository = false
	skippingBuilder := &ingest.Builder{SkipRepositoryCheck: true}
	if _, buildError = skippingBuilder.BuildRepositoryTree(context.Background(), set); buildError != nil {
		testingHandle.Fatalf("gate should be disabled: %v", buildError)
	}
}

func TestBuildTreeRejectsInvalidInput(testingHandle *testing.T) {
	testCases := []struct {
		name string
		set  source.Set
	}{
		{name: "empty set", set: source.NewSet()},
		{name: "missing root", set: source.NewSet(source.TextEntry("/main.ts", "x"))},
		{name: "several roots", set: source.NewSet(source.TextEntry("a/main.ts", "x"), source.TextEntry("b/main.ts", "y"))},
	}
	for _, testCase := range testCases {
		testingHandle.Run(testCase.name, func(subTestHandle *testing.T) {
			builder := &ingest.Builder{}
			_, buildError := builder.BuildTree(context.Background(), testCase.set, nil)
			if !errors.Is(buildError, ingest.ErrInvalidInput) {
				subTestHandle.Fatalf("expected ErrInvalidInput, got %v", buildError)
			}
			_, repositoryError := builder.BuildRepositoryTree(context.Background(), testCase.set)
			if repositoryError == nil {
				subTestHandle.Fatalf("expected BuildRepositoryTree to fail")
			}
		})
	}
}

func TestBuildTreeDropsUnsupportedFiles(testingHandle *testing.T) {
	set := source.NewSet(
		source.TextEntry("repo/image.png", "\x89PNG"),
		source.TextEntry("repo/app.ts", "app()"),
		source.TextEntry("repo/Makefile", "all:"),
	)
	builder := &ingest.Builder{}
	tree, buildError := builder.BuildTree(context.Background(), set, nil)
	if buildError != nil {
		testingHandle.Fatalf("BuildTree: %v", buildError)
	}
	if actual := describeTree(tree); actual != "Makefile\napp.ts\n" {
		testingHandle.Fatalf("tree =\n%s", actual)
	}
}

func TestBuildTreeReadFailurePolicies(testingHandle *testing.T) {
	newSet := func() source.Set {
		return source.NewSet(
			source.TextEntry("repo/data.txt", testBinaryContent),
			source.TextEntry("repo/main.go", "package main"),
		)
	}

	skippingBuilder := &ingest.Builder{ReadFailurePolicy: ingest.ReadFailureSkip}
	tree, buildError := skippingBuilder.BuildTree(context.Background(), newSet(), nil)
	if buildError != nil {
		testingHandle.Fatalf("skip policy should not fail: %v", buildError)
	}
	if actual := describeTree(tree); actual != "main.go\n" {
		testingHandle.Fatalf("tree =\n%s", actual)
	}

	abortingBuilder := &ingest.Builder{ReadFailurePolicy: ingest.ReadFailureAbort}
	tree, buildError = abortingBuilder.BuildTree(context.Background(), newSet(), nil)
	var fileReadError *ingest.FileReadError
	if !errors.As(buildError, &fileReadError) {
		testingHandle.Fatalf("expected FileReadError, got %v", buildError)
	}
	if fileReadError.Path != "data.txt" || !errors.Is(buildError, source.ErrNotText) {
		testingHandle.Fatalf("unexpected read error %v", fileReadError)
	}
	if tree != nil {
		testingHandle.Fatalf("abort policy must not return a partial tree")
	}
}

func TestBuildTreeReaderFailureIsReported(testingHandle *testing.T) {
	readFailure := errors.New("permission denied")
	set := source.NewSet(source.Entry{
		Path:   "repo/secret.txt",
		Reader: source.ContentReaderFunc(func(context.Context) ([]byte, error) {
			return nil, readFailure
		}),
	})
	builder := &ingest.Builder{ReadFailurePolicy: ingest.ReadFailureAbort}
	_, buildError := builder.BuildTree(context.Background(), set, nil)
	if !errors.Is(buildError, readFailure) {
		testingHandle.Fatalf("expected wrapped reader failure, got %v", buildError)
	}
}

func TestBuildTreeHonorsCancellation(testingHandle *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	set := source.NewSet(source.Entry{
		Path:   "repo/main.go",
		Reader: source.ContentReaderFunc(func(readContext context.Context) ([]byte, error) {
			return nil, readContext.Err()
		}),
	})
	builder := &ingest.Builder{}
	if _, buildError := builder.BuildTree(ctx, set, nil); !errors.Is(buildError, context.Canceled) {
		testingHandle.Fatalf("expected context.Canceled, got %v", buildError)
	}
}

func TestBuildTreeKeepsEmptyDirectoriesAndClassifies(testingHandle *testing.T) {
	set := source.NewSet(
		source.TextEntry("repo/logs/today.log", "x"),
		source.TextEntry("repo/pkg", "shadowed"),
		source.TextEntry("repo/pkg/util.go", "package pkg"),
	)
	matcher := ignore.NewMatcher(ignore.DefaultPatterns())
	builder := &ingest.Builder{}
	tree, buildError := builder.BuildTree(context.Background(), set, matcher.Match)
	if buildError != nil {
		testingHandle.Fatalf("BuildTree: %v", buildError)
	}
	logsNode := findNode(tree, "logs")
	if logsNode == nil || !logsNode.IsDirectory() || logsNode.Children == nil || len(logsNode.Children) != 0 {
		testingHandle.Fatalf("expected empty logs directory, got %+v", logsNode)
	}
	packageNode := findNode(tree, "pkg")
	if packageNode == nil || !packageNode.IsDirectory() {
		testingHandle.Fatalf("pkg must be a directory because pkg/util.go exists")
	}
}

func TestBuildTreeCollapsesEmptySegments(testingHandle *testing.T) {
	set := source.NewSet(
		source.TextEntry("repo/a//b.ts", "export const b = 1"),
		source.TextEntry("repo/c.ts", "export const c = 2"),
	)
	builder := &ingest.Builder{}
	tree, buildError := builder.BuildTree(context.Background(), set, nil)
	if buildError != nil {
		testingHandle.Fatalf("BuildTree: %v", buildError)
	}
	expected := "a/\n  b.ts\nc.ts\n"
	if actual := describeTree(tree); actual != expected {
		testingHandle.Fatalf("tree =\n%s\nwant\n%s", actual, expected)
	}
	fileNode := findNode(tree, "a/b.ts")
	if fileNode == nil || fileNode.ContentOrEmpty() != "export const b = 1" {
		testingHandle.Fatalf("a/b.ts must keep its content, got %+v", fileNode)
	}
}

func TestBuildTreeStructuralProperties(testingHandle *testing.T) {
	entries := []source.Entry{source.TextEntry(testGitHeadPath, "ref")}
	for directoryIndex := 0; directoryIndex < 5; directoryIndex++ {
		for fileIndex := 0; fileIndex < 6; fileIndex++ {
			entries = append(entries, source.TextEntry(
				fmt.Sprintf("repo/dir%d/nested/file%d.go", directoryIndex, fileIndex),
				fmt.Sprintf("package nested // %d", fileIndex),
			))
		}
		entries = append(entries, source.TextEntry(fmt.Sprintf("repo/dir%d/debug.log", directoryIndex), "log"))
	}
	set := source.NewSet(entries...)

	registry := prometheus.NewRegistry()
	builder := &ingest.Builder{Concurrency: 3, Metrics: ingest.NewMetrics(registry)}
	firstTree, firstError := builder.BuildRepositoryTree(context.Background(), set)
	if firstError != nil {
		testingHandle.Fatalf("BuildRepositoryTree: %v", firstError)
	}
	secondTree, secondError := (&ingest.Builder{Concurrency: 1}).BuildRepositoryTree(context.Background(), set)
	if secondError != nil {
		testingHandle.Fatalf("BuildRepositoryTree: %v", secondError)
	}
	if describeTree(firstTree) != describeTree(secondTree) {
		testingHandle.Fatalf("tree shape depends on concurrency")
	}

	var checkPaths func(parentPath string, nodes []*types.FileNode)
	checkPaths = func(parentPath string, nodes []*types.FileNode) {
		for _, node := range nodes {
			expectedPath := node.Name
			if parentPath != "" {
				expectedPath = parentPath + "/" + node.Name
			}
			if node.Path != expectedPath {
				testingHandle.Fatalf("node path %q, want %q", node.Path, expectedPath)
			}
			if strings.HasSuffix(node.Path, ".log") || strings.HasPrefix(node.Path, ".git") {
				testingHandle.Fatalf("ignored path %q present in tree", node.Path)
			}
			checkPaths(node.Path, node.Children)
		}
	}
	checkPaths("", firstTree)

	expectedMetrics := `
# HELP unveil_ingest_files_read_total Files whose content was read into the tree
# TYPE unveil_ingest_files_read_total counter
unveil_ingest_files_read_total 30
# HELP unveil_ingest_files_skipped_total Paths left out of the tree, by reason
# TYPE unveil_ingest_files_skipped_total counter
unveil_ingest_files_skipped_total{reason="ignored"} 6
`
	compareError := testutil.GatherAndCompare(registry, strings.NewReader(expectedMetrics),
		"unveil_ingest_files_read_total", "unveil_ingest_files_skipped_total")
	if compareError != nil {
		testingHandle.Fatalf("metrics mismatch: %v", compareError)
	}
}

func TestParseReadFailurePolicy(testingHandle *testing.T) {
	testCases := []struct {
		input    string
		expected ingest.ReadFailurePolicy
		isValid  bool
	}{
		{input: "", expected: ingest.ReadFailureSkip, isValid: true},
		{input: "Skip", expected: ingest.ReadFailureSkip, isValid: true},
		{input: " abort ", expected: ingest.ReadFailureAbort, isValid: true},
		{input: "retry", isValid: false},
	}
	for _, testCase := range testCases {
		policy, parseError := ingest.ParseReadFailurePolicy(testCase.input)
		if testCase.isValid != (parseError == nil) {
			testingHandle.Fatalf("ParseReadFailurePolicy(%q) error = %v", testCase.input, parseError)
		}
		if policy != testCase.expected {
			testingHandle.Fatalf("ParseReadFailurePolicy(%q) = %q, want %q", testCase.input, policy, testCase.expected)
		}
	}
}
