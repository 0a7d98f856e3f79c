package selection_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/unveilai/unveil/internal/selection"
	"github.com/unveilai/unveil/internal/types"
)

const (
	testLibraryPath = "lib"
	testFileAPath   = "lib/a.ts"
	testFileBPath   = "lib/b.ts"
	testIndexPath   = "src/index.ts"
	testReadmePath  = "README.md"
)

func sampleTree() []*types.FileNode {
	return []*types.FileNode{
		types.NewDirectoryNode("lib", testLibraryPath, []*types.FileNode{
			types.NewFileNode("a.ts", testFileAPath, "export const a = 1"),
			types.NewFileNode("b.ts", testFileBPath, "export const b = 2"),
		}),
		types.NewDirectoryNode("src", "src", []*types.FileNode{
			types.NewFileNode("index.ts", testIndexPath, "import './lib'"),
			types.NewDirectoryNode("empty", "src/empty", nil),
		}),
		types.NewFileNode("README.md", testReadmePath, "# sample"),
	}
}

func cloneTree(tree []*types.FileNode) []*types.FileNode {
	cloned := make([]*types.FileNode, len(tree))
	for index, node := range tree {
		cloned[index] = node.Clone()
	}
	return cloned
}

func TestToggleDirectoryCascades(testingHandle *testing.T) {
	originalTree := sampleTree()
	snapshot := cloneTree(originalTree)

	selectedTree, toggleError := selection.Toggle(originalTree, testLibraryPath, true)
	if toggleError != nil {
		testingHandle.Fatalf("Toggle: %v", toggleError)
	}
	for _, path := range []string{testLibraryPath, testFileAPath, testFileBPath} {
		if node := selection.FindByPath(selectedTree, path); node == nil || !node.Selected {
			testingHandle.Fatalf("expected %s to be selected", path)
		}
	}
	if !reflect.DeepEqual(originalTree, snapshot) {
		testingHandle.Fatalf("Toggle mutated its input")
	}
	if selectedTree[1] != originalTree[1] || selectedTree[2] != originalTree[2] {
		testingHandle.Fatalf("unrelated branches should be shared")
	}
	if selectedTree[0] == originalTree[0] {
		testingHandle.Fatalf("changed branch must be a new node")
	}

	clearedTree, toggleError := selection.Toggle(selectedTree, testLibraryPath, false)
	if toggleError != nil {
		testingHandle.Fatalf("Toggle: %v", toggleError)
	}
	if !reflect.DeepEqual(clearedTree, snapshot) {
		testingHandle.Fatalf("clearing the directory should restore the original flags")
	}
}

func TestToggleFileChangesOnlyTarget(testingHandle *testing.T) {
	originalTree := sampleTree()
	updatedTree, toggleError := selection.Toggle(originalTree, testIndexPath, true)
	if toggleError != nil {
		testingHandle.Fatalf("Toggle: %v", toggleError)
	}
	if selection.CountNodes(updatedTree) != selection.CountNodes(originalTree) {
		testingHandle.Fatalf("node count changed")
	}
	sourceDirectory := selection.FindByPath(updatedTree, "src")
	if sourceDirectory.Selected {
		testingHandle.Fatalf("parent directory must keep its flag")
	}
	if sourceDirectory.Children[1] != originalTree[1].Children[1] {
		testingHandle.Fatalf("sibling of the target should be shared")
	}
	selectedFiles := selection.CollectSelectedFiles(updatedTree)
	if len(selectedFiles) != 1 || selectedFiles[0].Path != testIndexPath {
		testingHandle.Fatalf("selected files = %v", selectedFiles)
	}
}

func TestToggleUnknownPath(testingHandle *testing.T) {
	for _, path := range []string{"missing", "lib/c.ts", "README.md/child"} {
		if _, toggleError := selection.Toggle(sampleTree(), path, true); !errors.Is(toggleError, selection.ErrNodeNotFound) {
			testingHandle.Fatalf("Toggle(%q) error = %v", path, toggleError)
		}
	}
}

func TestToggleAllAndSetAll(testingHandle *testing.T) {
	updatedTree, toggleError := selection.ToggleAll(sampleTree(), []string{testReadmePath, testFileBPath}, true)
	if toggleError != nil {
		testingHandle.Fatalf("ToggleAll: %v", toggleError)
	}
	selectedFiles := selection.CollectSelectedFiles(updatedTree)
	if len(selectedFiles) != 2 || selectedFiles[0].Path != testFileBPath || selectedFiles[1].Path != testReadmePath {
		testingHandle.Fatalf("unexpected pre-order selection %v", selectedFiles)
	}
	if _, toggleError = selection.ToggleAll(updatedTree, []string{testReadmePath, "nope"}, false); !errors.Is(toggleError, selection.ErrNodeNotFound) {
		testingHandle.Fatalf("expected ErrNodeNotFound, got %v", toggleError)
	}

	allSelected := selection.SetAll(sampleTree(), true)
	if count := len(selection.CollectSelectedFiles(allSelected)); count != selection.CountFiles(allSelected) {
		testingHandle.Fatalf("SetAll selected %d files", count)
	}
	if count := len(selection.CollectSelectedFiles(selection.SetAll(allSelected, false))); count != 0 {
		testingHandle.Fatalf("SetAll(false) left %d files selected", count)
	}
}

func TestCollectSelectedFilesIgnoresDirectories(testingHandle *testing.T) {
	tree := sampleTree()
	tree[1].Selected = true
	if selectedFiles := selection.CollectSelectedFiles(tree); len(selectedFiles) != 0 {
		testingHandle.Fatalf("directories must not be collected: %v", selectedFiles)
	}
	if selectedFiles := selection.CollectSelectedFiles(nil); selectedFiles == nil || len(selectedFiles) != 0 {
		testingHandle.Fatalf("expected empty slice for empty tree")
	}
}

func TestCounts(testingHandle *testing.T) {
	tree := sampleTree()
	if count := selection.CountNodes(tree); count != 7 {
		testingHandle.Fatalf("CountNodes = %d, want 7", count)
	}
	if count := selection.CountFiles(tree); count != 4 {
		testingHandle.Fatalf("CountFiles = %d, want 4", count)
	}
}

func TestFindByPath(testingHandle *testing.T) {
	tree := sampleTree()
	if node := selection.FindByPath(tree, testFileBPath); node == nil || node.Name != "b.ts" {
		testingHandle.Fatalf("FindByPath(%q) = %+v", testFileBPath, node)
	}
	if node := selection.FindByPath(tree, "src/empty"); node == nil || !node.IsDirectory() {
		testingHandle.Fatalf("expected the empty directory, got %+v", node)
	}
	for _, missingPath := range []string{"lib/c.ts", "librar", "src/index.ts/extra"} {
		if node := selection.FindByPath(tree, missingPath); node != nil {
			testingHandle.Errorf("FindByPath(%q) = %+v, want nil", missingPath, node)
		}
	}
}
