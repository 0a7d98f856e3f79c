// Package selection applies selection changes to FileNode trees without
// mutating them and reads the selected files back.
package selection

import (
	"errors"
	"fmt"

	"github.com/unveilai/unveil/internal/types"
	"github.com/unveilai/unveil/internal/utils"
)

// ErrNodeNotFound is returned when a path addresses no node of the tree.
var ErrNodeNotFound = errors.New("node not found")

const errorNodeNotFoundFormat = "%w: %s"

// Toggle returns a new tree in which the node at path, and every descendant
// when it is a directory, has its selected flag set to selected. The nodes on
// the way from the root to the target are copied; other branches are shared
// with the input, which is never modified.
func Toggle(tree []*types.FileNode, path string, selected bool) ([]*types.FileNode, error) {
	normalizedPath := utils.NormalizeSlashes(path)
	updatedTree, found := toggleLevel(tree, normalizedPath, selected)
	if !found {
		return nil, fmt.Errorf(errorNodeNotFoundFormat, ErrNodeNotFound, path)
	}
	return updatedTree, nil
}

// ToggleAll applies Toggle for every path in order.
func ToggleAll(tree []*types.FileNode, paths []string, selected bool) ([]*types.FileNode, error) {
	updatedTree := tree
	for _, path := range paths {
		var toggleError error
		updatedTree, toggleError = Toggle(updatedTree, path, selected)
		if toggleError != nil {
			return nil, toggleError
		}
	}
	return updatedTree, nil
}

func toggleLevel(nodes []*types.FileNode, path string, selected bool) ([]*types.FileNode, bool) {
	for index, node := range nodes {
		var replacement *types.FileNode
		switch {
		case node.Path == path:
			replacement = withSelection(node, selected)
		case node.IsDirectory() && utils.IsNestedUnder(path, node.Path):
			updatedChildren, found := toggleLevel(node.Children, path, selected)
			if !found {
				return nil, false
			}
			copied := *node
			copied.Children = updatedChildren
			replacement = &copied
		default:
			continue
		}
		updatedNodes := make([]*types.FileNode, len(nodes))
		copy(updatedNodes, nodes)
		updatedNodes[index] = replacement
		return updatedNodes, true
	}
	return nil, false
}

// withSelection copies node and its whole subtree with the flag applied.
// Content is shared between the copies.
func withSelection(node *types.FileNode, selected bool) *types.FileNode {
	copied := *node
	copied.Selected = selected
	if node.Children != nil {
		copied.Children = make([]*types.FileNode, len(node.Children))
		for index, child := range node.Children {
			copied.Children[index] = withSelection(child, selected)
		}
	}
	return &copied
}

// SetAll returns a copy of tree with every node selected or cleared.
func SetAll(tree []*types.FileNode, selected bool) []*types.FileNode {
	updatedTree := make([]*types.FileNode, len(tree))
	for index, node := range tree {
		updatedTree[index] = withSelection(node, selected)
	}
	return updatedTree
}

// CollectSelectedFiles returns the selected file nodes in depth-first pre-order.
func CollectSelectedFiles(tree []*types.FileNode) []*types.FileNode {
	selectedFiles := []*types.FileNode{}
	var walk func(nodes []*types.FileNode)
	walk = func(nodes []*types.FileNode) {
		for _, node := range nodes {
			if node.IsFile() && node.Selected {
				selectedFiles = append(selectedFiles, node)
			}
			walk(node.Children)
		}
	}
	walk(tree)
	return selectedFiles
}

// FindByPath resolves a path in the tree.
func FindByPath(tree []*types.FileNode, path string) *types.FileNode {
	for _, node := range tree {
		if node.Path == path {
			return node
		}
		if !node.IsDirectory() || !utils.IsNestedUnder(path, node.Path) {
			continue
		}
		if found := FindByPath(node.Children, path); found != nil {
			return found
		}
	}
	return nil
}

// CountNodes counts all nodes in a tree.
func CountNodes(tree []*types.FileNode) int {
	count := 0
	for _, node := range tree {
		count += 1 + CountNodes(node.Children)
	}
	return count
}

// CountFiles counts the file nodes of a tree.
func CountFiles(tree []*types.FileNode) int {
	count := 0
	for _, node := range tree {
		if node.IsFile() {
			count++
		}
		count += CountFiles(node.Children)
	}
	return count
}
