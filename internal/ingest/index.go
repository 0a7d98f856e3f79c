package ingest

import (
	"sort"

	"github.com/unveilai/unveil/internal/utils"
)

type indexNode struct {
	children map[string]*indexNode
}

// PathIndex is a segment trie over root-relative paths. A path is a
// directory exactly when some other indexed path is nested under it.
type PathIndex struct {
	root *indexNode
}

// NewPathIndex indexes the provided root-relative paths. Empty paths are ignored.
func NewPathIndex(paths []string) *PathIndex {
	index := &PathIndex{root: &indexNode{children: map[string]*indexNode{}}}
	for _, candidatePath := range paths {
		if candidatePath == "" {
			continue
		}
		currentNode := index.root
		for _, segment := range utils.SplitPath(candidatePath) {
			if segment == "" {
				continue
			}
			childNode, exists := currentNode.children[segment]
			if !exists {
				childNode = &indexNode{children: map[string]*indexNode{}}
				currentNode.children[segment] = childNode
			}
			currentNode = childNode
		}
	}
	return index
}

func (index *PathIndex) lookup(candidatePath string) *indexNode {
	currentNode := index.root
	if candidatePath == "" {
		return currentNode
	}
	for _, segment := range utils.SplitPath(candidatePath) {
		childNode, exists := currentNode.children[segment]
		if !exists {
			return nil
		}
		currentNode = childNode
	}
	return currentNode
}

// Children returns the sorted names of the segments directly below prefix.
// The empty prefix addresses the root.
func (index *PathIndex) Children(prefix string) []string {
	prefixNode := index.lookup(prefix)
	if prefixNode == nil {
		return nil
	}
	names := make([]string, 0, len(prefixNode.children))
	for name := range prefixNode.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contains reports whether path is an indexed path or a prefix of one.
func (index *PathIndex) Contains(candidatePath string) bool {
	return candidatePath != "" && index.lookup(candidatePath) != nil
}

// IsDirectory reports whether some indexed path lies strictly below path.
func (index *PathIndex) IsDirectory(candidatePath string) bool {
	node := index.lookup(candidatePath)
	return node != nil && len(node.children) > 0
}
