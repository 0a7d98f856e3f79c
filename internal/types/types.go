// Package types defines every cross‑package data structure used by the unveil CLI.
package types

import (
	"encoding/json"
	"encoding/xml"
)

const (
	NodeTypeFile      = "file"
	NodeTypeDirectory = "directory"

	CommandIngest  = "ingest"
	CommandTree    = "tree"
	CommandSelect  = "select"
	CommandContext = "context"
	CommandAsk     = "ask"
	CommandCall    = "call"

	FormatRaw  = "raw"
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatYAML = "yaml"
)

// FileNode is one entry of a repository tree. Directories always carry a
// children slice, files carry content only when it was read as text.
type FileNode struct {
	XMLName  xml.Name    `json:"-" xml:"node" yaml:"-"`
	Name     string      `json:"name" xml:"name" yaml:"name"`
	Path     string      `json:"path" xml:"path" yaml:"path"`
	Type     string      `json:"type" xml:"type" yaml:"type"`
	Children []*FileNode `json:"children,omitempty" xml:"children>node,omitempty" yaml:"children,omitempty"`
	Content  *string     `json:"content,omitempty" xml:"content,omitempty" yaml:"content,omitempty"`
	Selected bool        `json:"selected" xml:"selected" yaml:"selected"`
}

// NewDirectoryNode returns a directory node with an empty children slice.
func NewDirectoryNode(name, path string, children []*FileNode) *FileNode {
	if children == nil {
		children = []*FileNode{}
	}
	return &FileNode{Name: name, Path: path, Type: NodeTypeDirectory, Children: children}
}

// NewFileNode returns a file node holding content.
func NewFileNode(name, path string, content string) *FileNode {
	return &FileNode{Name: name, Path: path, Type: NodeTypeFile, Content: &content}
}

// IsDirectory reports whether the node is a directory.
func (node *FileNode) IsDirectory() bool {
	return node != nil && node.Type == NodeTypeDirectory
}

// IsFile reports whether the node is a file.
func (node *FileNode) IsFile() bool {
	return node != nil && node.Type == NodeTypeFile
}

// ContentOrEmpty returns the file content or an empty string when it is absent.
func (node *FileNode) ContentOrEmpty() string {
	if node == nil || node.Content == nil {
		return ""
	}
	return *node.Content
}

// Clone returns a deep copy of the node and its descendants.
func (node *FileNode) Clone() *FileNode {
	if node == nil {
		return nil
	}
	cloned := *node
	if node.Content != nil {
		content := *node.Content
		cloned.Content = &content
	}
	if node.Children != nil {
		cloned.Children = make([]*FileNode, len(node.Children))
		for index, child := range node.Children {
			cloned.Children[index] = child.Clone()
		}
	}
	return &cloned
}

// MarshalJSON always emits a children array for directories, even when empty.
func (node FileNode) MarshalJSON() ([]byte, error) {
	type fileNodeAlias FileNode
	payload := struct {
		fileNodeAlias
		Children *[]*FileNode `json:"children,omitempty"`
	}{fileNodeAlias: fileNodeAlias(node)}
	if node.Type == NodeTypeDirectory {
		children := node.Children
		if children == nil {
			children = []*FileNode{}
		}
		payload.Children = &children
	}
	return json.Marshal(payload)
}

// UnmarshalJSON restores the empty children slice of directories.
func (node *FileNode) UnmarshalJSON(data []byte) error {
	type fileNodeAlias FileNode
	var decoded fileNodeAlias
	if decodeError := json.Unmarshal(data, &decoded); decodeError != nil {
		return decodeError
	}
	*node = FileNode(decoded)
	if node.Type == NodeTypeDirectory && node.Children == nil {
		node.Children = []*FileNode{}
	}
	return nil
}

// ContextSummary captures aggregate information about a combined context blob.
type ContextSummary struct {
	TotalFiles  int    `json:"totalFiles" xml:"totalFiles" yaml:"totalFiles"`
	TotalSize   string `json:"totalSize" xml:"totalSize" yaml:"totalSize"`
	TotalBytes  int64  `json:"-" xml:"-" yaml:"-"`
	TotalTokens int    `json:"totalTokens,omitempty" xml:"totalTokens,omitempty" yaml:"totalTokens,omitempty"`
	Model       string `json:"model,omitempty" xml:"model,omitempty" yaml:"model,omitempty"`
}
