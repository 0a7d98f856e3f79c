// Package output renders repository trees, combined contexts and assistant
// answers as raw text, JSON, XML or YAML.
package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/unveilai/unveil/internal/types"
)

const (
	indentPrefix = ""
	indentSpacer = "  "
	yamlIndent   = 2

	xmlHeader           = xml.Header
	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "
	selectedMarker      = "[x] "
	unselectedMarker    = "[ ] "
	directorySuffix     = "/"
	emptyTreeMessage    = "(empty tree)"

	errorUnsupportedFormat = "unsupported output format %q"
)

// Options control rendering.
type Options struct {
	Format string
	// Colorize enables ANSI colors in raw output.
	Colorize bool
}

type palette struct {
	directory *color.Color
	selected  *color.Color
}

func newPalette(colorize bool) palette {
	colors := palette{
		directory: color.New(color.FgBlue, color.Bold),
		selected:  color.New(color.FgGreen),
	}
	if colorize {
		colors.directory.EnableColor()
		colors.selected.EnableColor()
	} else {
		colors.directory.DisableColor()
		colors.selected.DisableColor()
	}
	return colors
}

// WriteTree renders tree in the requested format.
func WriteTree(writer io.Writer, tree []*types.FileNode, options Options) error {
	switch normalizeFormat(options.Format) {
	case types.FormatRaw:
		WriteTreeRaw(writer, tree, options.Colorize)
		return nil
	case types.FormatJSON:
		return writeJSON(writer, nonNilTree(tree))
	case types.FormatXML:
		wrapper := struct {
			XMLName xml.Name          `xml:"tree"`
			Nodes   []*types.FileNode `xml:"node"`
		}{Nodes: tree}
		return writeXML(writer, wrapper)
	case types.FormatYAML:
		return writeYAML(writer, nonNilTree(tree))
	default:
		return fmt.Errorf(errorUnsupportedFormat, options.Format)
	}
}

// WriteTreeRaw draws tree with box-drawing connectors. Directories end with a
// slash and every node carries its selection marker.
func WriteTreeRaw(writer io.Writer, tree []*types.FileNode, colorize bool) {
	if len(tree) == 0 {
		fmt.Fprintln(writer, emptyTreeMessage)
		return
	}
	colors := newPalette(colorize)
	for index, node := range tree {
		renderTreeNode(writer, node, "", index == len(tree)-1, colors)
	}
}

func renderTreeNode(writer io.Writer, node *types.FileNode, prefix string, isLast bool, colors palette) {
	if node == nil {
		return
	}
	connector := treeBranchConnector
	childPrefix := prefix + treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeLastPadding
	}
	marker := unselectedMarker
	if node.Selected {
		marker = colors.selected.Sprint(selectedMarker)
	}
	name := node.Name
	if node.IsDirectory() {
		name = colors.directory.Sprint(name + directorySuffix)
	}
	fmt.Fprintf(writer, "%s%s%s%s\n", prefix, connector, marker, name)
	for index, child := range node.Children {
		renderTreeNode(writer, child, childPrefix, index == len(node.Children)-1, colors)
	}
}

// FormatSummaryLine formats a ContextSummary into the raw summary line.
func FormatSummaryLine(summary types.ContextSummary) string {
	label := "files"
	if summary.TotalFiles == 1 {
		label = "file"
	}
	extra := ""
	if summary.TotalTokens > 0 {
		extra = fmt.Sprintf(", %d tokens", summary.TotalTokens)
	}
	modelSuffix := ""
	if summary.Model != "" {
		modelSuffix = fmt.Sprintf(" (model: %s)", summary.Model)
	}
	return fmt.Sprintf("Summary: %d %s, %s%s%s", summary.TotalFiles, label, summary.TotalSize, extra, modelSuffix)
}

// contextFile is the structured form of one file of a combined context.
type contextFile struct {
	Path    string `json:"path" xml:"path" yaml:"path"`
	Content string `json:"content" xml:"content" yaml:"content"`
}

type contextDocument struct {
	XMLName xml.Name             `json:"-" xml:"context" yaml:"-"`
	Summary types.ContextSummary `json:"summary" xml:"summary" yaml:"summary"`
	Files   []contextFile        `json:"files" xml:"files>file" yaml:"files"`
}

// WriteContext renders the combined text of the selected files. Raw output
// prints combined followed by the summary line; the structured formats list
// the files individually.
func WriteContext(writer io.Writer, combined string, files []*types.FileNode, summary types.ContextSummary, options Options) error {
	switch normalizeFormat(options.Format) {
	case types.FormatRaw:
		fmt.Fprint(writer, combined)
		if !strings.HasSuffix(combined, "\n") && combined != "" {
			fmt.Fprintln(writer)
		}
		fmt.Fprintln(writer, FormatSummaryLine(summary))
		return nil
	case types.FormatJSON, types.FormatXML, types.FormatYAML:
		document := contextDocument{Summary: summary, Files: make([]contextFile, 0, len(files))}
		for _, file := range files {
			document.Files = append(document.Files, contextFile{Path: file.Path, Content: file.ContentOrEmpty()})
		}
		return WriteValue(writer, document, options.Format)
	default:
		return fmt.Errorf(errorUnsupportedFormat, options.Format)
	}
}

// WriteValue encodes value in a structured format. Raw falls back to JSON.
func WriteValue(writer io.Writer, value any, format string) error {
	switch normalizeFormat(format) {
	case types.FormatRaw, types.FormatJSON:
		return writeJSON(writer, value)
	case types.FormatXML:
		return writeXML(writer, value)
	case types.FormatYAML:
		return writeYAML(writer, value)
	default:
		return fmt.Errorf(errorUnsupportedFormat, format)
	}
}

func writeJSON(writer io.Writer, value any) error {
	encoded, jsonEncodeError := json.MarshalIndent(value, indentPrefix, indentSpacer)
	if jsonEncodeError != nil {
		return jsonEncodeError
	}
	_, writeError := fmt.Fprintln(writer, string(encoded))
	return writeError
}

func writeXML(writer io.Writer, value any) error {
	encoded, xmlMarshalError := xml.MarshalIndent(value, indentPrefix, indentSpacer)
	if xmlMarshalError != nil {
		return xmlMarshalError
	}
	_, writeError := fmt.Fprintln(writer, xmlHeader+string(encoded))
	return writeError
}

func writeYAML(writer io.Writer, value any) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(yamlIndent)
	if encodeError := encoder.Encode(value); encodeError != nil {
		return encodeError
	}
	return encoder.Close()
}

func normalizeFormat(format string) string {
	normalized := strings.ToLower(strings.TrimSpace(format))
	if normalized == "" {
		return types.FormatRaw
	}
	return normalized
}

// IsSupportedFormat reports whether format names one of the renderers.
func IsSupportedFormat(format string) bool {
	switch normalizeFormat(format) {
	case types.FormatRaw, types.FormatJSON, types.FormatXML, types.FormatYAML:
		return true
	default:
		return false
	}
}

func nonNilTree(tree []*types.FileNode) []*types.FileNode {
	if tree == nil {
		return []*types.FileNode{}
	}
	return tree
}
