package output_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/unveilai/unveil/internal/assistant"
	"github.com/unveilai/unveil/internal/output"
	"github.com/unveilai/unveil/internal/types"
)

// treeRawExpected defines the expected raw rendering of sampleTree.
const treeRawExpected = "├── [x] src/\n" +
	"│   ├── [x] index.ts\n" +
	"│   └── [ ] empty/\n" +
	"└── [ ] README.md\n"

func sampleTree() []*types.FileNode {
	indexNode := types.NewFileNode("index.ts", "src/index.ts", "main()")
	indexNode.Selected = true
	sourceNode := types.NewDirectoryNode("src", "src", []*types.FileNode{
		indexNode,
		types.NewDirectoryNode("empty", "src/empty", nil),
	})
	sourceNode.Selected = true
	return []*types.FileNode{sourceNode, types.NewFileNode("README.md", "README.md", "# sample")}
}

// TestWriteTreeRaw verifies connectors and selection markers.
func TestWriteTreeRaw(testingInstance *testing.T) {
	var buffer bytes.Buffer
	if err := output.WriteTree(&buffer, sampleTree(), output.Options{Format: types.FormatRaw}); err != nil {
		testingInstance.Fatalf("WriteTree: %v", err)
	}
	if buffer.String() != treeRawExpected {
		testingInstance.Errorf("unexpected output:\n%s", buffer.String())
	}

	buffer.Reset()
	output.WriteTreeRaw(&buffer, nil, false)
	if buffer.String() != "(empty tree)\n" {
		testingInstance.Errorf("unexpected empty tree output %q", buffer.String())
	}
}

// TestWriteTreeRawColorized verifies that colors wrap directory names only when enabled.
func TestWriteTreeRawColorized(testingInstance *testing.T) {
	var buffer bytes.Buffer
	output.WriteTreeRaw(&buffer, sampleTree(), true)
	if !strings.Contains(buffer.String(), "\x1b[") {
		testingInstance.Fatalf("expected ANSI escape codes, got %q", buffer.String())
	}
	if !strings.Contains(buffer.String(), "README.md") {
		testingInstance.Fatalf("file name missing from colorized output")
	}
}

// TestWriteTreeStructuredFormats verifies JSON, XML and YAML tree encodings.
func TestWriteTreeStructuredFormats(testingInstance *testing.T) {
	var jsonBuffer bytes.Buffer
	if err := output.WriteTree(&jsonBuffer, sampleTree(), output.Options{Format: types.FormatJSON}); err != nil {
		testingInstance.Fatalf("json: %v", err)
	}
	var decoded []*types.FileNode
	if err := json.Unmarshal(jsonBuffer.Bytes(), &decoded); err != nil {
		testingInstance.Fatalf("decode json: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Children[1].Children == nil || !decoded[0].Children[0].Selected {
		testingInstance.Fatalf("unexpected json tree %s", jsonBuffer.String())
	}
	if !strings.Contains(jsonBuffer.String(), `"children": []`) {
		testingInstance.Fatalf("empty directories must encode an empty children array: %s", jsonBuffer.String())
	}

	var xmlBuffer bytes.Buffer
	if err := output.WriteTree(&xmlBuffer, sampleTree(), output.Options{Format: types.FormatXML}); err != nil {
		testingInstance.Fatalf("xml: %v", err)
	}
	for _, fragment := range []string{"<?xml", "<tree>", "<path>src/index.ts</path>", "<selected>true</selected>"} {
		if !strings.Contains(xmlBuffer.String(), fragment) {
			testingInstance.Fatalf("xml output missing %q:\n%s", fragment, xmlBuffer.String())
		}
	}

	var yamlBuffer bytes.Buffer
	if err := output.WriteTree(&yamlBuffer, sampleTree(), output.Options{Format: types.FormatYAML}); err != nil {
		testingInstance.Fatalf("yaml: %v", err)
	}
	var yamlNodes []map[string]any
	if err := yaml.Unmarshal(yamlBuffer.Bytes(), &yamlNodes); err != nil {
		testingInstance.Fatalf("decode yaml: %v", err)
	}
	if len(yamlNodes) != 2 || yamlNodes[1]["path"] != "README.md" {
		testingInstance.Fatalf("unexpected yaml tree %s", yamlBuffer.String())
	}

	if err := output.WriteTree(&bytes.Buffer{}, sampleTree(), output.Options{Format: "toml"}); err == nil {
		testingInstance.Fatalf("expected unsupported format error")
	}
}

// TestFormatSummaryLine verifies pluralization, tokens and model suffix.
func TestFormatSummaryLine(testingInstance *testing.T) {
	testCases := []struct {
		name     string
		summary  types.ContextSummary
		expected string
	}{
		{name: "single file", summary: types.ContextSummary{TotalFiles: 1, TotalSize: "10b"}, expected: "Summary: 1 file, 10b"},
		{name: "tokens and model", summary: types.ContextSummary{TotalFiles: 3, TotalSize: "2kb", TotalTokens: 42, Model: "gpt-4o"}, expected: "Summary: 3 files, 2kb, 42 tokens (model: gpt-4o)"},
	}
	for _, testCase := range testCases {
		if actual := output.FormatSummaryLine(testCase.summary); actual != testCase.expected {
			testingInstance.Errorf("%s: got %q, want %q", testCase.name, actual, testCase.expected)
		}
	}
}

// TestWriteContext verifies the raw and structured context renderings.
func TestWriteContext(testingInstance *testing.T) {
	files := []*types.FileNode{types.NewFileNode("index.ts", "src/index.ts", "main()")}
	summary := types.ContextSummary{TotalFiles: 1, TotalSize: "6b"}
	combined := "File: src/index.ts\n\nmain()\n\n"

	var rawBuffer bytes.Buffer
	if err := output.WriteContext(&rawBuffer, combined, files, summary, output.Options{}); err != nil {
		testingInstance.Fatalf("raw: %v", err)
	}
	if rawBuffer.String() != combined+"Summary: 1 file, 6b\n" {
		testingInstance.Fatalf("unexpected raw context %q", rawBuffer.String())
	}

	var jsonBuffer bytes.Buffer
	if err := output.WriteContext(&jsonBuffer, combined, files, summary, output.Options{Format: types.FormatJSON}); err != nil {
		testingInstance.Fatalf("json: %v", err)
	}
	var document struct {
		Summary types.ContextSummary `json:"summary"`
		Files   []struct {
			Path    string `json:"path"`
			Content string `json:"content"`
		} `json:"files"`
	}
	if err := json.Unmarshal(jsonBuffer.Bytes(), &document); err != nil {
		testingInstance.Fatalf("decode: %v", err)
	}
	if document.Summary.TotalFiles != 1 || len(document.Files) != 1 || document.Files[0].Content != "main()" {
		testingInstance.Fatalf("unexpected document %+v", document)
	}

	var xmlBuffer bytes.Buffer
	if err := output.WriteContext(&xmlBuffer, combined, files, summary, output.Options{Format: types.FormatXML}); err != nil {
		testingInstance.Fatalf("xml: %v", err)
	}
	if !strings.Contains(xmlBuffer.String(), "<path>src/index.ts</path>") {
		testingInstance.Fatalf("unexpected xml context %s", xmlBuffer.String())
	}
}

// TestWriteAnswer verifies the raw answer layout.
func TestWriteAnswer(testingInstance *testing.T) {
	question := assistant.Question{
		Question: "What does main do?",
		Response: &assistant.Answer{
			TextResponse: "It starts the server.",
			CodeSnippets: []assistant.CodeSnippet{{Language: "go", Code: "func main() {}"}},
			References:   []assistant.Reference{{Type: "function", Name: "main", Description: "entry point"}},
		},
	}
	var buffer bytes.Buffer
	if err := output.WriteAnswer(&buffer, question, output.Options{}); err != nil {
		testingInstance.Fatalf("WriteAnswer: %v", err)
	}
	expected := "It starts the server.\n\nCode snippets:\n```go\nfunc main() {}\n```\n\nReferences:\n- main (function): entry point\n"
	if buffer.String() != expected {
		testingInstance.Fatalf("unexpected answer output %q", buffer.String())
	}

	buffer.Reset()
	if err := output.WriteCallResult(&buffer, assistant.CallResult{CallID: "call-42"}, output.Options{}); err != nil {
		testingInstance.Fatalf("WriteCallResult: %v", err)
	}
	if !strings.Contains(buffer.String(), "call-42") {
		testingInstance.Fatalf("unexpected call output %q", buffer.String())
	}
}

// TestIsSupportedFormat verifies format validation.
func TestIsSupportedFormat(testingInstance *testing.T) {
	for _, format := range []string{"", "raw", "JSON", "xml", "yaml"} {
		if !output.IsSupportedFormat(format) {
			testingInstance.Errorf("expected %q to be supported", format)
		}
	}
	if output.IsSupportedFormat("toon") {
		testingInstance.Errorf("toon should not be supported")
	}
}
