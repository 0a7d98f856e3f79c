// Package knowledge combines selected files into the plain text context that
// is handed to the assistant backend.
package knowledge

import (
	"strings"

	"github.com/unveilai/unveil/internal/tokenizer"
	"github.com/unveilai/unveil/internal/types"
	"github.com/unveilai/unveil/internal/utils"
)

const (
	filePrefix                = "File: "
	missingContentPlaceholder = "// Content not available"
	fileSeparator             = "\n---\n\n"

	// Name and Description label the combined text when it is uploaded as a
	// knowledge base.
	Name        = "Code Repository Analysis"
	Description = "Selected files from the user's code repository"
)

// Combine renders each file as a header line followed by its content and
// joins the sections with a separator line.
func Combine(files []*types.FileNode) string {
	sections := make([]string, 0, len(files))
	for _, file := range files {
		var section strings.Builder
		section.WriteString(filePrefix)
		section.WriteString(file.Path)
		section.WriteString("\n\n")
		if content := file.ContentOrEmpty(); content != "" {
			section.WriteString(content)
		} else {
			section.WriteString(missingContentPlaceholder)
		}
		section.WriteString("\n\n")
		sections = append(sections, section.String())
	}
	return strings.Join(sections, fileSeparator)
}

// Summarize returns aggregate figures for files. Tokens are counted over the
// combined text when counter is not nil.
func Summarize(files []*types.FileNode, counter tokenizer.Counter, model string) (types.ContextSummary, error) {
	var totalBytes int64
	for _, file := range files {
		totalBytes += int64(len(file.ContentOrEmpty()))
	}
	summary := types.ContextSummary{
		TotalFiles: len(files),
		TotalBytes: totalBytes,
		TotalSize:  utils.FormatFileSize(totalBytes),
	}
	if counter == nil || len(files) == 0 {
		return summary, nil
	}
	countResult, countError := tokenizer.CountText(counter, Combine(files))
	if countError != nil {
		return summary, countError
	}
	if countResult.Counted {
		summary.TotalTokens = countResult.Tokens
		summary.Model = model
	}
	return summary, nil
}
