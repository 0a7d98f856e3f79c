package output

import (
	"fmt"
	"io"

	"github.com/unveilai/unveil/internal/assistant"
	"github.com/unveilai/unveil/internal/types"
)

const (
	codeSnippetsHeader = "Code snippets:"
	referencesHeader   = "References:"
	codeFence          = "```"
	referenceFormat    = "- %s (%s): %s\n"
	callPlacedFormat   = "Call %s placed; you will receive a call shortly.\n"
)

// WriteAnswer renders the backend's answer to a question.
func WriteAnswer(writer io.Writer, question assistant.Question, options Options) error {
	if normalizeFormat(options.Format) != types.FormatRaw {
		return WriteValue(writer, question, options.Format)
	}
	if question.Response == nil {
		return nil
	}
	answer := question.Response
	fmt.Fprintln(writer, answer.TextResponse)
	if len(answer.CodeSnippets) > 0 {
		fmt.Fprintln(writer)
		fmt.Fprintln(writer, codeSnippetsHeader)
		for _, snippet := range answer.CodeSnippets {
			fmt.Fprintln(writer, codeFence+snippet.Language)
			fmt.Fprintln(writer, snippet.Code)
			fmt.Fprintln(writer, codeFence)
			if snippet.Explanation != "" {
				fmt.Fprintln(writer, snippet.Explanation)
			}
		}
	}
	if len(answer.References) > 0 {
		fmt.Fprintln(writer)
		fmt.Fprintln(writer, referencesHeader)
		for _, reference := range answer.References {
			fmt.Fprintf(writer, referenceFormat, reference.Name, reference.Type, reference.Description)
		}
	}
	return nil
}

// WriteCallResult renders a placed call.
func WriteCallResult(writer io.Writer, result assistant.CallResult, options Options) error {
	if normalizeFormat(options.Format) != types.FormatRaw {
		return WriteValue(writer, result, options.Format)
	}
	_, writeError := fmt.Fprintf(writer, callPlacedFormat, result.CallID)
	return writeError
}
