package cli

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unveilai/unveil/internal/config"
	"github.com/unveilai/unveil/internal/knowledge"
	"github.com/unveilai/unveil/internal/output"
	"github.com/unveilai/unveil/internal/selection"
	"github.com/unveilai/unveil/internal/session"
	"github.com/unveilai/unveil/internal/tokenizer"
	"github.com/unveilai/unveil/internal/types"
	"github.com/unveilai/unveil/internal/utils"
)

const (
	treeUse              = types.CommandTree + " [path]"
	treeAlias            = "t"
	treeShortDescription = "display the ingested tree (" + treeAlias + ")"
	treeLongDescription  = `Display the tree of the current session.
Selected nodes are marked with [x]. Pass a path to show only that subtree.
Use --format to select raw, json, xml or yaml output.`

	selectUse              = types.CommandSelect + " [paths...]"
	selectAlias            = "s"
	selectShortDescription = "select files and directories (" + selectAlias + ")"
	selectLongDescription  = `Select or deselect nodes of the current session tree.
Paths are relative to the repository root. Selecting a directory selects
everything below it.`
	selectUsageExample = `  # Select a directory and a file
  unveil select src README.md

  # Deselect tests
  unveil select --deselect src/tests

  # Clear the selection
  unveil select --clear`

	contextUse              = types.CommandContext
	contextAlias            = "ctx"
	contextShortDescription = "print the combined text of the selected files"
	contextLongDescription  = `Combine the selected files into one text block, the context handed to the
assistant, and print it followed by a summary. Use --copy to also place it on the clipboard.`

	sessionUse              = "session"
	sessionShortDescription = "show or reset the current session"
	sessionLongDescription  = `Show where the current tree came from, when it was ingested and how many
files are selected. Use --reset to forget the session.`

	sessionInfoFormat = "Session:  %s\nSource:   %s\nIngested: %s\nUpdated:  %s\nNodes:    %d\nFiles:    %d (%d selected)\n"
	sessionResetLine  = "Session reset."
	resetFlagName     = "reset"
	resetDescription  = "delete the stored session"

	allFlagName      = "all"
	clearFlagName    = "clear"
	deselectFlagName = "deselect"
	tokensFlagName   = "tokens"
	modelFlagName    = "model"

	allFlagDescription      = "select every node"
	clearFlagDescription    = "clear the selection"
	deselectFlagDescription = "deselect the given paths instead of selecting them"
	tokensFlagDescription   = "count tokens of the combined context"
	modelFlagDescription    = "tokenizer model to use for token counting"

	defaultTokenizerModelName = "gpt-4o"
	logMessageCopied          = "context copied to clipboard"
	logFieldBytes             = "bytes"
)

var (
	errConflictingSelectionFlags = errors.New("--all and --clear cannot be combined")
	errNothingToSelect           = errors.New("provide paths to select, or use --all or --clear")
	errNoSelection               = errors.New("no files selected; run `unveil select <path>` first")
)

func createTreeCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			current, loadError := app.store.Load()
			if loadError != nil {
				return loadError
			}
			tree := current.Tree
			if len(arguments) == 1 {
				requestedPath := normalizeSelectionPath(arguments[0])
				node := selection.FindByPath(tree, requestedPath)
				if node == nil {
					return fmt.Errorf("%w: %s", selection.ErrNodeNotFound, requestedPath)
				}
				tree = []*types.FileNode{node}
			}
			return output.WriteTree(app.stdout(), tree, app.outputOptions())
		},
	}
}

// sessionInfo is the structured form of the session command output.
type sessionInfo struct {
	ID            string    `json:"id" xml:"id" yaml:"id"`
	Source        string    `json:"source" xml:"source" yaml:"source"`
	CreatedAt     time.Time `json:"createdAt" xml:"createdAt" yaml:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" xml:"updatedAt" yaml:"updatedAt"`
	Nodes         int       `json:"nodes" xml:"nodes" yaml:"nodes"`
	Files         int       `json:"files" xml:"files" yaml:"files"`
	SelectedFiles int       `json:"selectedFiles" xml:"selectedFiles" yaml:"selectedFiles"`
}

func createSessionCommand(app *application) *cobra.Command {
	var reset bool

	sessionCommand := &cobra.Command{
		Use:   sessionUse,
		Short: sessionShortDescription,
		Long:  sessionLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			if reset {
				if clearError := app.store.Clear(); clearError != nil {
					return clearError
				}
				_, writeError := fmt.Fprintln(app.stdout(), sessionResetLine)
				return writeError
			}
			current, loadError := app.store.Load()
			if loadError != nil {
				return loadError
			}
			info := sessionInfo{
				ID:            current.ID,
				Source:        current.Source,
				CreatedAt:     current.CreatedAt,
				UpdatedAt:     current.UpdatedAt,
				Nodes:         selection.CountNodes(current.Tree),
				Files:         selection.CountFiles(current.Tree),
				SelectedFiles: len(selection.CollectSelectedFiles(current.Tree)),
			}
			options := app.outputOptions()
			if options.Format != "" && options.Format != types.FormatRaw {
				return output.WriteValue(app.stdout(), info, options.Format)
			}
			_, writeError := fmt.Fprintf(app.stdout(), sessionInfoFormat,
				info.ID, info.Source, utils.FormatTimestamp(info.CreatedAt), utils.FormatTimestamp(info.UpdatedAt),
				info.Nodes, info.Files, info.SelectedFiles)
			return writeError
		},
	}
	registerBooleanFlag(sessionCommand.Flags(), &reset, resetFlagName, false, resetDescription)
	return sessionCommand
}

func createSelectCommand(app *application) *cobra.Command {
	var selectAll bool
	var clearAll bool
	var deselect bool

	selectCommand := &cobra.Command{
		Use:     selectUse,
		Aliases: []string{selectAlias},
		Short:   selectShortDescription,
		Long:    selectLongDescription,
		Example: selectUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			current, loadError := app.store.Load()
			if loadError != nil {
				return loadError
			}
			updatedTree, selectError := applySelection(current.Tree, arguments, selectAll, clearAll, deselect)
			if selectError != nil {
				return selectError
			}
			if saveError := app.store.Save(current.WithTree(updatedTree)); saveError != nil {
				return saveError
			}
			return output.WriteTree(app.stdout(), updatedTree, app.outputOptions())
		},
	}
	flags := selectCommand.Flags()
	registerBooleanFlag(flags, &selectAll, allFlagName, false, allFlagDescription)
	registerBooleanFlag(flags, &clearAll, clearFlagName, false, clearFlagDescription)
	registerBooleanFlag(flags, &deselect, deselectFlagName, false, deselectFlagDescription)
	return selectCommand
}

// applySelection returns a new tree; tree itself is never modified.
func applySelection(tree []*types.FileNode, arguments []string, selectAll bool, clearAll bool, deselect bool) ([]*types.FileNode, error) {
	switch {
	case selectAll && clearAll:
		return nil, errConflictingSelectionFlags
	case selectAll:
		return selection.SetAll(tree, true), nil
	case clearAll:
		return selection.SetAll(tree, false), nil
	case len(arguments) == 0:
		return nil, errNothingToSelect
	}
	paths := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		paths = append(paths, normalizeSelectionPath(argument))
	}
	return selection.ToggleAll(tree, paths, !deselect)
}

func normalizeSelectionPath(argument string) string {
	return path.Clean(utils.NormalizeSlashes(strings.TrimSpace(argument)))
}

func createContextCommand(app *application) *cobra.Command {
	var copyToClipboard bool
	var tokensEnabled bool
	var tokenModel string

	contextCommand := &cobra.Command{
		Use:     contextUse,
		Aliases: []string{contextAlias},
		Short:   contextShortDescription,
		Long:    contextLongDescription,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			flags := command.Flags()
			if !flags.Changed(copyFlagName) {
				copyToClipboard = config.BoolOrDefault(app.configuration.Clipboard.Copy, false)
			}
			if !flags.Changed(tokensFlagName) {
				tokensEnabled = config.BoolOrDefault(app.configuration.Tokens.Enabled, false)
			}
			if !flags.Changed(modelFlagName) && app.configuration.Tokens.Model != "" {
				tokenModel = app.configuration.Tokens.Model
			}
			return app.runContext(tokensEnabled, tokenModel, copyToClipboard)
		},
	}
	flags := contextCommand.Flags()
	registerCopyFlag(flags, &copyToClipboard)
	registerBooleanFlag(flags, &tokensEnabled, tokensFlagName, false, tokensFlagDescription)
	flags.StringVar(&tokenModel, modelFlagName, defaultTokenizerModelName, modelFlagDescription)
	return contextCommand
}

func (app *application) runContext(tokensEnabled bool, tokenModel string, copyToClipboard bool) error {
	current, loadError := app.store.Load()
	if loadError != nil {
		return loadError
	}
	files, selectionError := selectedFiles(current)
	if selectionError != nil {
		return selectionError
	}

	var tokenCounter tokenizer.Counter
	var resolvedModel string
	if tokensEnabled {
		createdCounter, modelName, counterError := tokenizer.NewCounter(tokenizer.Config{Model: tokenModel})
		if counterError != nil {
			return counterError
		}
		tokenCounter = createdCounter
		resolvedModel = modelName
	}

	combined := knowledge.Combine(files)
	summary, summaryError := knowledge.Summarize(files, tokenCounter, resolvedModel)
	if summaryError != nil {
		return summaryError
	}
	if writeError := output.WriteContext(app.stdout(), combined, files, summary, app.outputOptions()); writeError != nil {
		return writeError
	}
	if !copyToClipboard {
		return nil
	}
	if copyError := app.copier().Copy(combined); copyError != nil {
		return copyError
	}
	app.logger.Info(logMessageCopied, zap.Int(logFieldBytes, len(combined)))
	return nil
}

func selectedFiles(current session.Session) ([]*types.FileNode, error) {
	files := selection.CollectSelectedFiles(current.Tree)
	if len(files) == 0 {
		return nil, errNoSelection
	}
	return files, nil
}
