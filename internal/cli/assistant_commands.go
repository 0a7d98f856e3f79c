package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unveilai/unveil/internal/assistant"
	"github.com/unveilai/unveil/internal/knowledge"
	"github.com/unveilai/unveil/internal/output"
	"github.com/unveilai/unveil/internal/selection"
	"github.com/unveilai/unveil/internal/types"
)

const (
	askUse              = types.CommandAsk + " <question>"
	askShortDescription = "ask the assistant about the selected code"
	askLongDescription  = `Send a question to the assistant backend together with the selected files.
Use --history to list the questions already asked about the current session,
or --id to show one stored question again.`
	askUsageExample = `  # Ask about the selected files
  unveil ask "How is the request router wired?"

  # Show previous questions as YAML
  unveil ask --history --format yaml`

	callUse              = types.CommandCall
	callShortDescription = "receive a phone call about the selected code"
	callLongDescription  = `Ask the backend to call a phone number; the voice agent is primed with the
selected files. Numbers use the international format, e.g. +1 555 123 4567.
Use --check to verify that the backend is configured for phone calls.`
	callUsageExample = `  # Place a call
  unveil call --phone "+1 555 123 4567"

  # Check the backend configuration
  unveil call --check`

	historyFlagName      = "history"
	questionIDFlagName   = "id"
	phoneFlagName        = "phone"
	instructionsFlagName = "instructions"
	voiceFlagName        = "voice"
	checkFlagName        = "check"

	historyFlagDescription      = "list previous questions instead of asking"
	questionIDFlagDescription   = "show a stored question by id instead of asking"
	phoneFlagDescription        = "phone number to call in international format"
	instructionsFlagDescription = "instructions for the voice agent"
	voiceFlagDescription        = "voice identifier, or default"
	checkFlagDescription        = "only check the backend phone configuration"

	historySeparator = "\n---\n\n"
	questionPrefix   = "Q: "
)

var errMissingQuestion = errors.New("provide a question, or use --history or --id")

func createAskCommand(app *application) *cobra.Command {
	var showHistory bool
	var questionID string

	askCommand := &cobra.Command{
		Use:     askUse,
		Short:   askShortDescription,
		Long:    askLongDescription,
		Example: askUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			current, loadError := app.store.Load()
			if loadError != nil {
				return loadError
			}
			client := app.assistantClient()
			options := app.outputOptions()

			if showHistory {
				questions, listError := client.ListQuestions(command.Context(), current.ID)
				if listError != nil {
					return listError
				}
				return writeQuestionHistory(app, questions, options)
			}
			if questionID != "" {
				stored, getError := client.GetQuestion(command.Context(), questionID)
				if getError != nil {
					return getError
				}
				return output.WriteAnswer(app.stdout(), stored, options)
			}

			questionText := strings.TrimSpace(strings.Join(arguments, " "))
			if questionText == "" {
				return errMissingQuestion
			}
			answered, askError := client.Ask(command.Context(), assistant.QuestionRequest{
				RepositoryID: current.ID,
				Question:     questionText,
				Context:      knowledge.Combine(selection.CollectSelectedFiles(current.Tree)),
			})
			if askError != nil {
				return askError
			}
			return output.WriteAnswer(app.stdout(), answered, options)
		},
	}
	registerBooleanFlag(askCommand.Flags(), &showHistory, historyFlagName, false, historyFlagDescription)
	askCommand.Flags().StringVar(&questionID, questionIDFlagName, "", questionIDFlagDescription)
	return askCommand
}

func writeQuestionHistory(app *application, questions []assistant.Question, options output.Options) error {
	if options.Format != "" && options.Format != types.FormatRaw {
		if questions == nil {
			questions = []assistant.Question{}
		}
		return output.WriteValue(app.stdout(), questions, options.Format)
	}
	for index, question := range questions {
		if index > 0 {
			fmt.Fprint(app.stdout(), historySeparator)
		}
		fmt.Fprintln(app.stdout(), questionPrefix+question.Question)
		if writeError := output.WriteAnswer(app.stdout(), question, options); writeError != nil {
			return writeError
		}
	}
	return nil
}

func createCallCommand(app *application) *cobra.Command {
	var callOptions assistant.CallOptions
	var checkOnly bool

	callCommand := &cobra.Command{
		Use:     callUse,
		Short:   callShortDescription,
		Long:    callLongDescription,
		Example: callUsageExample,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			client := app.assistantClient()
			if checkOnly {
				status, checkError := client.CheckCallConfig(command.Context())
				if checkError != nil {
					return checkError
				}
				return output.WriteValue(app.stdout(), status, app.options.format)
			}

			current, loadError := app.store.Load()
			if loadError != nil {
				return loadError
			}
			files, selectionError := selectedFiles(current)
			if selectionError != nil {
				return selectionError
			}
			if !command.Flags().Changed(voiceFlagName) && app.configuration.Assistant.Voice != "" {
				callOptions.VoiceID = app.configuration.Assistant.Voice
			}
			callRequest, requestError := assistant.NewCallRequest(files, callOptions)
			if requestError != nil {
				return requestError
			}
			result, callError := client.PlaceCall(command.Context(), callRequest)
			if callError != nil {
				return callError
			}
			return output.WriteCallResult(app.stdout(), result, app.outputOptions())
		},
	}
	flags := callCommand.Flags()
	flags.StringVar(&callOptions.PhoneNumber, phoneFlagName, "", phoneFlagDescription)
	flags.StringVar(&callOptions.Instructions, instructionsFlagName, "", instructionsFlagDescription)
	flags.StringVar(&callOptions.VoiceID, voiceFlagName, "", voiceFlagDescription)
	registerBooleanFlag(flags, &checkOnly, checkFlagName, false, checkFlagDescription)
	return callCommand
}
