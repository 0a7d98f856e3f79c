// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unveilai/unveil/internal/assistant"
	"github.com/unveilai/unveil/internal/config"
	"github.com/unveilai/unveil/internal/ingest"
	"github.com/unveilai/unveil/internal/output"
	"github.com/unveilai/unveil/internal/services/clipboard"
	"github.com/unveilai/unveil/internal/session"
	"github.com/unveilai/unveil/internal/utils"
)

const (
	configFlagName      = "config"
	verboseFlagName     = "verbose"
	formatFlagName      = "format"
	noColorFlagName     = "no-color"
	metricsFileFlagName = "metrics-file"
	sessionFlagName     = "session"
	copyFlagName        = "copy"

	rootUse              = "unveil"
	rootShortDescription = "unveil command line interface"
	rootLongDescription  = `unveil ingests a code repository, lets you select files from its tree and
hands the selected code to an AI assistant.
Ingest a local directory or a GitHub URL, then use tree, select and context to
prepare the context, and ask or call to talk to the assistant about it.
Use --format to select raw, json, xml or yaml output.`
	versionTemplate = "unveil version: {{.Version}}\n"

	configFlagDescription      = "configuration file (default ./" + utils.ConfigFileName + ")"
	verboseFlagDescription     = "enable debug logging"
	formatFlagDescription      = "output format: raw, json, xml or yaml"
	noColorFlagDescription     = "disable colored output"
	metricsFileFlagDescription = "write ingestion metrics in Prometheus text format to this file"
	sessionFlagDescription     = "session file (default in the user cache directory)"
	copyFlagDescription        = "copy the combined context to the clipboard"

	userAgent = utils.ApplicationName + "-cli"

	invalidFormatMessage    = "invalid format value '%s'"
	errorWriteMetricsFormat = "write metrics to %s: %w"
)

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// Dependencies replaces process-wide collaborators. Zero fields fall back to
// the standard streams, a zap console logger, net/http and the system clipboard.
type Dependencies struct {
	Stdout            io.Writer
	Stderr            io.Writer
	Logger            *zap.Logger
	HTTPClient        httpClient
	Copier            clipboard.Copier
	WorkingDirectory  string
	LookupEnvironment func(key string) (string, bool)
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath  string
	verbose     bool
	format      string
	noColor     bool
	metricsFile string
	sessionPath string
}

// application carries what every subcommand needs once flags and
// configuration have been resolved.
type application struct {
	dependencies  Dependencies
	options       rootOptions
	configuration config.ApplicationConfiguration
	logger        *zap.Logger
	registry      *prometheus.Registry
	metrics       *ingest.Metrics
	store         session.Store
}

// Execute runs the unveil application.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rootCommand := newRootCommand(Dependencies{})
	rootCommand.SetArgs(normalizeArguments(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

func normalizeArguments(rootCommand *cobra.Command, arguments []string) []string {
	return normalizeBooleanFlagArguments(rootCommand, normalizeCopyFlagArguments(arguments))
}

// newRootCommand builds the root Cobra command.
func newRootCommand(dependencies Dependencies) *cobra.Command {
	app := &application{dependencies: dependencies}

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Version:       utils.GetApplicationVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return app.prepare()
		},
		PersistentPostRunE: func(command *cobra.Command, arguments []string) error {
			return app.writeMetrics()
		},
	}
	rootCommand.SetVersionTemplate(versionTemplate)
	rootCommand.SetOut(app.stdout())
	rootCommand.SetErr(app.stderr())

	persistentFlags := rootCommand.PersistentFlags()
	persistentFlags.StringVar(&app.options.configPath, configFlagName, "", configFlagDescription)
	registerBooleanFlag(persistentFlags, &app.options.verbose, verboseFlagName, false, verboseFlagDescription)
	persistentFlags.StringVar(&app.options.format, formatFlagName, "", formatFlagDescription)
	registerBooleanFlag(persistentFlags, &app.options.noColor, noColorFlagName, false, noColorFlagDescription)
	persistentFlags.StringVar(&app.options.metricsFile, metricsFileFlagName, "", metricsFileFlagDescription)
	persistentFlags.StringVar(&app.options.sessionPath, sessionFlagName, "", sessionFlagDescription)

	rootCommand.AddCommand(
		createIngestCommand(app),
		createTreeCommand(app),
		createSelectCommand(app),
		createContextCommand(app),
		createSessionCommand(app),
		createAskCommand(app),
		createCallCommand(app),
		createInitCommand(app),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// prepare loads configuration and builds the shared collaborators.
func (app *application) prepare() error {
	configuration, loadError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory:  app.dependencies.WorkingDirectory,
		ExplicitFilePath:  app.options.configPath,
		LookupEnvironment: app.dependencies.LookupEnvironment,
	})
	if loadError != nil {
		return loadError
	}
	app.configuration = configuration

	if app.options.format == "" {
		app.options.format = configuration.Format
	}
	if !output.IsSupportedFormat(app.options.format) {
		return fmt.Errorf(invalidFormatMessage, app.options.format)
	}

	app.logger = app.dependencies.Logger
	if app.logger == nil {
		verbose := app.options.verbose || config.BoolOrDefault(configuration.Assistant.Debug, false)
		logger, loggerError := utils.NewLeveledLogger(verbose)
		if loggerError != nil {
			return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerError)
		}
		app.logger = logger
	}

	sessionPath := app.options.sessionPath
	if sessionPath == "" {
		sessionPath = configuration.Session.Path
	}
	store, storeError := session.NewStore(sessionPath)
	if storeError != nil {
		return storeError
	}
	app.store = store

	app.registry = prometheus.NewRegistry()
	app.metrics = ingest.NewMetrics(app.registry)
	return nil
}

func (app *application) writeMetrics() error {
	if app.options.metricsFile == "" || app.registry == nil {
		return nil
	}
	if writeError := prometheus.WriteToTextfile(app.options.metricsFile, app.registry); writeError != nil {
		return fmt.Errorf(errorWriteMetricsFormat, app.options.metricsFile, writeError)
	}
	return nil
}

func (app *application) stdout() io.Writer {
	if app.dependencies.Stdout != nil {
		return app.dependencies.Stdout
	}
	return os.Stdout
}

func (app *application) stderr() io.Writer {
	if app.dependencies.Stderr != nil {
		return app.dependencies.Stderr
	}
	return os.Stderr
}

func (app *application) copier() clipboard.Copier {
	if app.dependencies.Copier != nil {
		return app.dependencies.Copier
	}
	return clipboard.NewService()
}

func (app *application) outputOptions() output.Options {
	return output.Options{
		Format:   strings.ToLower(app.options.format),
		Colorize: !app.options.noColor && !color.NoColor && isTerminal(app.stdout()),
	}
}

func (app *application) assistantClient() assistant.Client {
	assistantConfiguration := app.configuration.Assistant
	return assistant.NewClient(app.dependencies.HTTPClient).
		WithBaseURL(assistantConfiguration.BaseURL).
		WithTimeout(assistantConfiguration.Timeout).
		WithUserAgent(userAgent).
		WithLogger(app.logger)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	return ok && isatty.IsTerminal(file.Fd())
}
