package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/unveilai/unveil/internal/config"
	"github.com/unveilai/unveil/internal/ingest"
	"github.com/unveilai/unveil/internal/output"
	"github.com/unveilai/unveil/internal/selection"
	"github.com/unveilai/unveil/internal/session"
	"github.com/unveilai/unveil/internal/source"
	"github.com/unveilai/unveil/internal/types"
)

const (
	ingestUse              = types.CommandIngest + " <directory|url>"
	ingestAlias            = "i"
	ingestShortDescription = "ingest a repository directory or GitHub URL (" + ingestAlias + ")"
	ingestLongDescription  = `Read a repository into the session tree.
A local directory must contain a .git directory unless --require-repository=false.
Ignore patterns come from built-in defaults, the repository's root .gitignore,
the configuration and --exclude. A successful ingestion replaces the previous
session; a failed one leaves it untouched.`
	ingestUsageExample = `  # Ingest the current repository
  unveil ingest .

  # Import a branch of a GitHub repository
  unveil ingest https://github.com/owner/project --branch develop

  # Exclude fixtures and fail on unreadable files
  unveil ingest -e fixtures/ --read-failure abort ../service`

	exclusionFlagName         = "exclude"
	exclusionFlagShorthand    = "e"
	branchFlagName            = "branch"
	concurrencyFlagName       = "concurrency"
	readFailureFlagName       = "read-failure"
	requireRepositoryFlagName = "require-repository"
	progressFlagName          = "progress"

	exclusionFlagDescription         = "exclude path pattern (repeatable)"
	branchFlagDescription            = "branch or tag to download for GitHub URLs"
	concurrencyFlagDescription       = "number of files read in parallel"
	readFailureFlagDescription       = "what to do with unreadable files: skip or abort"
	requireRepositoryFlagDescription = "require a .git directory in local sources"
	progressFlagDescription          = "show a progress bar while reading files"

	defaultIngestConcurrency = 8

	errorIngestFormat      = "ingest %s: %w"
	errorRepositoryURL     = "parse repository URL: %w"
	logMessageIngested     = "repository ingested"
	logFieldSource         = "source"
	logFieldFiles          = "files"
	logFieldSession        = "session"
	logFieldExclusionCount = "exclusions"
)

// ingestOptions are the resolved ingestion settings: flags when given,
// configuration otherwise.
type ingestOptions struct {
	exclusionPatterns []string
	branch            string
	concurrency       int
	readFailurePolicy string
	requireRepository bool
	showProgress      bool
}

func createIngestCommand(app *application) *cobra.Command {
	var flagOptions ingestOptions

	ingestCommand := &cobra.Command{
		Use:     ingestUse,
		Aliases: []string{ingestAlias},
		Short:   ingestShortDescription,
		Long:    ingestLongDescription,
		Example: ingestUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			options, resolveError := resolveIngestOptions(command.Flags(), flagOptions, app.configuration)
			if resolveError != nil {
				return resolveError
			}
			return app.runIngest(command.Context(), arguments[0], options)
		},
	}

	flags := ingestCommand.Flags()
	flags.StringArrayVarP(&flagOptions.exclusionPatterns, exclusionFlagName, exclusionFlagShorthand, nil, exclusionFlagDescription)
	flags.StringVar(&flagOptions.branch, branchFlagName, "", branchFlagDescription)
	flags.IntVar(&flagOptions.concurrency, concurrencyFlagName, defaultIngestConcurrency, concurrencyFlagDescription)
	flags.StringVar(&flagOptions.readFailurePolicy, readFailureFlagName, string(ingest.ReadFailureSkip), readFailureFlagDescription)
	registerBooleanFlag(flags, &flagOptions.requireRepository, requireRepositoryFlagName, true, requireRepositoryFlagDescription)
	registerBooleanFlag(flags, &flagOptions.showProgress, progressFlagName, true, progressFlagDescription)
	return ingestCommand
}

func resolveIngestOptions(flags *pflag.FlagSet, flagOptions ingestOptions, configuration config.ApplicationConfiguration) (ingestOptions, error) {
	ingestConfiguration := configuration.Ingest
	configuredPatterns, patternError := ingestConfiguration.ExcludePatterns()
	if patternError != nil {
		return ingestOptions{}, patternError
	}

	resolved := ingestOptions{
		exclusionPatterns: append(configuredPatterns, flagOptions.exclusionPatterns...),
		branch:            flagOptions.branch,
		concurrency:       config.IntOrDefault(ingestConfiguration.Concurrency, defaultIngestConcurrency),
		readFailurePolicy: ingestConfiguration.ReadFailurePolicy,
		requireRepository: config.BoolOrDefault(ingestConfiguration.RequireRepository, true),
		showProgress:      config.BoolOrDefault(ingestConfiguration.Progress, true),
	}
	if flags.Changed(concurrencyFlagName) {
		resolved.concurrency = flagOptions.concurrency
	}
	if flags.Changed(readFailureFlagName) {
		resolved.readFailurePolicy = flagOptions.readFailurePolicy
	}
	if flags.Changed(requireRepositoryFlagName) {
		resolved.requireRepository = flagOptions.requireRepository
	}
	if flags.Changed(progressFlagName) {
		resolved.showProgress = flagOptions.showProgress
	}
	return resolved, nil
}

// runIngest builds the tree of input and stores it as the new session.
func (app *application) runIngest(ctx context.Context, input string, options ingestOptions) error {
	policy, policyError := ingest.ParseReadFailurePolicy(options.readFailurePolicy)
	if policyError != nil {
		return policyError
	}

	set, loadError := app.loadSource(ctx, input, options.branch)
	if loadError != nil {
		return fmt.Errorf(errorIngestFormat, input, loadError)
	}

	builder := ingest.Builder{
		Decoder:             source.TextDecoder{},
		Concurrency:         options.concurrency,
		ReadFailurePolicy:   policy,
		SkipRepositoryCheck: !options.requireRepository,
		ExtraPatterns:       options.exclusionPatterns,
		Logger:              app.logger,
		Metrics:             app.metrics,
		Progress:            ingest.NewProgressConfig(options.showProgress, app.options.noColor),
	}
	tree, buildError := builder.BuildRepositoryTree(ctx, set)
	if buildError != nil {
		return fmt.Errorf(errorIngestFormat, input, buildError)
	}

	ingested := session.New(set.Origin, tree)
	if saveError := app.store.Save(ingested); saveError != nil {
		return saveError
	}
	app.logger.Info(logMessageIngested,
		zap.String(logFieldSource, set.Origin),
		zap.Int(logFieldFiles, selection.CountFiles(tree)),
		zap.Int(logFieldExclusionCount, len(options.exclusionPatterns)),
		zap.String(logFieldSession, ingested.ID),
	)
	return output.WriteTree(app.stdout(), tree, app.outputOptions())
}

// loadSource enumerates a local directory or downloads a GitHub archive.
func (app *application) loadSource(ctx context.Context, input string, branch string) (source.Set, error) {
	if !source.LooksLikeRepositoryURL(input) {
		return source.FromDirectory(input)
	}
	reference, parseError := source.ParseRepositoryURL(input)
	if parseError != nil {
		return source.Set{}, fmt.Errorf(errorRepositoryURL, parseError)
	}
	if branch != "" {
		reference.Reference = branch
	}
	gitHubConfiguration := app.configuration.GitHub
	fetcher := source.NewArchiveFetcher(app.dependencies.HTTPClient).
		WithArchiveBase(gitHubConfiguration.CodeloadBase).
		WithTimeout(gitHubConfiguration.Timeout).
		WithDefaultReference(gitHubConfiguration.Branch).
		WithAuthorizationToken(gitHubConfiguration.Token).
		WithUserAgent(userAgent).
		WithLogger(app.logger)
	if gitHubConfiguration.MaxArchiveBytes != nil {
		fetcher = fetcher.WithMaxArchiveBytes(*gitHubConfiguration.MaxArchiveBytes)
	}
	return fetcher.Fetch(ctx, reference)
}
