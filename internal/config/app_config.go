package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/unveilai/unveil/internal/utils"
)

const (
	// EnvironmentGitHubToken overrides github.token.
	EnvironmentGitHubToken = "GITHUB_TOKEN"
	// EnvironmentAssistantURL overrides assistant.base_url.
	EnvironmentAssistantURL = "UNVEIL_API_URL"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
	// LookupEnvironment defaults to os.LookupEnv.
	LookupEnvironment func(key string) (string, bool)
}

// ApplicationConfiguration holds the defaults applied to every command.
type ApplicationConfiguration struct {
	Format    string                 `mapstructure:"format"`
	Ingest    IngestConfiguration    `mapstructure:"ingest"`
	GitHub    GitHubConfiguration    `mapstructure:"github"`
	Assistant AssistantConfiguration `mapstructure:"assistant"`
	Tokens    TokenConfiguration     `mapstructure:"tokens"`
	Session   SessionConfiguration   `mapstructure:"session"`
	Clipboard ClipboardConfiguration `mapstructure:"clipboard"`
}

// IngestConfiguration controls tree construction.
type IngestConfiguration struct {
	Exclude           []string `mapstructure:"exclude"`
	IgnoreFile        string   `mapstructure:"ignore_file"`
	Concurrency       *int     `mapstructure:"concurrency"`
	ReadFailurePolicy string   `mapstructure:"read_failure_policy"`
	RequireRepository *bool    `mapstructure:"require_repository"`
	Progress          *bool    `mapstructure:"progress"`
}

// GitHubConfiguration controls repository archive downloads.
type GitHubConfiguration struct {
	Token           string        `mapstructure:"token"`
	Branch          string        `mapstructure:"branch"`
	CodeloadBase    string        `mapstructure:"codeload_base"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxArchiveBytes *int64        `mapstructure:"max_archive_bytes"`
}

// AssistantConfiguration controls the assistant backend client.
type AssistantConfiguration struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Debug   *bool         `mapstructure:"debug"`
	Voice   string        `mapstructure:"voice"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

// SessionConfiguration locates the session file.
type SessionConfiguration struct {
	Path string `mapstructure:"path"`
}

// ClipboardConfiguration controls copying of the combined context.
type ClipboardConfiguration struct {
	Copy *bool `mapstructure:"copy"`
}

// LoadApplicationConfiguration loads configuration from global and local files
// and applies environment overrides.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	lookup := options.LookupEnvironment
	if lookup == nil {
		lookup = os.LookupEnv
	}
	merged = merged.applyEnvironment(lookup)
	merged.Ingest.Exclude = utils.DeduplicatePatterns(merged.Ingest.Exclude)

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

func (config ApplicationConfiguration) applyEnvironment(lookup func(string) (string, bool)) ApplicationConfiguration {
	result := config
	if token, ok := lookup(EnvironmentGitHubToken); ok && strings.TrimSpace(token) != "" {
		result.GitHub.Token = strings.TrimSpace(token)
	}
	if baseURL, ok := lookup(EnvironmentAssistantURL); ok && strings.TrimSpace(baseURL) != "" {
		result.Assistant.BaseURL = strings.TrimSpace(baseURL)
	}
	return result
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	if override.Format != "" {
		result.Format = override.Format
	}
	result.Ingest = result.Ingest.merge(override.Ingest)
	result.GitHub = result.GitHub.merge(override.GitHub)
	result.Assistant = result.Assistant.merge(override.Assistant)
	result.Tokens = result.Tokens.merge(override.Tokens)
	if override.Session.Path != "" {
		result.Session.Path = override.Session.Path
	}
	if override.Clipboard.Copy != nil {
		result.Clipboard.Copy = cloneBool(override.Clipboard.Copy)
	}
	return result
}

func (config IngestConfiguration) merge(override IngestConfiguration) IngestConfiguration {
	result := config
	if len(override.Exclude) > 0 {
		result.Exclude = append([]string{}, utils.DeduplicatePatterns(override.Exclude)...)
	}
	if override.IgnoreFile != "" {
		result.IgnoreFile = override.IgnoreFile
	}
	if override.Concurrency != nil {
		result.Concurrency = cloneInt(override.Concurrency)
	}
	if override.ReadFailurePolicy != "" {
		result.ReadFailurePolicy = override.ReadFailurePolicy
	}
	if override.RequireRepository != nil {
		result.RequireRepository = cloneBool(override.RequireRepository)
	}
	if override.Progress != nil {
		result.Progress = cloneBool(override.Progress)
	}
	return result
}

func (config GitHubConfiguration) merge(override GitHubConfiguration) GitHubConfiguration {
	result := config
	if override.Token != "" {
		result.Token = override.Token
	}
	if override.Branch != "" {
		result.Branch = override.Branch
	}
	if override.CodeloadBase != "" {
		result.CodeloadBase = override.CodeloadBase
	}
	if override.Timeout > 0 {
		result.Timeout = override.Timeout
	}
	if override.MaxArchiveBytes != nil {
		limit := *override.MaxArchiveBytes
		result.MaxArchiveBytes = &limit
	}
	return result
}

func (config AssistantConfiguration) merge(override AssistantConfiguration) AssistantConfiguration {
	result := config
	if override.BaseURL != "" {
		result.BaseURL = override.BaseURL
	}
	if override.Timeout > 0 {
		result.Timeout = override.Timeout
	}
	if override.Debug != nil {
		result.Debug = cloneBool(override.Debug)
	}
	if override.Voice != "" {
		result.Voice = override.Voice
	}
	return result
}

func (config TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := config
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	return result
}

// BoolOrDefault dereferences value, returning fallback when it is unset.
func BoolOrDefault(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

// IntOrDefault dereferences value, returning fallback when it is unset.
func IntOrDefault(value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	return *value
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
