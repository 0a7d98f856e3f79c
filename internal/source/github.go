package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unveilai/unveil/internal/utils"
)

const (
	defaultArchiveTimeout      = 60 * time.Second
	defaultArchiveBaseURL      = "https://codeload.github.com"
	defaultReference           = "main"
	defaultUserAgent           = "unveil-archive-fetcher"
	defaultMaxArchiveBytes     = 200 << 20
	errorBodyPreviewBytes      = 8 * 1024
	headerAuthorization        = "Authorization"
	authorizationBearerPrefix  = "Bearer "
	authorizationTokenPrefix   = "token "
	repositoryTreeSegment      = "tree"
	gitRepositorySuffix        = ".git"
	errorArchiveStatusFormat   = "unexpected status %d for %s: %s"
	errorArchiveTooLargeFormat = "archive for %s exceeds %d bytes"
)

var (
	// ErrInvalidRepositoryURL is returned for URLs that do not name a GitHub repository.
	ErrInvalidRepositoryURL = errors.New("invalid GitHub repository URL")

	repositoryURLPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)(?:/(.*))?$`)
)

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// RepositoryReference names one branch or tag of a hosted repository.
type RepositoryReference struct {
	Owner      string
	Repository string
	Reference  string
}

// String returns the canonical repository URL.
func (reference RepositoryReference) String() string {
	return "https://github.com/" + reference.Owner + "/" + reference.Repository
}

// ParseRepositoryURL parses https://github.com/<owner>/<repo>[/...]. A
// /tree/<ref> suffix selects the reference; otherwise it is left empty.
func ParseRepositoryURL(rawURL string) (RepositoryReference, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	matches := repositoryURLPattern.FindStringSubmatch(trimmedURL)
	if matches == nil {
		return RepositoryReference{}, fmt.Errorf("%w: %q", ErrInvalidRepositoryURL, rawURL)
	}
	reference := RepositoryReference{
		Owner:      matches[1],
		Repository: strings.TrimSuffix(matches[2], gitRepositorySuffix),
	}
	if reference.Repository == "" {
		return RepositoryReference{}, fmt.Errorf("%w: %q", ErrInvalidRepositoryURL, rawURL)
	}
	remainder := strings.Split(matches[3], utils.PathSeparator)
	if len(remainder) >= 2 && remainder[0] == repositoryTreeSegment && remainder[1] != "" {
		reference.Reference = strings.Join(remainder[1:], utils.PathSeparator)
	}
	return reference, nil
}

// LooksLikeRepositoryURL reports whether input should be treated as a URL rather than a local path.
func LooksLikeRepositoryURL(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}

// ArchiveFetcher downloads repository archives and unpacks them into a Set.
type ArchiveFetcher struct {
	client                   httpClient
	archiveBase              string
	userAgent                string
	timeout                  time.Duration
	defaultReference         string
	maxArchiveBytes          int64
	authorizationHeaderValue string
	logger                   *zap.Logger
}

// NewArchiveFetcher returns a fetcher using client, or a default http.Client when nil.
func NewArchiveFetcher(client httpClient) ArchiveFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultArchiveTimeout}
	}
	return ArchiveFetcher{
		client:           client,
		archiveBase:      defaultArchiveBaseURL,
		userAgent:        defaultUserAgent,
		timeout:          defaultArchiveTimeout,
		defaultReference: defaultReference,
		maxArchiveBytes:  defaultMaxArchiveBytes,
		logger:           zap.NewNop(),
	}
}

func (fetcher ArchiveFetcher) WithArchiveBase(base string) ArchiveFetcher {
	if base == "" {
		return fetcher
	}
	fetcher.archiveBase = strings.TrimRight(base, "/")
	return fetcher
}

func (fetcher ArchiveFetcher) WithUserAgent(agent string) ArchiveFetcher {
	if agent == "" {
		return fetcher
	}
	fetcher.userAgent = agent
	return fetcher
}

func (fetcher ArchiveFetcher) WithTimeout(duration time.Duration) ArchiveFetcher {
	if duration <= 0 {
		return fetcher
	}
	fetcher.timeout = duration
	if clientWithTimeout, ok := fetcher.client.(*http.Client); ok {
		clientWithTimeout.Timeout = duration
	}
	return fetcher
}

// WithDefaultReference sets the branch used when the URL names none.
func (fetcher ArchiveFetcher) WithDefaultReference(reference string) ArchiveFetcher {
	if strings.TrimSpace(reference) == "" {
		return fetcher
	}
	fetcher.defaultReference = strings.TrimSpace(reference)
	return fetcher
}

// WithMaxArchiveBytes bounds the size of a downloaded archive.
func (fetcher ArchiveFetcher) WithMaxArchiveBytes(limit int64) ArchiveFetcher {
	if limit <= 0 {
		return fetcher
	}
	fetcher.maxArchiveBytes = limit
	return fetcher
}

// WithAuthorizationToken configures the fetcher to authenticate archive downloads.
func (fetcher ArchiveFetcher) WithAuthorizationToken(token string) ArchiveFetcher {
	fetcher.authorizationHeaderValue = formatAuthorizationHeaderValue(token)
	return fetcher
}

func (fetcher ArchiveFetcher) WithLogger(logger *zap.Logger) ArchiveFetcher {
	fetcher.logger = utils.LoggerOrNop(logger)
	return fetcher
}

// Fetch downloads the archive of reference and unpacks it. The resulting set
// is marked as a repository since hosted archives never carry the .git directory.
func (fetcher ArchiveFetcher) Fetch(ctx context.Context, reference RepositoryReference) (Set, error) {
	if reference.Owner == "" || reference.Repository == "" {
		return Set{}, ErrInvalidRepositoryURL
	}
	if reference.Reference == "" {
		reference.Reference = fetcher.defaultReference
	}
	archiveURL, buildError := fetcher.buildArchiveURL(reference)
	if buildError != nil {
		return Set{}, buildError
	}
	startedAt := time.Now()
	archiveBytes, downloadError := fetcher.download(ctx, archiveURL)
	if downloadError != nil {
		return Set{}, downloadError
	}
	fetcher.logger.Debug("archive downloaded",
		zap.String("url", archiveURL),
		zap.Int("bytes", len(archiveBytes)),
		zap.Duration("duration", time.Since(startedAt)),
	)
	set, unpackError := FromZip(archiveBytes)
	if unpackError != nil {
		return Set{}, fmt.Errorf("unpack %s: %w", archiveURL, unpackError)
	}
	set.Origin = reference.String()
	set.Repository = true
	return set, nil
}

func (fetcher ArchiveFetcher) download(ctx context.Context, archiveURL string) ([]byte, error) {
	request, requestError := fetcher.buildRequest(ctx, archiveURL)
	if requestError != nil {
		return nil, requestError
	}
	response, responseError := fetcher.client.Do(request)
	if responseError != nil {
		return nil, responseError
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, errorBodyPreviewBytes))
		return nil, fmt.Errorf(errorArchiveStatusFormat, response.StatusCode, archiveURL, string(body))
	}
	archiveBytes, readError := io.ReadAll(io.LimitReader(response.Body, fetcher.maxArchiveBytes+1))
	if readError != nil {
		return nil, readError
	}
	if int64(len(archiveBytes)) > fetcher.maxArchiveBytes {
		return nil, fmt.Errorf(errorArchiveTooLargeFormat, archiveURL, fetcher.maxArchiveBytes)
	}
	return archiveBytes, nil
}

func (fetcher ArchiveFetcher) buildRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	request, requestError := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if requestError != nil {
		return nil, requestError
	}
	if fetcher.userAgent != "" {
		request.Header.Set("User-Agent", fetcher.userAgent)
	}
	if fetcher.authorizationHeaderValue != "" {
		request.Header.Set(headerAuthorization, fetcher.authorizationHeaderValue)
	}
	return request, nil
}

func (fetcher ArchiveFetcher) buildArchiveURL(reference RepositoryReference) (string, error) {
	parsedURL, parseError := url.Parse(fetcher.archiveBase)
	if parseError != nil {
		return "", parseError
	}
	var builder strings.Builder
	builder.WriteString(strings.TrimSuffix(parsedURL.Path, "/"))
	builder.WriteByte('/')
	builder.WriteString(url.PathEscape(reference.Owner))
	builder.WriteByte('/')
	builder.WriteString(url.PathEscape(reference.Repository))
	builder.WriteString("/zip/")
	for index, segment := range strings.Split(reference.Reference, utils.PathSeparator) {
		if index > 0 {
			builder.WriteByte('/')
		}
		builder.WriteString(url.PathEscape(segment))
	}
	parsedURL.Path = builder.String()
	return parsedURL.String(), nil
}

func formatAuthorizationHeaderValue(rawToken string) string {
	trimmed := strings.TrimSpace(rawToken)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	bearerLower := strings.ToLower(authorizationBearerPrefix)
	tokenLower := strings.ToLower(authorizationTokenPrefix)
	if strings.HasPrefix(lower, bearerLower) || strings.HasPrefix(lower, tokenLower) {
		return trimmed
	}
	if strings.Contains(trimmed, ".") {
		return authorizationBearerPrefix + trimmed
	}
	return authorizationTokenPrefix + trimmed
}
