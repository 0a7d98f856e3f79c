// Package assistant talks to the backend that answers questions about the
// selected code and places phone calls with it as context.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unveilai/unveil/internal/utils"
)

const (
	// DefaultBaseURL is the backend address used when none is configured.
	DefaultBaseURL = "http://localhost:8000"

	defaultTimeout         = 120 * time.Second
	defaultUserAgent       = "unveil-cli"
	maxErrorBodyBytes      = 8 * 1024
	headerContentType      = "Content-Type"
	headerAccept           = "Accept"
	headerUserAgent        = "User-Agent"
	contentTypeJSON        = "application/json"
	questionsPath          = "/api/questions"
	repositoryQuestionPath = "/api/questions/repository/"
	phoneCallsPath         = "/api/phone-calls"
	configStatusPath       = "/api/phone-calls/config-status"

	errorEncodeRequestFormat = "encode %s request: %w"
	errorDecodeFormat        = "decode %s response: %w"
	errorRequestFormat       = "%s %s: %w"
	apiErrorFormat           = "assistant backend returned status %d: %s"

	logMessageRequest = "assistant request"
	logFieldMethod    = "method"
	logFieldPath      = "path"
	logFieldStatus    = "status"
	logFieldDuration  = "duration"
)

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// APIError is returned for responses outside the 2xx range.
type APIError struct {
	Status int
	Body   string
}

func (apiError *APIError) Error() string {
	return fmt.Sprintf(apiErrorFormat, apiError.Status, apiError.Body)
}

// Client is a value type configured through its With methods.
type Client struct {
	client    httpClient
	baseURL   string
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewClient returns a client for DefaultBaseURL. A nil client uses an
// http.Client with the default timeout.
func NewClient(client httpClient) Client {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return Client{
		client:    client,
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent,
		timeout:   defaultTimeout,
		logger:    zap.NewNop(),
	}
}

func (assistantClient Client) WithBaseURL(base string) Client {
	if strings.TrimSpace(base) == "" {
		return assistantClient
	}
	assistantClient.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	return assistantClient
}

func (assistantClient Client) WithUserAgent(agent string) Client {
	if agent == "" {
		return assistantClient
	}
	assistantClient.userAgent = agent
	return assistantClient
}

func (assistantClient Client) WithTimeout(duration time.Duration) Client {
	if duration <= 0 {
		return assistantClient
	}
	assistantClient.timeout = duration
	if clientWithTimeout, ok := assistantClient.client.(*http.Client); ok {
		clientWithTimeout.Timeout = duration
	}
	return assistantClient
}

// WithLogger enables debug logging of every request.
func (assistantClient Client) WithLogger(logger *zap.Logger) Client {
	assistantClient.logger = utils.LoggerOrNop(logger)
	return assistantClient
}

// BaseURL returns the configured backend address.
func (assistantClient Client) BaseURL() string {
	return assistantClient.baseURL
}

// do sends a JSON request and returns the raw body of a 2xx response.
func (assistantClient Client) do(ctx context.Context, method string, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, encodeError := json.Marshal(payload)
		if encodeError != nil {
			return nil, fmt.Errorf(errorEncodeRequestFormat, path, encodeError)
		}
		body = bytes.NewReader(encoded)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	request, requestError := http.NewRequestWithContext(ctx, method, assistantClient.baseURL+path, body)
	if requestError != nil {
		return nil, requestError
	}
	request.Header.Set(headerAccept, contentTypeJSON)
	if payload != nil {
		request.Header.Set(headerContentType, contentTypeJSON)
	}
	if assistantClient.userAgent != "" {
		request.Header.Set(headerUserAgent, assistantClient.userAgent)
	}

	startedAt := time.Now()
	response, responseError := assistantClient.client.Do(request)
	if responseError != nil {
		return nil, fmt.Errorf(errorRequestFormat, method, path, responseError)
	}
	defer response.Body.Close()
	assistantClient.logger.Debug(logMessageRequest,
		zap.String(logFieldMethod, method),
		zap.String(logFieldPath, path),
		zap.Int(logFieldStatus, response.StatusCode),
		zap.Duration(logFieldDuration, time.Since(startedAt)),
	)
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		errorBody, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		return nil, &APIError{Status: response.StatusCode, Body: strings.TrimSpace(string(errorBody))}
	}
	responseBody, readError := io.ReadAll(response.Body)
	if readError != nil {
		return nil, fmt.Errorf(errorRequestFormat, method, path, readError)
	}
	return responseBody, nil
}

func escapePathSegment(segment string) string {
	return url.PathEscape(segment)
}
