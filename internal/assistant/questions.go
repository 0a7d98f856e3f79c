package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/unveilai/unveil/internal/jsonrepair"
)

var (
	errMissingQuestion     = errors.New("question text is required")
	errMissingRepositoryID = errors.New("repository id is required")
	errMissingQuestionID   = errors.New("question id is required")
)

// QuestionRequest asks the backend about the selected code.
type QuestionRequest struct {
	RepositoryID string `json:"repository_id"`
	Question     string `json:"question"`
	Context      string `json:"context,omitempty"`
}

// CodeSnippet is a code fragment quoted by an answer.
type CodeSnippet struct {
	Language    string `json:"language" yaml:"language"`
	Code        string `json:"code" yaml:"code"`
	Explanation string `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// Reference points at a concept or symbol mentioned by an answer.
type Reference struct {
	Type        string `json:"type" yaml:"type"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Answer is the backend's response to a question. ParseError is set when the
// response could not be decoded and TextResponse carries the raw text.
type Answer struct {
	TextResponse string        `json:"text_response" yaml:"text_response"`
	AudioURL     string        `json:"audio_url,omitempty" yaml:"audio_url,omitempty"`
	CodeSnippets []CodeSnippet `json:"code_snippets,omitempty" yaml:"code_snippets,omitempty"`
	References   []Reference   `json:"references,omitempty" yaml:"references,omitempty"`
	ParseError   bool          `json:"parse_error,omitempty" yaml:"parse_error,omitempty"`
}

// Question is a stored question together with its answer.
type Question struct {
	ID           string  `json:"id" yaml:"id"`
	RepositoryID string  `json:"repository_id" yaml:"repository_id"`
	Question     string  `json:"question" yaml:"question"`
	Context      string  `json:"context,omitempty" yaml:"-"`
	CreatedAt    string  `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Response     *Answer `json:"response,omitempty" yaml:"response,omitempty"`
}

// Ask posts a question and returns it with the backend's answer.
func (assistantClient Client) Ask(ctx context.Context, questionRequest QuestionRequest) (Question, error) {
	if strings.TrimSpace(questionRequest.Question) == "" {
		return Question{}, errMissingQuestion
	}
	if strings.TrimSpace(questionRequest.RepositoryID) == "" {
		return Question{}, errMissingRepositoryID
	}
	responseBody, requestError := assistantClient.do(ctx, http.MethodPost, questionsPath, questionRequest)
	if requestError != nil {
		return Question{}, requestError
	}
	return decodeQuestion(responseBody, questionRequest), nil
}

// GetQuestion returns a stored question by id.
func (assistantClient Client) GetQuestion(ctx context.Context, questionID string) (Question, error) {
	if strings.TrimSpace(questionID) == "" {
		return Question{}, errMissingQuestionID
	}
	path := questionsPath + "/" + escapePathSegment(questionID)
	responseBody, requestError := assistantClient.do(ctx, http.MethodGet, path, nil)
	if requestError != nil {
		return Question{}, requestError
	}
	return decodeQuestion(responseBody, QuestionRequest{}), nil
}

// ListQuestions returns every question asked about a repository.
func (assistantClient Client) ListQuestions(ctx context.Context, repositoryID string) ([]Question, error) {
	if strings.TrimSpace(repositoryID) == "" {
		return nil, errMissingRepositoryID
	}
	path := repositoryQuestionPath + escapePathSegment(repositoryID)
	responseBody, requestError := assistantClient.do(ctx, http.MethodGet, path, nil)
	if requestError != nil {
		return nil, requestError
	}
	var questions []Question
	if decodeError := json.Unmarshal(responseBody, &questions); decodeError != nil {
		return nil, fmt.Errorf(errorDecodeFormat, path, decodeError)
	}
	return questions, nil
}

// decodeQuestion tolerates malformed bodies. A bare answer object is wrapped
// into the request's question; anything else becomes an answer flagged with
// ParseError that carries the original text.
func decodeQuestion(responseBody []byte, questionRequest QuestionRequest) Question {
	fallbackQuestion := Question{
		RepositoryID: questionRequest.RepositoryID,
		Question:     questionRequest.Question,
		Context:      questionRequest.Context,
	}
	result := jsonrepair.Parse(string(responseBody))
	if result.Kind == jsonrepair.Parsed {
		var question Question
		if result.Decode(&question) == nil && (question.Response != nil || question.ID != "") {
			return question
		}
		var answer Answer
		if result.Decode(&answer) == nil && answer.TextResponse != "" {
			fallbackQuestion.Response = &answer
			return fallbackQuestion
		}
	}
	fallbackQuestion.Response = &Answer{
		TextResponse: result.FallbackText(),
		ParseError:   true,
	}
	return fallbackQuestion
}
