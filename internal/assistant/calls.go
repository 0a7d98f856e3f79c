package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/unveilai/unveil/internal/knowledge"
	"github.com/unveilai/unveil/internal/types"
)

const (
	// DefaultCallInstructions brief the voice agent when the user gives none.
	DefaultCallInstructions = "You are a senior developer helping a programmer understand their code. Introduce yourself, ask what they want to learn about their code, and explain it clearly using the context provided."
	// DefaultLanguage is the language of the call.
	DefaultLanguage = "en-US"

	defaultVoiceID        = "default"
	configStatusError     = "error"
	errorConfigStatusText = "phone call backend misconfigured: %s"
)

var (
	// ErrInvalidPhoneNumber is returned for numbers that are not in
	// international format.
	ErrInvalidPhoneNumber = errors.New("invalid phone number: use international format, e.g. +1 555 123 4567")
	// ErrNoSelectedFiles is returned when a call has no context to discuss.
	ErrNoSelectedFiles = errors.New("select at least one file to use as context for the call")

	phoneNumberPattern   = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	phoneNumberSeparator = strings.NewReplacer(" ", "", "\t", "", "-", "", "(", "", ")", "", ".", "")
)

// NormalizePhoneNumber strips separators and validates the E.164 form.
func NormalizePhoneNumber(phoneNumber string) (string, error) {
	normalized := phoneNumberSeparator.Replace(strings.TrimSpace(phoneNumber))
	if !phoneNumberPattern.MatchString(normalized) {
		return "", ErrInvalidPhoneNumber
	}
	return normalized, nil
}

// CallOptions configure a phone call.
type CallOptions struct {
	PhoneNumber  string
	Instructions string
	VoiceID      string
}

// CallRequest is the payload of the phone call endpoint.
type CallRequest struct {
	PhoneNumber              string `json:"phone_number"`
	KnowledgeBaseName        string `json:"knowledge_base_name"`
	KnowledgeBaseDescription string `json:"knowledge_base_description"`
	KnowledgeBaseText        string `json:"knowledge_base_text"`
	CallInstructions         string `json:"call_instructions"`
	VoiceID                  string `json:"voice_id,omitempty"`
	WaitForGreeting          bool   `json:"wait_for_greeting"`
	Language                 string `json:"language"`
}

// CallResult identifies a placed call.
type CallResult struct {
	CallID string `json:"call_id" yaml:"call_id"`
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
}

// ConfigStatus reports whether the backend can place calls.
type ConfigStatus struct {
	Status  string         `json:"status" yaml:"status"`
	Message string         `json:"message,omitempty" yaml:"message,omitempty"`
	Config  map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// NewCallRequest builds the call payload from the selected files.
func NewCallRequest(selectedFiles []*types.FileNode, options CallOptions) (CallRequest, error) {
	phoneNumber, phoneError := NormalizePhoneNumber(options.PhoneNumber)
	if phoneError != nil {
		return CallRequest{}, phoneError
	}
	if len(selectedFiles) == 0 {
		return CallRequest{}, ErrNoSelectedFiles
	}
	instructions := strings.TrimSpace(options.Instructions)
	if instructions == "" {
		instructions = DefaultCallInstructions
	}
	voiceID := strings.TrimSpace(options.VoiceID)
	if voiceID == defaultVoiceID {
		voiceID = ""
	}
	return CallRequest{
		PhoneNumber:              phoneNumber,
		KnowledgeBaseName:        knowledge.Name,
		KnowledgeBaseDescription: knowledge.Description,
		KnowledgeBaseText:        knowledge.Combine(selectedFiles),
		CallInstructions:         instructions,
		VoiceID:                  voiceID,
		WaitForGreeting:          true,
		Language:                 DefaultLanguage,
	}, nil
}

// PlaceCall asks the backend to call the user with the selected files as context.
func (assistantClient Client) PlaceCall(ctx context.Context, callRequest CallRequest) (CallResult, error) {
	responseBody, requestError := assistantClient.do(ctx, http.MethodPost, phoneCallsPath, callRequest)
	if requestError != nil {
		return CallResult{}, requestError
	}
	var callResult CallResult
	if decodeError := json.Unmarshal(responseBody, &callResult); decodeError != nil {
		return CallResult{}, fmt.Errorf(errorDecodeFormat, phoneCallsPath, decodeError)
	}
	return callResult, nil
}

// CheckCallConfig queries the phone call configuration of the backend. A
// status of "error" is returned as an error carrying the backend message.
func (assistantClient Client) CheckCallConfig(ctx context.Context) (ConfigStatus, error) {
	responseBody, requestError := assistantClient.do(ctx, http.MethodGet, configStatusPath, nil)
	if requestError != nil {
		return ConfigStatus{}, requestError
	}
	var status ConfigStatus
	if decodeError := json.Unmarshal(responseBody, &status); decodeError != nil {
		return ConfigStatus{}, fmt.Errorf(errorDecodeFormat, configStatusPath, decodeError)
	}
	if status.Status == configStatusError {
		return status, fmt.Errorf(errorConfigStatusText, status.Message)
	}
	return status, nil
}
