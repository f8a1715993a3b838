package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/promptkeeper/internal/domain/prompt"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrUnknownMethod is returned by Handle for a method it does not serve.
var ErrUnknownMethod = errors.New("unknown method")

// ErrInvalidParams is returned when method params cannot be decoded.
var ErrInvalidParams = errors.New("invalid params")

// MapError maps domain errors to API error codes. Unknown errors map to nil.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, prompt.ErrPromptNotFound):
		return &APIError{Code: "PROMPT_NOT_FOUND", Message: "prompt not found", RecoveryHint: "List prompts to find a valid id"}
	case errors.Is(err, prompt.ErrMalformedSnapshot):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: "Pass a document produced by export_prompts"}
	case errors.Is(err, prompt.ErrInvalidInput), errors.Is(err, ErrInvalidParams):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: "Title and content are required and must not be blank"}
	case errors.Is(err, prompt.ErrConflict):
		return &APIError{Code: "CONFLICT", Message: "collection modified concurrently", RecoveryHint: "Retry the call"}
	case errors.Is(err, prompt.ErrStoreUnavailable), errors.Is(err, prompt.ErrCorruptCollection):
		return &APIError{Code: "STORE_UNAVAILABLE", Message: err.Error(), RecoveryHint: "Retry later"}
	default:
		return nil
	}
}
