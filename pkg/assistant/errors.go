package assistant

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a structured error response from the backend.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Code is the machine-readable error code, when present.
	Code string

	// Message is the human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("assistant api error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("assistant api error (status %d): %s", e.StatusCode, e.Message)
}

// threadMissing reports whether a 404 refers to the thread resource itself,
// as opposed to some other missing object on the same endpoint.
func (e *APIError) threadMissing() bool {
	if e.Code == "thread_not_found" {
		return true
	}
	return strings.Contains(e.Message, "No thread found with id")
}

// decodeAPIError parses an error response body, falling back to the raw body
// when it is not the expected JSON envelope.
func decodeAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{StatusCode: status, Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
