// Package assistant defines the AI backend collaborator interface and an
// HTTP client for an Assistants-style REST API. Conversation state lives at
// the backend, addressed by thread ID; the relay only holds the mapping.
package assistant

import (
	"context"

	"github.com/calibot/assistant-relay/pkg/thread"
)

// Backend is the surface of the AI service the relay consumes.
type Backend interface {
	// CreateThread allocates a fresh conversation thread.
	CreateThread(ctx context.Context) (thread.ID, error)

	// UploadImage stores image bytes at the backend for use in message
	// content, returning the backend file ID.
	UploadImage(ctx context.Context, filename string, data []byte) (string, error)

	// AddMessage appends user content to the thread. When the backend no
	// longer recognizes the thread the returned error matches
	// thread.ErrThreadNotFound; all other failures are generic.
	AddMessage(ctx context.Context, threadID thread.ID, content []Part) error

	// Run executes the assistant against the thread and returns the reply
	// with token accounting.
	Run(ctx context.Context, threadID thread.ID) (*RunResult, error)
}

// Part is one element of message content.
type Part struct {
	Type      string     `json:"type"`
	Text      string     `json:"text,omitempty"`
	ImageFile *ImageFile `json:"image_file,omitempty"`
}

// ImageFile references an uploaded image by backend file ID.
type ImageFile struct {
	FileID string `json:"file_id"`
}

// TextPart builds a text content part.
func TextPart(text string) Part {
	return Part{Type: "text", Text: text}
}

// ImagePart builds an image content part from an uploaded file ID.
func ImagePart(fileID string) Part {
	return Part{Type: "image_file", ImageFile: &ImageFile{FileID: fileID}}
}

// Usage is the token accounting reported for one run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	// Reply is the assistant's latest message text.
	Reply string

	// Model is the model that served the run, when reported.
	Model string

	// Usage is the run's token accounting. Zero-valued when the backend
	// omits usage data.
	Usage Usage
}
