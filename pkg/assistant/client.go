package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/calibot/assistant-relay/pkg/thread"
)

const (
	defaultBaseURL      = "https://api.openai.com/v1"
	defaultTimeout      = 120 * time.Second
	defaultPollInterval = time.Second
	defaultTruncation   = 15
)

// Config configures the HTTP client.
type Config struct {
	// BaseURL is the API root. Defaults to the OpenAI API.
	BaseURL string

	// APIKey is the bearer token.
	APIKey string

	// AssistantID selects the assistant that serves runs.
	AssistantID string

	// Timeout bounds each HTTP request. A timeout surfaces as a generic
	// failure, never as staleness. Defaults to 120s.
	Timeout time.Duration

	// PollInterval is the delay between run status polls. Defaults to 1s.
	PollInterval time.Duration

	// Truncation limits run context to the last N thread messages.
	// Defaults to 15.
	Truncation int
}

// Client talks to an Assistants-style REST API over HTTP.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a client from the given config.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Truncation == 0 {
		cfg.Truncation = defaultTruncation
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// CreateThread allocates a fresh conversation thread.
func (c *Client) CreateThread(ctx context.Context) (thread.ID, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/threads", map[string]any{}, &resp); err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}
	return thread.ID(resp.ID), nil
}

// UploadImage stores image bytes at the backend and returns the file ID.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("purpose", "vision"); err != nil {
		return "", fmt.Errorf("writing upload form: %w", err)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("writing upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("writing upload form: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("writing upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/files", &body)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.send(req, &resp); err != nil {
		return "", fmt.Errorf("uploading image: %w", err)
	}
	return resp.ID, nil
}

// AddMessage appends user content to the thread. A backend 404 for the
// thread maps to thread.ErrThreadNotFound.
func (c *Client) AddMessage(ctx context.Context, threadID thread.ID, content []Part) error {
	body := map[string]any{
		"role":    "user",
		"content": content,
	}
	err := c.doJSON(ctx, http.MethodPost, "/threads/"+string(threadID)+"/messages", body, nil)
	if err != nil {
		return fmt.Errorf("adding message to thread %s: %w", threadID, err)
	}
	return nil
}

// Run starts a run on the thread, polls it to completion, and returns the
// assistant's latest reply with token accounting.
func (c *Client) Run(ctx context.Context, threadID thread.ID) (*RunResult, error) {
	body := map[string]any{
		"assistant_id": c.cfg.AssistantID,
		"truncation_strategy": map[string]any{
			"type":          "last_messages",
			"last_messages": c.cfg.Truncation,
		},
	}

	var run runObject
	if err := c.doJSON(ctx, http.MethodPost, "/threads/"+string(threadID)+"/runs", body, &run); err != nil {
		return nil, fmt.Errorf("starting run on thread %s: %w", threadID, err)
	}

	for !run.terminal() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
		path := fmt.Sprintf("/threads/%s/runs/%s", threadID, run.ID)
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &run); err != nil {
			return nil, fmt.Errorf("polling run %s: %w", run.ID, err)
		}
	}
	if run.Status != "completed" {
		return nil, fmt.Errorf("run %s ended with status %q", run.ID, run.Status)
	}

	reply, err := c.latestReply(ctx, threadID)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Reply: reply, Model: run.Model}
	if run.Usage != nil {
		result.Usage = *run.Usage
	}
	return result, nil
}

type runObject struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Model  string `json:"model"`
	Usage  *Usage `json:"usage"`
}

func (r *runObject) terminal() bool {
	switch r.Status {
	case "completed", "failed", "cancelled", "expired", "incomplete":
		return true
	}
	return false
}

// latestReply fetches the newest thread message and returns its text when it
// came from the assistant.
func (c *Client) latestReply(ctx context.Context, threadID thread.ID) (string, error) {
	var resp struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	path := "/threads/" + string(threadID) + "/messages?order=desc&limit=1"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", fmt.Errorf("fetching reply from thread %s: %w", threadID, err)
	}

	if len(resp.Data) == 0 || resp.Data[0].Role != "assistant" {
		return "", nil
	}
	for _, part := range resp.Data[0].Content {
		if part.Type == "text" {
			return part.Text.Value, nil
		}
	}
	return "", nil
}

// doJSON issues a JSON request against the API and decodes the response into
// out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

// send executes the request and maps API errors. A 404 on a thread resource
// becomes thread.ErrThreadNotFound so callers can distinguish staleness from
// generic failure without inspecting message text.
func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := decodeAPIError(resp.StatusCode, data)
		if resp.StatusCode == http.StatusNotFound && apiErr.threadMissing() {
			return fmt.Errorf("%w: %s", thread.ErrThreadNotFound, apiErr.Message)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Verify interface compliance.
var _ Backend = (*Client)(nil)
