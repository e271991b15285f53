// Package toolexec is the thin client to the external tool-execution
// collaborator. Tool calls issued by the model are not run in-process:
// the full normalized history is posted to the collaborator, which
// executes the calls, mutates story state as needed, and returns the
// tool-result messages to append.
package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the default HTTP timeout for execution requests.
	// Tool rounds can chain several store mutations, so this is generous.
	DefaultTimeout = 120 * time.Second

	executePath = "/execute"
)

// WireFunction is the serialized call payload inside a wire tool call.
type WireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// WireToolCall is the OpenAI-style tool call shape on the wire.
type WireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // always "function"
	Function WireFunction `json:"function"`
}

// WireMessage is the normalized message shape the executor consumes and
// produces.
type WireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []WireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

// ExecuteRequest carries the history whose trailing assistant message
// holds the pending tool calls.
type ExecuteRequest struct {
	Messages        []WireMessage `json:"messages"`
	ActiveChapterID string        `json:"active_chapter_id,omitempty"`
}

// Mutations reports side effects the executor performed.
type Mutations struct {
	StoryChanged bool `json:"story_changed"`
}

// ExecuteResponse is the executor's reply. OK false means the round
// failed; the engine ends the tool loop without appending anything.
type ExecuteResponse struct {
	OK               bool          `json:"ok"`
	AppendedMessages []WireMessage `json:"appended_messages"`
	Mutations        *Mutations    `json:"mutations,omitempty"`
}

// StoryChanged reports whether the executor mutated story content.
func (r *ExecuteResponse) StoryChanged() bool {
	return r.Mutations != nil && r.Mutations.StoryChanged
}

// Client talks to the tool-execution collaborator.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client with the default timeout.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return NewClientWithConfig(baseURL, DefaultTimeout, logger)
}

// NewClientWithConfig creates a client with a custom timeout.
func NewClientWithConfig(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Execute posts the history and returns the executor's response. A
// transport or non-200 failure is an error; an ok:false response is not
// (the caller inspects OK).
func (c *Client) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	payloadBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+executePath, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // Error ignored: response consumed

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tool executor error (status %d): %s", resp.StatusCode, string(body))
	}

	var out ExecuteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.Debug("tool execution round",
		"ok", out.OK,
		"appended", len(out.AppendedMessages),
		"story_changed", out.StoryChanged(),
	)

	return &out, nil
}
