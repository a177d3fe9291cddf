// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// MaxFrameSize is the maximum allowed size for a single SSE frame (64KB).
const MaxFrameSize = 64 * 1024

// =============================================================================
// WIRE TYPES
// =============================================================================

// Event type tags pushed by the server, one per frame.
const (
	EventToken = "token"
	EventDone  = "done"
	EventError = "error"
)

// StreamEvent is a single tagged event from the chat stream.
type StreamEvent struct {
	Type string `json:"type"`

	// token fields
	Content string `json:"content,omitempty"`

	// done fields
	MessageID        string `json:"message_id,omitempty"`
	ModelUsed        string `json:"model_used,omitempty"`
	UserMessageID    string `json:"user_message_id,omitempty"`
	AnonMessagesLeft *int   `json:"anon_messages_left,omitempty"`
	Truncated        bool   `json:"truncated,omitempty"`
}

// DoneMeta carries the terminal metadata of a successful stream.
type DoneMeta struct {
	MessageID        string
	ModelUsed        string
	UserMessageID    string
	AnonMessagesLeft *int
	Truncated        bool
}

// ErrorMeta carries the payload of a server-emitted error event. Content may
// be empty; the flow controller substitutes a local fallback string.
type ErrorMeta struct {
	Content       string
	UserMessageID string
}

// StreamHandlers receives parsed stream events in receipt order. Exactly one
// of OnDone / OnError / OnConnectFailure fires per stream unless the
// transport fails first, in which case OpenStream returns the error instead.
type StreamHandlers struct {
	OnToken func(content string)
	OnDone  func(meta DoneMeta)
	OnError func(meta ErrorMeta)

	// OnConnectFailure fires when the server rejects the request with an
	// application status before any stream opens. detail is the
	// machine-readable reason string, empty if the body was unparseable.
	OnConnectFailure func(statusCode int, detail string)
}

// ChatRequest is the body of a send. Content is required and non-empty after
// trimming; every generation parameter is optional passthrough configuration.
type ChatRequest struct {
	Content      string `json:"content"`
	Language     string `json:"language,omitempty"`
	IsRegenerate bool   `json:"is_regenerate,omitempty"`

	// Continue asks the server to extend the previous truncated reply
	// instead of generating a fresh one.
	Continue bool `json:"continue,omitempty"`

	// Generation parameters. Zero values are omitted and the server
	// applies its defaults; context_limit 0 means unlimited history.
	Model            string  `json:"model,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	TopP             float64 `json:"top_p,omitempty"`
	TopK             int     `json:"top_k,omitempty"`
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64 `json:"presence_penalty,omitempty"`
	MaxTokens        int     `json:"max_tokens,omitempty"`
	ContextLimit     int     `json:"context_limit,omitempty"`
}

// Validate checks the request is sendable.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Content) == "" && !r.Continue {
		return ErrEmptyContent
	}
	return nil
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event's data payload from the stream.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() ([]byte, error) {
	var dataLines [][]byte
	size := 0

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// Flush any buffered data before EOF.
				if len(dataLines) > 0 {
					return bytes.Join(dataLines, []byte("\n")), nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		size += len(line)
		if size > MaxFrameSize {
			return nil, fmt.Errorf("frame too large: %d bytes", size)
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
		// Ignore other fields (event:, id:, retry:, comments starting with :)
	}
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// OpenStream opens the one server-push connection for a send and pumps parsed
// events into the handlers as they arrive.
//
// Outcomes:
//   - server events are delivered via OnToken/OnDone/OnError and OpenStream
//     returns nil after a terminal event
//   - an immediate non-2xx rejection is delivered via OnConnectFailure and
//     OpenStream returns nil
//   - a transport failure (no response, or the connection dropped before a
//     terminal event) is returned as an error; the caller decides recovery
//   - context cancellation stops delivery of further token events and returns
//     ctx.Err(); content already delivered is untouched
func (c *Client) OpenStream(ctx context.Context, chatID string, reqBody ChatRequest, handlers StreamHandlers) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	if err := reqBody.Validate(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/chats/%s/stream", c.baseURL, chatID)

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")
	c.logRequest(req)

	resp, err := sharedStreamingClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Immediate rejection: no stream was opened. The caller learns the
	// reason through the dedicated handler, not through an inline error.
	if resp.StatusCode != http.StatusOK {
		body, _ := readResponse(resp)
		rej := rejectionFromBody(resp.StatusCode, body)
		if handlers.OnConnectFailure != nil {
			handlers.OnConnectFailure(rej.Status, rej.Reason)
		}
		return nil
	}

	return c.processStream(ctx, resp.Body, handlers)
}

// processStream reads and dispatches the SSE stream in receipt order.
func (c *Client) processStream(ctx context.Context, body io.Reader, handlers StreamHandlers) error {
	reader := NewSSEReader(body)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, err := reader.ReadEvent()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				// The connection closed without a terminal event.
				return fmt.Errorf("stream ended without terminal event: %w", io.ErrUnexpectedEOF)
			}
			return fmt.Errorf("stream read failed: %w", err)
		}

		var event StreamEvent
		if err := json.Unmarshal(data, &event); err != nil {
			// Skip malformed frames rather than aborting the stream.
			continue
		}

		switch event.Type {
		case EventToken:
			if handlers.OnToken != nil {
				handlers.OnToken(event.Content)
			}

		case EventDone:
			if handlers.OnDone != nil {
				handlers.OnDone(DoneMeta{
					MessageID:        event.MessageID,
					ModelUsed:        event.ModelUsed,
					UserMessageID:    event.UserMessageID,
					AnonMessagesLeft: event.AnonMessagesLeft,
					Truncated:        event.Truncated,
				})
			}
			return nil

		case EventError:
			if handlers.OnError != nil {
				handlers.OnError(ErrorMeta{
					Content:       event.Content,
					UserMessageID: event.UserMessageID,
				})
			}
			return nil

		default:
			// Unknown event types are ignored for forward compatibility.
		}
	}
}
