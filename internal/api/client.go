// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Configuration constants for the platform API.
const (
	// DefaultTimeout is the default timeout for non-streaming API requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 4 * 1024 * 1024 // 4MB limit
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	// Shared HTTP client for all non-streaming platform requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient is used for streaming requests.
	// No timeout here: stream lifetime is controlled via context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// Error variables for common platform errors.
var (
	// ErrNotConfigured indicates neither a bearer credential nor an
	// anonymous session id is set.
	ErrNotConfigured = errors.New("platform credentials not configured")

	// ErrEmptyContent indicates a send was attempted with blank content.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrAnonLimitReached indicates the anonymous-session message limit
	// was hit before a stream could open.
	ErrAnonLimitReached = errors.New("anonymous message limit reached")

	// ErrAnonChatDisabled indicates the platform refuses anonymous chat.
	ErrAnonChatDisabled = errors.New("anonymous chat disabled")
)

// Known machine-readable reason codes for immediate rejections.
const (
	ReasonAnonLimitReached = "anonymous_limit_reached"
	ReasonAnonChatDisabled = "anonymous_chat_disabled"
)

// RejectionError is an immediate non-2xx response received before any stream
// opened, carrying the server's machine-readable reason string.
type RejectionError struct {
	Status int
	Reason string
	Detail string
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("platform rejection [%s] (HTTP %d): %s", e.Reason, e.Status, e.Detail)
	}
	return fmt.Sprintf("platform rejection (HTTP %d): %s", e.Status, e.Detail)
}

// Is allows RejectionError to be matched against the reason sentinels.
func (e *RejectionError) Is(target error) bool {
	switch target {
	case ErrAnonLimitReached:
		return e.Reason == ReasonAnonLimitReached
	case ErrAnonChatDisabled:
		return e.Reason == ReasonAnonChatDisabled
	}
	return false
}

// LimitRejection reports whether the reason code is one of the known
// anonymous-access limit signals. Unknown reasons are conservatively treated
// as generic failures by the caller.
func (e *RejectionError) LimitRejection() bool {
	return e.Reason == ReasonAnonLimitReached || e.Reason == ReasonAnonChatDisabled
}

// apiErrorResponse is the body shape of an immediate rejection.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client communicates with the roleplay platform.
type Client struct {
	baseURL string

	// Exactly one of token / anonSession is attached to each request.
	token       string
	anonSession string
}

// NewClient creates a platform client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// WithBearerToken attaches a bearer credential. Clears any anonymous session.
func (c *Client) WithBearerToken(token string) *Client {
	c.token = strings.TrimSpace(token)
	c.anonSession = ""
	return c
}

// WithAnonSession attaches an anonymous-session identifier. Clears any bearer
// credential.
func (c *Client) WithAnonSession(id string) *Client {
	c.anonSession = strings.TrimSpace(id)
	c.token = ""
	return c
}

// IsConfigured returns true if the client can authenticate requests.
func (c *Client) IsConfigured() bool {
	return c.token != "" || c.anonSession != ""
}

// Anonymous reports whether the client authenticates as an anonymous session.
func (c *Client) Anonymous() bool {
	return c.token == "" && c.anonSession != ""
}

// setHeaders sets the required headers for platform requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "roleplay-tui/0.1.0")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.anonSession != "" {
		req.Header.Set("X-Anon-Session", c.anonSession)
	}
}

// logRequest logs an API request without exposing sensitive data.
func (c *Client) logRequest(req *http.Request) {
	log.Printf("API Request: %s %s", req.Method, req.URL.Path)
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// rejectionFromBody decodes an immediate rejection, tolerating bodies that do
// not match the documented error shape.
func rejectionFromBody(status int, body []byte) *RejectionError {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Code != "" {
		return &RejectionError{
			Status: status,
			Reason: apiErr.Error.Code,
			Detail: apiErr.Error.Message,
		}
	}
	return &RejectionError{
		Status: status,
		Detail: strings.TrimSpace(string(body)),
	}
}

// =============================================================================
// COLLABORATOR ENDPOINTS
// =============================================================================

// DeleteMessage removes a persisted message from a chat. The endpoint is
// idempotent: deleting a message the server never stored (a provisional or
// errored one) is a harmless no-op, and the reconciliation flows ignore
// failures entirely.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	url := fmt.Sprintf("%s/chats/%s/messages/%s", c.baseURL, chatID, messageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	c.logRequest(req)

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// 404 counts as success: the message was never persisted.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusNotFound {
		return nil
	}

	body, _ := readResponse(resp)
	return rejectionFromBody(resp.StatusCode, body)
}

// personaReplyResponse is the body of a persona-reply generation.
type personaReplyResponse struct {
	Content string `json:"content"`
}

// GeneratePersonaReply asks the platform to draft an in-character reply for
// the user. The result prefills the input box; it is not part of the
// streaming state machine.
func (c *Client) GeneratePersonaReply(ctx context.Context, chatID string) (string, error) {
	url := fmt.Sprintf("%s/chats/%s/persona-reply", c.baseURL, chatID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	c.logRequest(req)

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", rejectionFromBody(resp.StatusCode, body)
	}

	var reply personaReplyResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return reply.Content, nil
}
