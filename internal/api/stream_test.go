// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// sseHandler writes the given frames as SSE events and closes the stream.
func sseHandler(t *testing.T, frames []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok, "response writer must support flushing")

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
	}
}

// collector accumulates handler invocations for assertions.
type collector struct {
	tokens   []string
	done     *DoneMeta
	errMeta  *ErrorMeta
	rejected []string
}

func (c *collector) handlers() StreamHandlers {
	return StreamHandlers{
		OnToken: func(content string) { c.tokens = append(c.tokens, content) },
		OnDone:  func(meta DoneMeta) { c.done = &meta },
		OnError: func(meta ErrorMeta) { c.errMeta = &meta },
		OnConnectFailure: func(status int, detail string) {
			c.rejected = append(c.rejected, fmt.Sprintf("%d/%s", status, detail))
		},
	}
}

// =============================================================================
// STREAM TESTS
// =============================================================================

func TestOpenStream_TokensThenDone(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`{"type":"token","content":"Hi"}`,
		`{"type":"token","content":" there"}`,
		`{"type":"done","message_id":"m1","model_used":"auto"}`,
	}))
	defer srv.Close()

	c := NewClient(srv.URL).WithBearerToken("tok")
	col := &collector{}

	err := c.OpenStream(context.Background(), "chat1", ChatRequest{Content: "Hello"}, col.handlers())
	require.NoError(t, err)

	// Fragments arrive in delivery order.
	assert.Equal(t, []string{"Hi", " there"}, col.tokens)
	require.NotNil(t, col.done)
	assert.Equal(t, "m1", col.done.MessageID)
	assert.Equal(t, "auto", col.done.ModelUsed)
	assert.Nil(t, col.errMeta)
	assert.Empty(t, col.rejected)
}

func TestOpenStream_DoneCarriesReconciliationMeta(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`{"type":"token","content":"ok"}`,
		`{"type":"done","message_id":"m2","model_used":"sonnet","user_message_id":"u9","anon_messages_left":3,"truncated":true}`,
	}))
	defer srv.Close()

	c := NewClient(srv.URL).WithAnonSession("anon-1")
	col := &collector{}

	require.NoError(t, c.OpenStream(context.Background(), "chat1", ChatRequest{Content: "q"}, col.handlers()))
	require.NotNil(t, col.done)
	assert.Equal(t, "u9", col.done.UserMessageID)
	require.NotNil(t, col.done.AnonMessagesLeft)
	assert.Equal(t, 3, *col.done.AnonMessagesLeft)
	assert.True(t, col.done.Truncated)
}

func TestOpenStream_ErrorEvent(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`{"type":"token","content":"partial"}`,
		`{"type":"error","content":"model overloaded","user_message_id":"u3"}`,
	}))
	defer srv.Close()

	c := NewClient(srv.URL).WithBearerToken("tok")
	col := &collector{}

	require.NoError(t, c.OpenStream(context.Background(), "chat1", ChatRequest{Content: "q"}, col.handlers()))

	assert.Equal(t, []string{"partial"}, col.tokens)
	require.NotNil(t, col.errMeta)
	assert.Equal(t, "model overloaded", col.errMeta.Content)
	assert.Equal(t, "u3", col.errMeta.UserMessageID)
	assert.Nil(t, col.done)
}

func TestOpenStream_MalformedFramesSkipped(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`{"type":"token","content":"a"}`,
		`{not json`,
		`{"type":"mystery","content":"ignored"}`,
		`{"type":"token","content":"b"}`,
		`{"type":"done","message_id":"m1","model_used":"auto"}`,
	}))
	defer srv.Close()

	c := NewClient(srv.URL).WithBearerToken("tok")
	col := &collector{}

	require.NoError(t, c.OpenStream(context.Background(), "chat1", ChatRequest{Content: "q"}, col.handlers()))
	assert.Equal(t, []string{"a", "b"}, col.tokens)
	require.NotNil(t, col.done)
}

func TestOpenStream_ImmediateRejection(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{
			name:       "known limit reason",
			status:     http.StatusForbidden,
			body:       `{"error":{"code":"anonymous_limit_reached","message":"out of messages"}}`,
			wantDetail: "403/anonymous_limit_reached",
		},
		{
			name:       "anonymous chat disabled",
			status:     http.StatusForbidden,
			body:       `{"error":{"code":"anonymous_chat_disabled","message":"sign in"}}`,
			wantDetail: "403/anonymous_chat_disabled",
		},
		{
			name:       "unparseable body falls back to empty reason",
			status:     http.StatusBadGateway,
			body:       "upstream exploded",
			wantDetail: "502/",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			c := NewClient(srv.URL).WithAnonSession("anon-1")
			col := &collector{}

			err := c.OpenStream(context.Background(), "chat1", ChatRequest{Content: "q"}, col.handlers())
			require.NoError(t, err, "rejections are delivered through the handler, not returned")
			assert.Equal(t, []string{tc.wantDetail}, col.rejected)
			assert.Empty(t, col.tokens)
			assert.Nil(t, col.done)
			assert.Nil(t, col.errMeta)
		})
	}
}

func TestOpenStream_Cancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"type\":\"token\",\"content\":\"Hi\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"token\",\"content\":\" there\"}\n\n")
		flusher.Flush()
		// Hold the stream open until the client goes away.
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL).WithBearerToken("tok")

	col := &collector{}
	handlers := col.handlers()
	base := handlers.OnToken
	handlers.OnToken = func(content string) {
		base(content)
		if len(col.tokens) == 2 {
			cancel()
		}
	}

	err := c.OpenStream(ctx, "chat1", ChatRequest{Content: "Hello"}, handlers)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	// Partial content already delivered stays delivered.
	assert.Equal(t, []string{"Hi", " there"}, col.tokens)
	assert.Nil(t, col.done)
	assert.Nil(t, col.errMeta)
}

func TestOpenStream_DropWithoutTerminalEvent(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`{"type":"token","content":"half a rep"}`,
	}))
	defer srv.Close()

	c := NewClient(srv.URL).WithBearerToken("tok")
	col := &collector{}

	err := c.OpenStream(context.Background(), "chat1", ChatRequest{Content: "q"}, col.handlers())
	require.Error(t, err, "a drop before done/error is a network failure")
	assert.Equal(t, []string{"half a rep"}, col.tokens)
}

func TestOpenStream_Preconditions(t *testing.T) {
	c := NewClient("http://localhost:1")

	err := c.OpenStream(context.Background(), "chat1", ChatRequest{Content: "q"}, StreamHandlers{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	c.WithBearerToken("tok")
	err = c.OpenStream(context.Background(), "chat1", ChatRequest{Content: "   "}, StreamHandlers{})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

// =============================================================================
// REQUEST VALIDATION TESTS
// =============================================================================

func TestChatRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatRequest
		wantErr error
	}{
		{"plain content", ChatRequest{Content: "hi"}, nil},
		{"empty", ChatRequest{}, ErrEmptyContent},
		{"whitespace only", ChatRequest{Content: " \t\n"}, ErrEmptyContent},
		{"continue without content", ChatRequest{Continue: true}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

// =============================================================================
// SSE READER TESTS
// =============================================================================

func TestSSEReader_ReadEvent(t *testing.T) {
	input := ": comment line\n" +
		"event: message\n" +
		"data: {\"a\":1}\n" +
		"\n" +
		"data: line1\n" +
		"data: line2\n" +
		"\n" +
		"data: trailing-no-blank\n"

	r := NewSSEReader(strings.NewReader(input))

	data, err := r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", string(data))

	data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "trailing-no-blank", string(data))
}

func TestSSEReader_CRLF(t *testing.T) {
	r := NewSSEReader(strings.NewReader("data: hello\r\n\r\n"))
	data, err := r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestOpenStream_AppliesContextBeforeFirstRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(sseHandler(t, []string{
		`{"type":"done","message_id":"m1","model_used":"auto"}`,
	}))
	defer srv.Close()

	c := NewClient(srv.URL).WithBearerToken("tok")
	err := c.OpenStream(ctx, "chat1", ChatRequest{Content: "q"}, StreamHandlers{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}
