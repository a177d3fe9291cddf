// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/jeranaias/roleplay-tui/internal/api"
	"github.com/jeranaias/roleplay-tui/internal/model"
)

// =============================================================================
// ERRORS AND FALLBACK TEXT
// =============================================================================

var (
	// ErrStreamActive is returned when a flow is started while a reply is
	// already streaming.
	ErrStreamActive = errors.New("a reply is already streaming")

	// ErrLimitReached is returned when the anonymous message limit blocks a
	// send before any network call is made.
	ErrLimitReached = errors.New("anonymous message limit reached")

	// ErrNoTarget is returned when regenerate, resend or continue finds no
	// eligible message to act on.
	ErrNoTarget = errors.New("no eligible message to act on")
)

// Shown in the errored assistant bubble when the server supplies no text.
const (
	connectionErrorText = "Connection lost. Check your network and resend the message."
	genericErrorText    = "Something went wrong while generating a reply. Try resending."
)

// =============================================================================
// PLATFORM INTERFACE
// =============================================================================

// Platform is the slice of the backend API the controller drives. *api.Client
// satisfies it; tests substitute a scripted fake.
type Platform interface {
	OpenStream(ctx context.Context, chatID string, req api.ChatRequest, handlers api.StreamHandlers) error
	DeleteMessage(ctx context.Context, chatID, messageID string) error
	GeneratePersonaReply(ctx context.Context, chatID string) (string, error)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller coordinates one chat's message flows. All mutating methods are
// meant to be called from a single goroutine at a time with the exception of
// Stop, which may interrupt an in-flight Send from anywhere.
type Controller struct {
	chatID     string
	platform   Platform
	transcript *model.Transcript
	gate       *UsageGate // nil for authenticated sessions
	newID      model.IDGenerator
	defaults   api.ChatRequest // language and generation parameters

	cancelMgr *cancelManager

	mu                 sync.Mutex
	streaming          bool
	pendingUserID      string
	pendingAssistantID string
	continuation       bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithUsageGate installs the anonymous usage gate. Authenticated sessions
// leave it unset and are never blocked locally.
func WithUsageGate(g *UsageGate) Option {
	return func(c *Controller) { c.gate = g }
}

// WithIDGenerator overrides provisional id generation, used by tests for
// deterministic ids.
func WithIDGenerator(gen model.IDGenerator) Option {
	return func(c *Controller) { c.newID = gen }
}

// WithRequestDefaults sets the language and generation parameters copied
// into every stream request.
func WithRequestDefaults(defaults api.ChatRequest) Option {
	return func(c *Controller) { c.defaults = defaults }
}

// NewController creates a controller for one chat backed by the given
// platform client and an empty transcript.
func NewController(chatID string, platform Platform, opts ...Option) *Controller {
	c := &Controller{
		chatID:     chatID,
		platform:   platform,
		transcript: model.NewTranscript(),
		newID:      model.NewProvisionalID,
		cancelMgr:  newCancelManager(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcript exposes the underlying message store for rendering and
// persistence.
func (c *Controller) Transcript() *model.Transcript {
	return c.transcript
}

// Messages returns a snapshot of the visible transcript.
func (c *Controller) Messages() []model.Message {
	return c.transcript.Visible()
}

// IsStreaming reports whether a reply is currently in flight.
func (c *Controller) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// LimitReached reports whether the anonymous limit blocks further sends.
// Always false for authenticated sessions.
func (c *Controller) LimitReached() bool {
	return c.gate != nil && c.gate.LimitReached()
}

// MessagesLeft reports the server-stated anonymous allowance, if known.
func (c *Controller) MessagesLeft() (int, bool) {
	if c.gate == nil {
		return 0, false
	}
	return c.gate.Remaining()
}

// =============================================================================
// FLOWS
// =============================================================================

// Send appends an optimistic user message and assistant placeholder, then
// streams the reply into the placeholder. It blocks until the stream ends,
// so callers run it off the UI loop. The transcript reflects every event as
// it is applied; a non-nil return means the flow never started.
func (c *Controller) Send(content string) error {
	return c.send(content, false)
}

func (c *Controller) send(content string, isRegenerate bool) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return api.ErrEmptyContent
	}
	if c.LimitReached() {
		return ErrLimitReached
	}
	if !c.beginStream(c.newID(), c.newID(), false) {
		return ErrStreamActive
	}

	userID, assistantID := c.pendingIDs()
	c.transcript.Append(model.NewUserMessage(userID, content))
	c.transcript.Append(model.NewAssistantMessage(assistantID))

	req := c.defaults
	req.Content = content
	req.IsRegenerate = isRegenerate
	return c.run(req)
}

// Regenerate discards the given assistant reply and requests a fresh one for
// the user message that preceded it. Both sides of the old exchange are
// deleted server-side on a best-effort basis before the new send.
func (c *Controller) Regenerate(assistantID string) error {
	if c.IsStreaming() {
		return ErrStreamActive
	}
	msg, ok := c.transcript.MessageByID(assistantID)
	if !ok || msg.Role != model.RoleAssistant {
		return ErrNoTarget
	}
	userMsg, ok := c.transcript.LastUserBefore(assistantID)
	if !ok {
		return ErrNoTarget
	}

	c.transcript.RemoveByID(assistantID)

	// Deleting a message the server never persisted is a no-op there, so
	// failures are logged and ignored.
	ctx := context.Background()
	if err := c.platform.DeleteMessage(ctx, c.chatID, msg.ID); err != nil {
		log.Printf("chat: delete assistant %s: %v", msg.ID, err)
	}
	if err := c.platform.DeleteMessage(ctx, c.chatID, userMsg.ID); err != nil {
		log.Printf("chat: delete user %s: %v", userMsg.ID, err)
	}

	c.transcript.RemoveByID(userMsg.ID)
	return c.send(userMsg.Content, true)
}

// ResendLast re-sends the trailing user message, optionally with edited
// content (empty keeps the original). A trailing errored assistant reply is
// removed along with it, so a failed exchange collapses back into a fresh
// send.
func (c *Controller) ResendLast(edited string) error {
	if c.IsStreaming() {
		return ErrStreamActive
	}
	last, ok := c.transcript.LastVisible()
	if !ok {
		return ErrNoTarget
	}

	var target model.Message
	trailingErrorID := ""
	switch {
	case last.Role == model.RoleUser:
		target = last
	case last.Role == model.RoleAssistant && last.IsError:
		u, ok := c.transcript.LastUserBefore(last.ID)
		if !ok {
			return ErrNoTarget
		}
		target = u
		trailingErrorID = last.ID
	default:
		return ErrNoTarget
	}

	content := target.Content
	if strings.TrimSpace(edited) != "" {
		content = edited
	}

	if trailingErrorID != "" {
		c.transcript.RemoveByID(trailingErrorID)
	}
	c.transcript.RemoveByID(target.ID)
	if err := c.platform.DeleteMessage(context.Background(), c.chatID, target.ID); err != nil {
		log.Printf("chat: delete user %s: %v", target.ID, err)
	}
	return c.send(content, false)
}

// Continue asks the server to extend the trailing truncated assistant reply.
// The reply is put back into the streaming state and tokens append to its
// existing content; no new optimistic pair is created.
func (c *Controller) Continue() error {
	last, ok := c.transcript.LastVisible()
	if !ok || last.Role != model.RoleAssistant || last.IsError || !last.Truncated {
		return ErrNoTarget
	}
	if c.LimitReached() {
		return ErrLimitReached
	}

	userID := ""
	if u, ok := c.transcript.LastUserBefore(last.ID); ok {
		userID = u.ID
	}
	if !c.beginStream(userID, last.ID, true) {
		return ErrStreamActive
	}

	c.transcript.RewriteID(last.ID, last.ID, func(m *model.Message) {
		m.IsStreaming = true
		m.Truncated = false
	})

	req := c.defaults
	req.Continue = true
	return c.run(req)
}

// Stop cancels the active stream, if any. Content already received stays in
// the transcript; the reply is finalized without an error flag. Safe to call
// repeatedly and when nothing is streaming.
func (c *Controller) Stop() {
	c.cancelMgr.cancel()
}

// PersonaReply fetches a suggested in-character user message for prefilling
// the input box. It never touches the transcript.
func (c *Controller) PersonaReply(ctx context.Context) (string, error) {
	return c.platform.GeneratePersonaReply(ctx, c.chatID)
}

// =============================================================================
// STREAM LIFECYCLE
// =============================================================================

// run opens the stream and applies events until it ends. By the time it
// returns the transcript is settled: reconciled on done, annotated on error,
// rolled back on a limit rejection, or finalized in place on cancellation.
func (c *Controller) run(req api.ChatRequest) error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelMgr.setCancelFunc(cancel)
	defer c.endStream()

	handlers := api.StreamHandlers{
		OnToken: func(content string) {
			c.transcript.AppendToLast(content)
		},
		OnDone: func(meta api.DoneMeta) {
			c.finalizeDone(meta)
		},
		OnError: func(meta api.ErrorMeta) {
			c.finalizeError(meta)
		},
		OnConnectFailure: func(status int, reason string) {
			c.handleRejection(status, reason)
		},
	}

	err := c.platform.OpenStream(ctx, c.chatID, req, handlers)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		c.finalizeStopped()
		return nil
	case errors.Is(err, api.ErrNotConfigured), errors.Is(err, api.ErrEmptyContent):
		// Never reached the wire; undo the optimistic pair and surface it.
		c.rollbackPending()
		return err
	default:
		log.Printf("chat: stream failed: %v", err)
		c.failPending(connectionErrorText)
		return nil
	}
}

// beginStream claims the in-flight slot and records the ids the handlers
// will reconcile against. Returns false if a stream is already active.
func (c *Controller) beginStream(userID, assistantID string, continuation bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		return false
	}
	c.streaming = true
	c.pendingUserID = userID
	c.pendingAssistantID = assistantID
	c.continuation = continuation
	return true
}

func (c *Controller) endStream() {
	c.mu.Lock()
	c.streaming = false
	c.pendingUserID = ""
	c.pendingAssistantID = ""
	c.continuation = false
	c.mu.Unlock()
	c.cancelMgr.clear()
}

func (c *Controller) pendingIDs() (userID, assistantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingUserID, c.pendingAssistantID
}

func (c *Controller) isContinuation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.continuation
}

// finalizeDone rewrites the provisional ids to the server-assigned ones and
// settles the assistant message in place.
func (c *Controller) finalizeDone(meta api.DoneMeta) {
	userID, assistantID := c.pendingIDs()
	newID := meta.MessageID
	if newID == "" {
		newID = assistantID
	}
	c.transcript.RewriteID(assistantID, newID, func(m *model.Message) {
		m.IsStreaming = false
		m.IsError = false
		m.ModelUsed = meta.ModelUsed
		m.Truncated = meta.Truncated
	})
	if meta.UserMessageID != "" && userID != "" {
		c.transcript.RewriteID(userID, meta.UserMessageID, nil)
	}
	if c.gate != nil && meta.AnonMessagesLeft != nil {
		c.gate.Update(*meta.AnonMessagesLeft)
	}
}

// finalizeError settles the assistant message as errored using the server's
// text when present. A failed continuation keeps its earlier content and
// truncated flag instead, since the reply it extends is already valid.
func (c *Controller) finalizeError(meta api.ErrorMeta) {
	userID, assistantID := c.pendingIDs()
	if c.isContinuation() {
		c.transcript.RewriteID(assistantID, assistantID, func(m *model.Message) {
			m.IsStreaming = false
			m.Truncated = true
		})
		return
	}
	text := strings.TrimSpace(meta.Content)
	if text == "" {
		text = genericErrorText
	}
	c.transcript.RewriteID(assistantID, assistantID, func(m *model.Message) {
		m.IsStreaming = false
		m.IsError = true
		m.Content = text
	})
	if meta.UserMessageID != "" && userID != "" {
		c.transcript.RewriteID(userID, meta.UserMessageID, nil)
	}
}

// finalizeStopped settles a cancelled reply: partial content stays, no error
// flag is set, and the provisional id remains since the server assigned none.
func (c *Controller) finalizeStopped() {
	_, assistantID := c.pendingIDs()
	c.transcript.RewriteID(assistantID, assistantID, func(m *model.Message) {
		m.IsStreaming = false
	})
}

// handleRejection deals with a non-2xx response before any stream opened.
// Limit rejections roll the optimistic pair back and trip the gate so the
// refused send leaves no trace; anything else becomes an errored reply.
func (c *Controller) handleRejection(status int, reason string) {
	if reason == api.ReasonAnonLimitReached || reason == api.ReasonAnonChatDisabled {
		c.rollbackPending()
		if c.gate != nil {
			c.gate.Trip()
		}
		return
	}
	log.Printf("chat: send rejected: status=%d reason=%q", status, reason)
	c.failPending(genericErrorText)
}

// rollbackPending removes the optimistic pair entirely. For a continuation
// the assistant message predates the stream, so it is restored instead.
func (c *Controller) rollbackPending() {
	userID, assistantID := c.pendingIDs()
	if c.isContinuation() {
		c.transcript.RewriteID(assistantID, assistantID, func(m *model.Message) {
			m.IsStreaming = false
			m.Truncated = true
		})
		return
	}
	c.transcript.RemoveWhere(func(m model.Message) bool {
		return m.ID == userID || m.ID == assistantID
	})
}

// failPending marks the pending assistant reply as errored with the given
// text. A failed continuation is restored rather than errored.
func (c *Controller) failPending(text string) {
	_, assistantID := c.pendingIDs()
	if c.isContinuation() {
		c.transcript.RewriteID(assistantID, assistantID, func(m *model.Message) {
			m.IsStreaming = false
			m.Truncated = true
		})
		return
	}
	c.transcript.RewriteID(assistantID, assistantID, func(m *model.Message) {
		m.IsStreaming = false
		m.IsError = true
		m.Content = text
	})
}
