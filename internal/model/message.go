// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat transcripts and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Visible reports whether messages with this role are shown to the user.
// System messages are kept in the transcript for indexing but never rendered.
func (r Role) Visible() bool {
	return r != RoleSystem
}

// =============================================================================
// ID GENERATION
// =============================================================================

// IDGenerator produces provisional message identifiers. Provisional ids are
// client-generated placeholders that the server later replaces with persisted
// ids via Transcript.RewriteID. Injecting the generator keeps tests
// deterministic.
type IDGenerator func() string

// provisionalPrefix marks ids that have not yet been acknowledged by the server.
const provisionalPrefix = "local_"

// NewProvisionalID is the default IDGenerator, backed by random UUIDs.
func NewProvisionalID() string {
	return provisionalPrefix + uuid.NewString()
}

// IsProvisionalID reports whether id was generated locally by NewProvisionalID.
func IsProvisionalID(id string) bool {
	return len(id) > len(provisionalPrefix) && id[:len(provisionalPrefix)] == provisionalPrefix
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a chat transcript.
//
// An assistant message is always in exactly one of three states:
//   - streaming: IsStreaming true, content growing, no ModelUsed
//   - completed: ModelUsed set, IsError false
//   - errored:   IsError true, no ModelUsed
type Message struct {
	// Identity. The id is provisional until the server acknowledges the
	// message, at which point the transcript rewrites it in place.
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`

	// Content. Mutable while streaming, fixed once finalized.
	Content string `json:"content"`

	// Streaming state (not persisted).
	IsStreaming bool `json:"-"`

	// IsError marks an assistant message that terminated in failure.
	// Error messages are never persisted server-side.
	IsError bool `json:"is_error,omitempty"`

	// ModelUsed names the generation backend, set once the message is
	// persisted by the server.
	ModelUsed string `json:"model_used,omitempty"`

	// Truncated is set when the server signals the reply hit a length limit
	// and can be extended with a continue request.
	Truncated bool `json:"truncated,omitempty"`
}

// NewUserMessage creates a user message with the given provisional id.
func NewUserMessage(id, content string) Message {
	return Message{
		ID:        id,
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage creates an empty assistant message in the streaming state.
func NewAssistantMessage(id string) Message {
	return Message{
		ID:          id,
		Role:        RoleAssistant,
		CreatedAt:   time.Now(),
		IsStreaming: true,
	}
}

// NewSystemMessage creates a system message. System messages are retained for
// indexing but filtered from any visible view.
func NewSystemMessage(id, content string) Message {
	return Message{
		ID:        id,
		Role:      RoleSystem,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Completed reports whether the message finished streaming successfully.
func (m Message) Completed() bool {
	return !m.IsStreaming && !m.IsError
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
