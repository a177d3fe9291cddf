// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat transcripts and messages.
package model

import (
	"sync"
	"time"
)

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered, append-friendly collection of chat messages held
// in client memory. It is the single source of truth for rendering.
//
// Every mutation is applied atomically under an internal lock: readers never
// observe a partially applied write. The transcript never talks to the
// network; identity reconciliation (RewriteID) is pure bookkeeping over the
// in-memory list.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
}

// ReplaceLast applies transform to the last message and stores the result in
// place. It is a no-op on an empty transcript.
func (t *Transcript) ReplaceLast(transform func(Message) Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.messages) == 0 {
		return
	}
	i := len(t.messages) - 1
	t.messages[i] = transform(t.messages[i])
}

// AppendToLast appends a streamed fragment to the last message, but only if
// that message is an assistant message still receiving the stream. Fragments
// arriving after the tail has been finalized are dropped rather than
// corrupting an unrelated message.
func (t *Transcript) AppendToLast(fragment string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.messages) == 0 {
		return false
	}
	last := &t.messages[len(t.messages)-1]
	if last.Role != RoleAssistant || !last.IsStreaming {
		return false
	}
	last.Content += fragment
	return true
}

// RemoveWhere deletes every message matching the predicate and returns the
// number of messages removed. Order of the remaining messages is preserved.
func (t *Transcript) RemoveWhere(predicate func(Message) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.messages[:0]
	removed := 0
	for _, msg := range t.messages {
		if predicate(msg) {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	t.messages = kept
	return removed
}

// RemoveByID deletes the message with the given id, if present.
func (t *Transcript) RemoveByID(id string) bool {
	return t.RemoveWhere(func(m Message) bool { return m.ID == id }) > 0
}

// RewriteID replaces a message's current id with a server-assigned one,
// applying the optional patch atomically with the swap. The lookup scans from
// the most recent entry backward so that, when several messages could share
// stale content, the latest one wins. Position in the list is unchanged.
func (t *Transcript) RewriteID(oldID, newID string, patch func(*Message)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].ID != oldID {
			continue
		}
		t.messages[i].ID = newID
		if patch != nil {
			patch(&t.messages[i])
		}
		return true
	}
	return false
}

// Clear removes all messages.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}

// =============================================================================
// READS
// =============================================================================

// Messages returns a snapshot of the full transcript, system messages included.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Visible returns a snapshot of the transcript with system messages filtered
// out. This is the view the rendering layer consumes.
func (t *Transcript) Visible() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, 0, len(t.messages))
	for _, msg := range t.messages {
		if msg.Role.Visible() {
			out = append(out, msg)
		}
	}
	return out
}

// Len returns the number of messages, system messages included.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// MessageByID returns the message with the given id.
func (t *Transcript) MessageByID(id string) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].ID == id {
			return t.messages[i], true
		}
	}
	return Message{}, false
}

// LastVisible returns the most recent non-system message.
func (t *Transcript) LastVisible() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role.Visible() {
			return t.messages[i], true
		}
	}
	return Message{}, false
}

// LastUserBefore returns the nearest user message strictly preceding the
// message with the given id, skipping system messages. Short in-memory lists
// make the linear backward scan the right tool here.
func (t *Transcript) LastUserBefore(id string) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	start := len(t.messages) - 1
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].ID == id {
			start = i - 1
			break
		}
	}
	for i := start; i >= 0; i-- {
		if t.messages[i].Role == RoleUser {
			return t.messages[i], true
		}
	}
	return Message{}, false
}

// LastUser returns the most recent user message.
func (t *Transcript) LastUser() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == RoleUser {
			return t.messages[i], true
		}
	}
	return Message{}, false
}

// UpdatedAt returns the creation time of the newest message, or the zero time
// for an empty transcript.
func (t *Transcript) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return time.Time{}
	}
	return t.messages[len(t.messages)-1].CreatedAt
}
