// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat transcripts and messages.
package model

import (
	"testing"
)

// =============================================================================
// APPEND / REPLACE TESTS
// =============================================================================

func TestTranscript_Append(t *testing.T) {
	tr := NewTranscript()

	tr.Append(NewUserMessage("u1", "hello"))
	tr.Append(NewAssistantMessage("a1"))

	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}
	msgs := tr.Messages()
	if msgs[0].ID != "u1" || msgs[1].ID != "a1" {
		t.Errorf("messages out of order: %q, %q", msgs[0].ID, msgs[1].ID)
	}
}

func TestTranscript_ReplaceLast(t *testing.T) {
	tr := NewTranscript()
	tr.Append(NewUserMessage("u1", "hello"))
	tr.Append(NewAssistantMessage("a1"))

	tr.ReplaceLast(func(m Message) Message {
		m.IsError = true
		m.IsStreaming = false
		m.Content = "boom"
		return m
	})

	last, ok := tr.LastVisible()
	if !ok {
		t.Fatal("LastVisible returned no message")
	}
	if !last.IsError || last.Content != "boom" {
		t.Errorf("ReplaceLast did not apply transform: %+v", last)
	}
	// First message untouched
	first := tr.Messages()[0]
	if first.Content != "hello" {
		t.Errorf("ReplaceLast mutated a non-last message: %+v", first)
	}
}

func TestTranscript_ReplaceLastEmpty(t *testing.T) {
	tr := NewTranscript()
	tr.ReplaceLast(func(m Message) Message { return m }) // must not panic
	if tr.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tr.Len())
	}
}

// =============================================================================
// STREAM APPEND TESTS
// =============================================================================

func TestTranscript_AppendToLast(t *testing.T) {
	tr := NewTranscript()
	tr.Append(NewUserMessage("u1", "hi"))
	tr.Append(NewAssistantMessage("a1"))

	for _, frag := range []string{"Hi", " ", "there"} {
		if !tr.AppendToLast(frag) {
			t.Fatalf("AppendToLast(%q) rejected fragment", frag)
		}
	}

	last, _ := tr.LastVisible()
	if last.Content != "Hi there" {
		t.Errorf("Content = %q, want %q", last.Content, "Hi there")
	}
}

func TestTranscript_AppendToLast_DroppedWhenFinalized(t *testing.T) {
	tests := []struct {
		name string
		prep func(tr *Transcript)
	}{
		{
			name: "empty transcript",
			prep: func(tr *Transcript) {},
		},
		{
			name: "tail is a user message",
			prep: func(tr *Transcript) {
				tr.Append(NewUserMessage("u1", "hi"))
			},
		},
		{
			name: "tail already finalized",
			prep: func(tr *Transcript) {
				tr.Append(NewAssistantMessage("a1"))
				tr.ReplaceLast(func(m Message) Message {
					m.IsStreaming = false
					m.ModelUsed = "auto"
					return m
				})
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTranscript()
			tc.prep(tr)
			before := tr.Messages()

			if tr.AppendToLast("late token") {
				t.Error("AppendToLast accepted a fragment for a finalized tail")
			}
			after := tr.Messages()
			if len(before) != len(after) {
				t.Fatalf("message count changed: %d -> %d", len(before), len(after))
			}
			for i := range before {
				if before[i].Content != after[i].Content {
					t.Errorf("message %d content changed: %q -> %q",
						i, before[i].Content, after[i].Content)
				}
			}
		})
	}
}

// =============================================================================
// ID REWRITE TESTS
// =============================================================================

func TestTranscript_RewriteID(t *testing.T) {
	tr := NewTranscript()
	tr.Append(NewUserMessage("local_u", "question"))
	tr.Append(NewAssistantMessage("local_a"))

	ok := tr.RewriteID("local_a", "m1", func(m *Message) {
		m.ModelUsed = "auto"
		m.IsStreaming = false
	})
	if !ok {
		t.Fatal("RewriteID failed to locate the message")
	}

	msgs := tr.Messages()
	if msgs[1].ID != "m1" {
		t.Errorf("ID = %q, want m1", msgs[1].ID)
	}
	if msgs[1].ModelUsed != "auto" || msgs[1].IsStreaming {
		t.Errorf("patch not applied atomically with swap: %+v", msgs[1])
	}
	// Same array position, no duplicate
	if msgs[0].ID != "local_u" || len(msgs) != 2 {
		t.Errorf("RewriteID disturbed the list: %+v", msgs)
	}
}

func TestTranscript_RewriteID_ScansBackward(t *testing.T) {
	// Two messages can end up with identical stale content; the most recent
	// holder of the id must win.
	tr := NewTranscript()
	tr.Append(NewUserMessage("dup", "same text"))
	tr.Append(NewUserMessage("dup", "same text"))

	if !tr.RewriteID("dup", "persisted", nil) {
		t.Fatal("RewriteID failed")
	}

	msgs := tr.Messages()
	if msgs[0].ID != "dup" {
		t.Errorf("older message rewritten, want the newer one: %+v", msgs)
	}
	if msgs[1].ID != "persisted" {
		t.Errorf("newest message not rewritten: %+v", msgs)
	}
}

func TestTranscript_RewriteID_Missing(t *testing.T) {
	tr := NewTranscript()
	tr.Append(NewUserMessage("u1", "text"))

	if tr.RewriteID("nope", "m1", nil) {
		t.Error("RewriteID reported success for an unknown id")
	}
}

// =============================================================================
// REMOVE TESTS
// =============================================================================

func TestTranscript_RemoveWhere(t *testing.T) {
	tr := NewTranscript()
	tr.Append(NewUserMessage("u1", "a"))
	tr.Append(NewAssistantMessage("a1"))
	tr.Append(NewUserMessage("u2", "b"))

	removed := tr.RemoveWhere(func(m Message) bool {
		return m.ID == "u1" || m.ID == "a1"
	})
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	msgs := tr.Messages()
	if len(msgs) != 1 || msgs[0].ID != "u2" {
		t.Errorf("wrong survivors: %+v", msgs)
	}
}

func TestTranscript_RemoveByID(t *testing.T) {
	tr := NewTranscript()
	tr.Append(NewUserMessage("u1", "a"))

	if !tr.RemoveByID("u1") {
		t.Error("RemoveByID(u1) = false, want true")
	}
	if tr.RemoveByID("u1") {
		t.Error("second RemoveByID(u1) = true, want false")
	}
}

// =============================================================================
// VISIBILITY TESTS
// =============================================================================

func TestTranscript_VisibleSkipsSystem(t *testing.T) {
	tr := NewTranscript()
	tr.Append(NewSystemMessage("s1", "persona prompt"))
	tr.Append(NewUserMessage("u1", "hi"))
	tr.Append(NewSystemMessage("s2", "lore"))
	tr.Append(NewAssistantMessage("a1"))

	visible := tr.Visible()
	if len(visible) != 2 {
		t.Fatalf("Visible() returned %d messages, want 2", len(visible))
	}
	if visible[0].ID != "u1" || visible[1].ID != "a1" {
		t.Errorf("Visible() = %+v", visible)
	}

	last, ok := tr.LastVisible()
	if !ok || last.ID != "a1" {
		t.Errorf("LastVisible() = %+v, %v", last, ok)
	}
}

func TestTranscript_LastVisibleSkipsTrailingSystem(t *testing.T) {
	tr := NewTranscript()
	tr.Append(NewUserMessage("u1", "hi"))
	tr.Append(NewSystemMessage("s1", "note"))

	last, ok := tr.LastVisible()
	if !ok || last.ID != "u1" {
		t.Errorf("LastVisible() = %+v, want u1", last)
	}
}

// =============================================================================
// SCAN-BACKWARD SEARCH TESTS
// =============================================================================

func TestTranscript_LastUserBefore(t *testing.T) {
	tr := NewTranscript()
	tr.Append(NewUserMessage("u1", "first"))
	tr.Append(NewAssistantMessage("a1"))
	tr.Append(NewSystemMessage("s1", "note"))
	tr.Append(NewUserMessage("u2", "second"))
	tr.Append(NewAssistantMessage("a2"))

	msg, ok := tr.LastUserBefore("a2")
	if !ok || msg.ID != "u2" {
		t.Errorf("LastUserBefore(a2) = %+v, want u2", msg)
	}

	msg, ok = tr.LastUserBefore("a1")
	if !ok || msg.ID != "u1" {
		t.Errorf("LastUserBefore(a1) = %+v, want u1", msg)
	}

	if _, ok := tr.LastUserBefore("u1"); ok {
		t.Error("LastUserBefore(u1) found a message, want none")
	}
}

func TestTranscript_LastUser(t *testing.T) {
	tr := NewTranscript()
	if _, ok := tr.LastUser(); ok {
		t.Error("LastUser on empty transcript should report false")
	}

	tr.Append(NewUserMessage("u1", "a"))
	tr.Append(NewAssistantMessage("a1"))

	msg, ok := tr.LastUser()
	if !ok || msg.ID != "u1" {
		t.Errorf("LastUser() = %+v, want u1", msg)
	}
}

// =============================================================================
// ID GENERATION TESTS
// =============================================================================

func TestNewProvisionalID(t *testing.T) {
	a := NewProvisionalID()
	b := NewProvisionalID()

	if a == b {
		t.Error("provisional ids must be unique")
	}
	if !IsProvisionalID(a) {
		t.Errorf("IsProvisionalID(%q) = false, want true", a)
	}
	if IsProvisionalID("m1") {
		t.Error("IsProvisionalID(m1) = true, want false")
	}
}

// =============================================================================
// MESSAGE STATE TESTS
// =============================================================================

func TestMessage_States(t *testing.T) {
	streaming := NewAssistantMessage("a1")
	if streaming.Completed() {
		t.Error("streaming message must not report Completed")
	}

	done := streaming
	done.IsStreaming = false
	done.ModelUsed = "auto"
	if !done.Completed() {
		t.Error("finalized message must report Completed")
	}

	errored := streaming
	errored.IsStreaming = false
	errored.IsError = true
	if errored.Completed() {
		t.Error("errored message must not report Completed")
	}
}

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		max     int
		want    string
	}{
		{"short", "hi", 10, "hi"},
		{"exact", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"unicode", "héllo wörld", 8, "héllo..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewUserMessage("u1", tc.content)
			if got := m.Preview(tc.max); got != tc.want {
				t.Errorf("Preview(%d) = %q, want %q", tc.max, got, tc.want)
			}
		})
	}
}
