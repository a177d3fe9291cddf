// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/jeranaias/roleplay-tui/internal/model"

// =============================================================================
// TAIL CLASSIFICATION
// =============================================================================

// TailState classifies the newest visible message. The UI derives which
// controls to offer from it: resend applies to a user tail or an errored
// assistant tail, regenerate to any settled assistant tail, continue only to
// a truncated one, and stop only while streaming.
type TailState int

const (
	// TailEmpty means the transcript has no visible messages.
	TailEmpty TailState = iota
	// TailUser means the newest message is from the user with no reply yet.
	TailUser
	// TailStreaming means an assistant reply is still arriving.
	TailStreaming
	// TailAssistant means the newest message is a completed assistant reply.
	TailAssistant
	// TailAssistantTruncated means the reply completed but was cut short.
	TailAssistantTruncated
	// TailAssistantError means the newest message is an errored assistant reply.
	TailAssistantError
)

// ClassifyTail inspects the newest visible message of the transcript.
func ClassifyTail(t *model.Transcript) TailState {
	last, ok := t.LastVisible()
	if !ok {
		return TailEmpty
	}
	if last.Role == model.RoleUser {
		return TailUser
	}
	switch {
	case last.IsStreaming:
		return TailStreaming
	case last.IsError:
		return TailAssistantError
	case last.Truncated:
		return TailAssistantTruncated
	default:
		return TailAssistant
	}
}

// CanSend reports whether a fresh send is allowed from this state.
func (s TailState) CanSend() bool {
	return s != TailStreaming
}

// CanRegenerate reports whether the tail reply can be regenerated.
func (s TailState) CanRegenerate() bool {
	return s == TailAssistant || s == TailAssistantTruncated
}

// CanContinue reports whether the tail reply can be continued.
func (s TailState) CanContinue() bool {
	return s == TailAssistantTruncated
}

// CanResend reports whether the trailing user message can be resent.
func (s TailState) CanResend() bool {
	return s == TailUser || s == TailAssistantError
}

// CanStop reports whether there is an active stream to cancel.
func (s TailState) CanStop() bool {
	return s == TailStreaming
}

// String returns a short label for logs.
func (s TailState) String() string {
	switch s {
	case TailEmpty:
		return "empty"
	case TailUser:
		return "user"
	case TailStreaming:
		return "streaming"
	case TailAssistant:
		return "assistant"
	case TailAssistantTruncated:
		return "assistant-truncated"
	case TailAssistantError:
		return "assistant-error"
	default:
		return "unknown"
	}
}
