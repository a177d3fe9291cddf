// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the streaming chat reconciliation engine.
//
// The Controller owns the control flows a user can trigger - send,
// regenerate, resend, continue, stop - and composes the transcript, the
// platform stream client and the usage gate into them. A send appends an
// optimistic user+assistant pair, opens the single server-push connection,
// and applies stream events in receipt order: token events grow the
// assistant message, the terminal done event rewrites provisional ids to
// server-assigned ones, and error events annotate the pair instead of
// discarding it. The one exception is an anonymous-limit rejection before
// the stream opens, where the optimistic pair is rolled back entirely and
// the usage gate trips.
//
// At most one stream is in flight per controller; the in-flight flag is the
// mutual-exclusion mechanism and Stop cancels the active stream
// cooperatively without disturbing content already received.
package chat
