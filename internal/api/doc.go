// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for the roleplay platform.
//
// The platform exposes one streaming endpoint per chat: the client POSTs a
// chat request and the server pushes a small tagged-event grammar back over
// a long-lived SSE connection (token, done, error frames). Exactly one
// connection is open per call; events are delivered to caller-supplied
// handlers in receipt order.
//
// Sends authenticate with either a bearer credential or an anonymous-session
// identifier header, never both. Anonymous sessions are subject to a
// server-enforced message limit; the limit surfaces as a typed rejection
// before any stream opens and is handled specially by the flow controller.
package api
