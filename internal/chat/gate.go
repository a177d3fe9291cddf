// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "sync"

// =============================================================================
// ANONYMOUS USAGE GATE
// =============================================================================

// UsageGate tracks how many messages an anonymous session may still send.
// The count is server-authoritative: the client never decrements it locally,
// it only records the value carried on each done event. The limit-reached
// flag is one-way for the life of the gate; once tripped it stays set even
// if a later update reports a positive count.
type UsageGate struct {
	mu           sync.Mutex
	remaining    int
	known        bool
	limitReached bool
}

// NewUsageGate returns a gate with no known count and the limit not reached.
func NewUsageGate() *UsageGate {
	return &UsageGate{}
}

// Update records a server-reported remaining count. A count of zero or less
// trips the limit.
func (g *UsageGate) Update(left int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remaining = left
	g.known = true
	if left <= 0 {
		g.limitReached = true
	}
}

// Trip marks the limit reached without a count, used when the server rejects
// a send outright with a limit reason.
func (g *UsageGate) Trip() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remaining = 0
	g.known = true
	g.limitReached = true
}

// Remaining reports the last server-reported count. The second return is
// false until the server has reported at least once.
func (g *UsageGate) Remaining() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining, g.known
}

// LimitReached reports whether sending is blocked for this session.
func (g *UsageGate) LimitReached() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limitReached
}
