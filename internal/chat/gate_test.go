// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "testing"

func TestUsageGate_StartsUnknown(t *testing.T) {
	g := NewUsageGate()
	if _, known := g.Remaining(); known {
		t.Error("fresh gate should have no known count")
	}
	if g.LimitReached() {
		t.Error("fresh gate should not be limited")
	}
}

func TestUsageGate_UpdateRecordsCount(t *testing.T) {
	g := NewUsageGate()
	g.Update(5)
	left, known := g.Remaining()
	if !known || left != 5 {
		t.Errorf("Remaining() = %d, %v, want 5, true", left, known)
	}
	if g.LimitReached() {
		t.Error("positive count should not trip the limit")
	}
}

func TestUsageGate_ZeroTripsLimit(t *testing.T) {
	g := NewUsageGate()
	g.Update(0)
	if !g.LimitReached() {
		t.Error("zero count should trip the limit")
	}
}

func TestUsageGate_LimitIsOneWay(t *testing.T) {
	g := NewUsageGate()
	g.Trip()
	if !g.LimitReached() {
		t.Fatal("Trip should set the limit")
	}
	g.Update(3)
	if !g.LimitReached() {
		t.Error("a later positive count must not clear the limit")
	}
}
