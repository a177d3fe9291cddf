// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the terminal chat screen.
//
// The screen is a Bubble Tea model wrapping a chat.Controller: key
// presses map to controller operations (send, stop, regenerate,
// resend, continue), and a 30fps tick re-reads the transcript while a
// reply streams so tokens appear as they arrive. Slash commands cover
// session management (save, load, export, search).
//
// The model never mutates the transcript directly; everything goes
// through the controller so the reconciliation rules hold no matter
// which key triggered the work.
package chat
