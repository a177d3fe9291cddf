// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders stored chats in shareable formats.
//
// Exporters work on settled transcripts only; system messages and
// transient state never appear in the output. Markdown is the
// human-facing format, JSON is the faithful one for re-import.
package export
