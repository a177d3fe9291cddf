// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides local transcript history persistence.
//
// Transcripts are stored in a SQLite database at ~/.roleplay/history.db.
// Only settled messages are written: streaming placeholders and errored
// replies are transient client state and never reach disk. The server
// remains the source of truth for chat content; local history exists for
// offline browsing and export.
package storage
