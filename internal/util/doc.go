// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers: rune- and width-aware string
// truncation for the terminal UI, and atomic file writes for settings and
// transcript exports.
package util
