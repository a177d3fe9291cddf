// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat transcripts and messages.
//
// The central type is Transcript, the in-memory message store the rest of the
// client renders from. Messages carry two kinds of identity: a provisional id
// generated locally when a message is created optimistically, and a persisted
// id assigned by the server once the message is acknowledged. RewriteID swaps
// one for the other in place, without disturbing list order.
//
// All Transcript mutations are atomic; readers always see a consistent list.
package model
