// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/roleplay-tui/internal/model"
	"github.com/jeranaias/roleplay-tui/internal/storage"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// streamTickMsg drives transcript re-renders while a reply streams.
type streamTickMsg time.Time

// streamDoneMsg is delivered when a controller operation returns.
// err carries pre-stream failures (empty content, limit reached);
// stream-level failures are already folded into the transcript.
type streamDoneMsg struct {
	err error
}

// personaPrefillMsg carries a suggested user reply for the input box.
type personaPrefillMsg struct {
	text string
	err  error
}

// historyLoadedMsg carries a persisted transcript loaded at startup.
type historyLoadedMsg struct {
	msgs []model.Message
	err  error
}

// historySavedMsg reports the result of a transcript save.
type historySavedMsg struct {
	err error
}

// chatListMsg carries stored chats for /history and /search.
type chatListMsg struct {
	items []storage.ChatMeta
	err   error
}

// exportedMsg reports the result of a markdown export.
type exportedMsg struct {
	path string
	err  error
}
