// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	chatctl "github.com/jeranaias/roleplay-tui/internal/chat"
	"github.com/jeranaias/roleplay-tui/internal/export"
	"github.com/jeranaias/roleplay-tui/internal/model"
	"github.com/jeranaias/roleplay-tui/internal/storage"
)

// streamTickInterval is the render cadence while tokens arrive (30fps).
const streamTickInterval = 33 * time.Millisecond

// personaTimeout bounds the suggested-reply request.
const personaTimeout = 30 * time.Second

// =============================================================================
// CONTROLLER COMMANDS
// =============================================================================

// Controller operations block until the stream settles, so each runs
// inside a tea.Cmd goroutine and reports back with streamDoneMsg.

func sendCmd(c *chatctl.Controller, content string) tea.Cmd {
	return func() tea.Msg {
		return streamDoneMsg{err: c.Send(content)}
	}
}

func regenerateCmd(c *chatctl.Controller, assistantID string) tea.Cmd {
	return func() tea.Msg {
		return streamDoneMsg{err: c.Regenerate(assistantID)}
	}
}

func resendCmd(c *chatctl.Controller, edited string) tea.Cmd {
	return func() tea.Msg {
		return streamDoneMsg{err: c.ResendLast(edited)}
	}
}

func continueCmd(c *chatctl.Controller) tea.Cmd {
	return func() tea.Msg {
		return streamDoneMsg{err: c.Continue()}
	}
}

func personaPrefillCmd(c *chatctl.Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), personaTimeout)
		defer cancel()
		text, err := c.PersonaReply(ctx)
		return personaPrefillMsg{text: text, err: err}
	}
}

// streamTickCmd schedules the next transcript re-render.
func streamTickCmd() tea.Cmd {
	return tea.Tick(streamTickInterval, func(t time.Time) tea.Msg {
		return streamTickMsg(t)
	})
}

// =============================================================================
// HISTORY COMMANDS
// =============================================================================

func loadHistoryCmd(store *storage.HistoryStore, chatID string) tea.Cmd {
	return func() tea.Msg {
		msgs, err := store.LoadTranscript(context.Background(), chatID)
		return historyLoadedMsg{msgs: msgs, err: err}
	}
}

func saveHistoryCmd(store *storage.HistoryStore, chatID string, msgs []model.Message) tea.Cmd {
	return func() tea.Msg {
		err := store.SaveTranscript(context.Background(), chatID, "", msgs)
		return historySavedMsg{err: err}
	}
}

func listChatsCmd(store *storage.HistoryStore) tea.Cmd {
	return func() tea.Msg {
		items, err := store.ListChats(context.Background())
		return chatListMsg{items: items, err: err}
	}
}

func searchChatsCmd(store *storage.HistoryStore, query string) tea.Cmd {
	return func() tea.Msg {
		items, err := store.SearchMessages(context.Background(), query)
		return chatListMsg{items: items, err: err}
	}
}

func exportCmd(store *storage.HistoryStore, chatID, format string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		meta, err := store.GetChat(ctx, chatID)
		if err != nil {
			return exportedMsg{err: err}
		}
		msgs, err := store.LoadTranscript(ctx, chatID)
		if err != nil {
			return exportedMsg{err: err}
		}

		opts := export.DefaultOptions()
		exporter, err := export.New(format, opts)
		if err != nil {
			return exportedMsg{err: err}
		}
		path, err := export.WriteFile(&export.Chat{Meta: meta, Messages: msgs}, exporter, opts)
		if err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{path: path}
	}
}

// =============================================================================
// SLASH COMMAND REGISTRY
// =============================================================================

// CommandHandler handles one slash command. It receives the model and
// the arguments after the command name.
type CommandHandler func(m *Model, args []string) (tea.Model, tea.Cmd)

var commandHandlers = map[string]CommandHandler{
	"help": handleHelpCommand,
	"h":    handleHelpCommand,
	"?":    handleHelpCommand,

	"quit": handleQuitCommand,
	"q":    handleQuitCommand,
	"exit": handleQuitCommand,

	"save":    handleSaveCommand,
	"s":       handleSaveCommand,
	"export":  handleExportCommand,
	"e":       handleExportCommand,
	"history": handleHistoryCommand,
	"hist":    handleHistoryCommand,
	"search":  handleSearchCommand,
	"left":    handleLeftCommand,
}

// handleCommand dispatches a "/name args..." input line.
func (m *Model) handleCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return m, nil
	}
	handler, ok := commandHandlers[strings.ToLower(fields[0])]
	if !ok {
		m.notice = fmt.Sprintf("Unknown command: /%s (try /help)", fields[0])
		return m, nil
	}
	return handler(m, fields[1:])
}

func handleHelpCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	m.notice = "Commands: /save /export /history /search <text> /left /quit\n" +
		"Keys: Enter send, Esc stop, C-r regenerate, C-o continue, C-e resend, C-g suggest, C-q quit"
	return m, nil
}

func handleQuitCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	return m, tea.Quit
}

func handleSaveCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	if m.store == nil {
		m.notice = "History is disabled."
		return m, nil
	}
	return m, saveHistoryCmd(m.store, m.chatID, m.controller.Transcript().Messages())
}

func handleExportCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if m.store == nil {
		m.notice = "History is disabled."
		return m, nil
	}
	format := "md"
	if len(args) > 0 {
		format = args[0]
	}
	// Save first so the export sees the current transcript.
	return m, tea.Sequence(
		saveHistoryCmd(m.store, m.chatID, m.controller.Transcript().Messages()),
		exportCmd(m.store, m.chatID, format),
	)
}

func handleHistoryCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	if m.store == nil {
		m.notice = "History is disabled."
		return m, nil
	}
	return m, listChatsCmd(m.store)
}

func handleSearchCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if m.store == nil {
		m.notice = "History is disabled."
		return m, nil
	}
	return m, searchChatsCmd(m.store, strings.Join(args, " "))
}

func handleLeftCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	if left, ok := m.controller.MessagesLeft(); ok {
		m.notice = fmt.Sprintf("%d anonymous messages left.", left)
	} else {
		m.notice = "No message limit on this session."
	}
	return m, nil
}
