// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/roleplay-tui/internal/api"
	chatctl "github.com/jeranaias/roleplay-tui/internal/chat"
	"github.com/jeranaias/roleplay-tui/internal/config"
	"github.com/jeranaias/roleplay-tui/internal/storage"
	"github.com/jeranaias/roleplay-tui/internal/ui/styles"
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	controller *chatctl.Controller
	store      *storage.HistoryStore // nil when history is disabled
	cfg        *config.Config
	theme      *styles.Theme
	chatID     string

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model
	keys     KeyMap

	width  int
	height int
	ready  bool

	// busy is true from the moment a controller operation is kicked
	// off until its streamDoneMsg arrives. The controller's own
	// streaming flag can lag the goroutine start, so the render tick
	// keys off this instead.
	busy bool

	// notice is a transient line shown above the input: command
	// output, pre-stream errors, save confirmations.
	notice string
}

// New creates the chat screen bound to a controller.
func New(ctrl *chatctl.Controller, store *storage.HistoryStore, cfg *config.Config, chatID string) Model {
	input := textinput.New()
	input.Placeholder = "Say something... (/help for commands)"
	input.CharLimit = 4000
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		controller: ctrl,
		store:      store,
		cfg:        cfg,
		theme:      styles.NewTheme(cfg.UI.Theme),
		chatID:     chatID,
		input:      input,
		spin:       spin,
		keys:       DefaultKeyMap(),
	}
}

// Init loads persisted history and starts the input cursor blink.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.store != nil {
		cmds = append(cmds, loadHistoryCmd(m.store, m.chatID))
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// UPDATE
// =============================================================================

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case streamTickMsg:
		m.refreshViewport(true)
		if m.busy {
			return m, streamTickCmd()
		}
		return m, nil

	case streamDoneMsg:
		return m.handleStreamDone(msg)

	case personaPrefillMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Could not suggest a reply: %v", msg.err)
			return m, nil
		}
		m.input.SetValue(msg.text)
		m.input.CursorEnd()
		return m, nil

	case historyLoadedMsg:
		return m.handleHistoryLoaded(msg)

	case historySavedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Save failed: %v", msg.err)
		} else {
			m.notice = "Chat saved."
		}
		return m, nil

	case chatListMsg:
		return m.handleChatList(msg)

	case exportedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Export failed: %v", msg.err)
		} else {
			m.notice = fmt.Sprintf("Exported to %s", msg.path)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.busy {
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	vpHeight := msg.Height - m.chromeHeight()
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.Width = msg.Width - 6
	m.refreshViewport(false)
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Ctrl+C stops an active stream; otherwise it quits like C-q.
	if msg.String() == "ctrl+c" {
		if m.controller.IsStreaming() {
			m.controller.Stop()
			return m, nil
		}
		return m, tea.Quit
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Stop):
		if m.controller.IsStreaming() {
			m.controller.Stop()
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keys.Regenerate):
		last, ok := m.controller.Transcript().LastVisible()
		if !ok {
			return m, nil
		}
		return m.startStream(regenerateCmd(m.controller, last.ID))

	case key.Matches(msg, m.keys.Continue):
		return m.startStream(continueCmd(m.controller))

	case key.Matches(msg, m.keys.Resend):
		edited := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		return m.startStream(resendCmd(m.controller, edited))

	case key.Matches(msg, m.keys.Prefill):
		return m, personaPrefillCmd(m.controller)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	if strings.HasPrefix(line, "/") {
		m.input.Reset()
		return m.handleCommand(line)
	}
	m.input.Reset()
	return m.startStream(sendCmd(m.controller, line))
}

// startStream kicks off a blocking controller operation together with
// the render tick and spinner.
func (m Model) startStream(op tea.Cmd) (tea.Model, tea.Cmd) {
	m.notice = ""
	m.busy = true
	return m, tea.Batch(op, streamTickCmd(), m.spin.Tick)
}

func (m Model) handleStreamDone(msg streamDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.notice = noticeForError(msg.err)
	}
	m.refreshViewport(true)

	// Persist each settled exchange so a crash never loses history.
	if msg.err == nil && m.store != nil {
		return m, saveHistoryCmd(m.store, m.chatID, m.controller.Transcript().Messages())
	}
	return m, nil
}

func (m Model) handleHistoryLoaded(msg historyLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if !errors.Is(msg.err, storage.ErrChatNotFound) {
			m.notice = fmt.Sprintf("Could not load history: %v", msg.err)
		}
		return m, nil
	}
	t := m.controller.Transcript()
	for _, message := range msg.msgs {
		t.Append(message)
	}
	m.refreshViewport(true)
	return m, nil
}

func (m Model) handleChatList(msg chatListMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.notice = fmt.Sprintf("History lookup failed: %v", msg.err)
		return m, nil
	}
	if len(msg.items) == 0 {
		m.notice = "No stored chats."
		return m, nil
	}
	var b strings.Builder
	for i, item := range msg.items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  %s (%d messages)", item.ID, item.Title, item.MessageCount)
	}
	m.notice = b.String()
	return m, nil
}

// noticeForError maps pre-stream controller failures to user-facing text.
func noticeForError(err error) string {
	switch {
	case errors.Is(err, chatctl.ErrStreamActive):
		return "A reply is still streaming. Press Esc to stop it first."
	case errors.Is(err, chatctl.ErrLimitReached):
		return "Anonymous message limit reached. Sign in to keep chatting."
	case errors.Is(err, chatctl.ErrNoTarget):
		return "Nothing to do here."
	case errors.Is(err, api.ErrEmptyContent):
		return "Type a message first."
	case errors.Is(err, api.ErrNotConfigured):
		return "Platform credentials are not configured. Check your config file."
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
