// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/roleplay-tui/internal/model"
)

// =============================================================================
// VIEW
// =============================================================================

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
	}
	if banner := m.renderLimitBanner(); banner != "" {
		sections = append(sections, banner)
	}
	if m.notice != "" {
		sections = append(sections, m.theme.HelpText.Render(m.notice))
	}
	sections = append(sections,
		m.renderInput(),
		m.renderStatusBar(),
	)
	return m.theme.App.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// chromeHeight is the number of rows taken by everything except the
// transcript viewport.
func (m Model) chromeHeight() int {
	h := 1 + 3 + 1 // header, input container with border, status bar
	if m.renderLimitBanner() != "" {
		h += 3
	}
	if m.notice != "" {
		h += lipgloss.Height(m.theme.HelpText.Render(m.notice))
	}
	return h
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("roleplay")
	subtitle := ""
	if m.cfg.UI.ShowModel && m.cfg.Chat.Model != "" {
		subtitle = m.theme.HeaderSubtitle.Render(" " + m.cfg.Chat.Model)
	}
	return m.theme.Header.Width(m.width).Render(title + subtitle)
}

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).Render(
		m.theme.InputPrompt.Render("> ") + m.input.View())
}

func (m Model) renderLimitBanner() string {
	if m.controller == nil || !m.controller.LimitReached() {
		return ""
	}
	return m.theme.LimitBanner.Render("Message limit reached. Sign in to keep chatting.")
}

func (m Model) renderStatusBar() string {
	var left string
	if m.controller.IsStreaming() {
		left = m.spin.View() + " streaming"
	} else if remaining, ok := m.controller.MessagesLeft(); ok {
		left = fmt.Sprintf("%d messages left", remaining)
	} else {
		left = "ready"
	}

	var help []string
	for _, b := range m.keys.ShortHelp() {
		help = append(help,
			m.theme.StatusKey.Render(b.Help().Key)+" "+b.Help().Desc)
	}
	right := strings.Join(help, "  ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(
		left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// refreshViewport re-renders the transcript into the viewport.
func (m *Model) refreshViewport(follow bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderMessages() string {
	msgs := m.controller.Messages()
	if len(msgs) == 0 {
		return m.theme.HelpText.Render("No messages yet. Say hello!")
	}

	bubbleWidth := m.width - 10
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg, bubbleWidth))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMessage(msg model.Message, width int) string {
	content := msg.Content

	switch {
	case msg.IsError:
		return m.theme.ErrorBubble.Width(width).Render(content)

	case msg.Role == model.RoleUser:
		return m.theme.UserBubble.Width(width).Render(content)

	default:
		if msg.IsStreaming {
			if content == "" {
				content = m.spin.View()
			} else {
				content += m.theme.StreamCursor.Render("▍")
			}
		}
		bubble := m.theme.ReplyBubble.Width(width).Render(content)

		var tags []string
		if m.cfg.UI.ShowModel && msg.ModelUsed != "" {
			tags = append(tags, m.theme.ModelTag.Render(msg.ModelUsed))
		}
		if msg.Truncated {
			tags = append(tags, m.theme.TruncatedMarker.Render("cut short, C-o to continue"))
		}
		if len(tags) == 0 {
			return bubble
		}
		return bubble + "\n" + strings.Join(tags, "  ")
	}
}
