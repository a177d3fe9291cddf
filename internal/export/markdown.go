// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders chats as Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders the chat as Markdown. System messages are omitted;
// they carry persona setup, not conversation.
func (e *MarkdownExporter) Export(chat *Chat) ([]byte, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat is nil")
	}
	if len(chat.Messages) == 0 {
		return nil, fmt.Errorf("chat has no messages")
	}

	var sb strings.Builder

	title := chat.Meta.Title
	if title == "" {
		title = "Chat " + chat.Meta.ID
	}
	sb.WriteString("# " + title + "\n\n")

	if e.options.IncludeMetadata {
		sb.WriteString(fmt.Sprintf("- **Created**: %s\n", formatTimestamp(chat.Meta.CreatedAt)))
		sb.WriteString(fmt.Sprintf("- **Last Updated**: %s\n", formatTimestamp(chat.Meta.UpdatedAt)))
		sb.WriteString(fmt.Sprintf("- **Messages**: %d\n", len(chat.Messages)))
		sb.WriteString(fmt.Sprintf("- **Exported**: %s\n", time.Now().Format(time.RFC3339)))
		sb.WriteString("\n---\n\n")
	}

	first := true
	for _, msg := range chat.Messages {
		if !msg.Role.Visible() {
			continue
		}
		if !first {
			sb.WriteString("\n---\n\n")
		}
		first = false

		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n",
				msg.Role.DisplayName(), msg.CreatedAt.Local().Format("15:04")))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", msg.Role.DisplayName()))
		}

		sb.WriteString(msg.Content)
		sb.WriteString("\n")

		if msg.Truncated {
			sb.WriteString("\n*(reply cut short)*\n")
		}
		if e.options.IncludeMetadata && msg.ModelUsed != "" {
			sb.WriteString(fmt.Sprintf("\n<sub>%s</sub>\n", msg.ModelUsed))
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format("2006-01-02 15:04")
}
