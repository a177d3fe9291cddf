// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "testing"

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		cmd  Command
	}{
		{"default is tui", nil, CmdTUI},
		{"explicit tui", []string{"tui"}, CmdTUI},
		{"config", []string{"config"}, CmdConfig},
		{"config alias", []string{"cfg", "show"}, CmdConfig},
		{"history", []string{"history"}, CmdHistory},
		{"export", []string{"export", "abc"}, CmdExport},
		{"delete", []string{"delete", "abc"}, CmdDelete},
		{"version flag", []string{"--version"}, CmdVersion},
		{"help flag", []string{"-h"}, CmdHelp},
		{"unknown falls back to help", []string{"frobnicate"}, CmdHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := parseArgs(tt.argv)
			if cmd != tt.cmd {
				t.Errorf("parseArgs(%v) = %v, want %v", tt.argv, cmd, tt.cmd)
			}
		})
	}
}

func TestParseArgs_ChatFlag(t *testing.T) {
	cmd, args := parseArgs([]string{"--chat", "abc123"})
	if cmd != CmdTUI || args.ChatID != "abc123" {
		t.Errorf("got cmd=%v chatID=%q, want tui with abc123", cmd, args.ChatID)
	}
}

func TestParseArgs_HistorySearch(t *testing.T) {
	cmd, args := parseArgs([]string{"history", "search", "dragon", "castle"})
	if cmd != CmdHistory {
		t.Fatalf("cmd = %v, want CmdHistory", cmd)
	}
	if args.Subcommand != "search" || args.Query != "dragon castle" {
		t.Errorf("got sub=%q query=%q", args.Subcommand, args.Query)
	}
}

func TestParseArgs_ExportChatID(t *testing.T) {
	_, args := parseArgs([]string{"export", "chat-42"})
	if args.ChatID != "chat-42" {
		t.Errorf("ChatID = %q, want chat-42", args.ChatID)
	}
}
