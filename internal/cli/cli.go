// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdConfig
	CmdHistory
	CmdExport
	CmdDelete
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// ChatID selects the chat to open or operate on.
	ChatID string

	// Subcommand is the second-level word, e.g. "show" in "config show".
	Subcommand string

	// Query holds free text, e.g. the search terms for "history search".
	Query string

	// Raw holds the remaining arguments after command parsing.
	Raw []string
}

const usageText = `roleplay - terminal client for streaming character chat

Usage:
  roleplay                    Start the chat TUI (default)
  roleplay --chat <id>        Open a specific chat
  roleplay config [show|init|path]
                              Inspect or create the config file
  roleplay history [list]     List stored chats
  roleplay history search <text>
                              Search stored messages
  roleplay export <chat-id> [--json]
                              Export a chat to stdout (markdown or JSON)
  roleplay delete <chat-id>   Delete a stored chat
  roleplay version            Print version information

Configuration lives at ~/.roleplay/config.toml. Environment overrides:
  ROLEPLAY_BASE_URL, ROLEPLAY_API_TOKEN, ROLEPLAY_ANON_SESSION,
  ROLEPLAY_LANGUAGE, ROLEPLAY_MODEL, ROLEPLAY_NO_HISTORY
`

// Parse reads os.Args and returns the command to run.
func Parse() (Command, Args) {
	return parseArgs(os.Args[1:])
}

func parseArgs(argv []string) (Command, Args) {
	var args Args

	// Global flags first.
	var remaining []string
	for i := 0; i < len(argv); i++ {
		switch argv[i] {
		case "--chat", "-c":
			if i+1 < len(argv) {
				i++
				args.ChatID = argv[i]
			}
		case "--help", "-h":
			return CmdHelp, args
		case "--version":
			return CmdVersion, args
		default:
			remaining = append(remaining, argv[i])
		}
	}

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, args

	case "config", "cfg":
		if len(remaining) > 0 {
			args.Subcommand = strings.ToLower(remaining[0])
		}
		return CmdConfig, args

	case "history", "hist":
		if len(remaining) > 0 {
			args.Subcommand = strings.ToLower(remaining[0])
			args.Query = strings.Join(remaining[1:], " ")
		}
		return CmdHistory, args

	case "export", "e":
		if len(remaining) > 0 {
			args.ChatID = remaining[0]
		}
		return CmdExport, args

	case "delete", "rm":
		if len(remaining) > 0 {
			args.ChatID = remaining[0]
		}
		return CmdDelete, args

	case "version", "ver", "v":
		return CmdVersion, args

	case "help", "h":
		return CmdHelp, args

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		return CmdHelp, args
	}
}

// PrintUsage writes the usage text to stdout.
func PrintUsage() {
	fmt.Print(usageText)
}

// HandleVersion prints version information.
func HandleVersion() {
	fmt.Printf("roleplay %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
