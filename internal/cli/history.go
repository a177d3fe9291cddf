// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/roleplay-tui/internal/config"
	"github.com/jeranaias/roleplay-tui/internal/export"
	"github.com/jeranaias/roleplay-tui/internal/storage"
)

// openStore loads the config and opens the history database.
func openStore() (*storage.HistoryStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Storage.Enabled {
		return nil, errors.New("history is disabled in the config")
	}
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}

// HandleHistory implements "history list" and "history search".
func HandleHistory(args Args) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	var chats []storage.ChatMeta
	switch args.Subcommand {
	case "", "list":
		chats, err = store.ListChats(ctx)
	case "search":
		if args.Query == "" {
			return errors.New("usage: roleplay history search <text>")
		}
		chats, err = store.SearchMessages(ctx, args.Query)
	default:
		return fmt.Errorf("unknown history subcommand: %s", args.Subcommand)
	}
	if err != nil {
		return err
	}

	if len(chats) == 0 {
		fmt.Println("No stored chats.")
		return nil
	}
	for _, chat := range chats {
		fmt.Printf("%-38s %-40s %4d messages  %s\n",
			chat.ID, chat.Title, chat.MessageCount,
			chat.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// HandleExport prints a stored chat as markdown, or JSON with --json.
func HandleExport(args Args) error {
	if args.ChatID == "" {
		return errors.New("usage: roleplay export <chat-id> [--json]")
	}
	format := "md"
	for _, raw := range args.Raw {
		if raw == "--json" {
			format = "json"
		}
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	meta, err := store.GetChat(ctx, args.ChatID)
	if err != nil {
		return err
	}
	msgs, err := store.LoadTranscript(ctx, args.ChatID)
	if err != nil {
		return err
	}

	exporter, err := export.New(format, export.DefaultOptions())
	if err != nil {
		return err
	}
	content, err := exporter.Export(&export.Chat{Meta: meta, Messages: msgs})
	if err != nil {
		return err
	}
	fmt.Print(string(content))
	return nil
}

// HandleDelete removes a stored chat.
func HandleDelete(args Args) error {
	if args.ChatID == "" {
		return errors.New("usage: roleplay delete <chat-id>")
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteChat(context.Background(), args.ChatID); err != nil {
		return err
	}
	fmt.Printf("Deleted chat %s\n", args.ChatID)
	return nil
}
