// roleplay - terminal client for streaming character chat.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jeranaias/roleplay-tui/internal/api"
	chatctl "github.com/jeranaias/roleplay-tui/internal/chat"
	"github.com/jeranaias/roleplay-tui/internal/cli"
	"github.com/jeranaias/roleplay-tui/internal/config"
	"github.com/jeranaias/roleplay-tui/internal/storage"
	uichat "github.com/jeranaias/roleplay-tui/internal/ui/chat"
)

func main() {
	cmd, args := cli.Parse()

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = runTUI(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdHistory:
		err = cli.HandleHistory(args)
	case cli.CmdExport:
		err = cli.HandleExport(args)
	case cli.CmdDelete:
		err = cli.HandleDelete(args)
	case cli.CmdVersion:
		cli.HandleVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(args cli.Args) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, anonymous, err := buildClient(cfg)
	if err != nil {
		return err
	}

	chatID := args.ChatID
	if chatID == "" {
		chatID = uuid.NewString()
	}

	opts := []chatctl.Option{
		chatctl.WithRequestDefaults(requestDefaults(cfg)),
	}
	if anonymous {
		opts = append(opts, chatctl.WithUsageGate(chatctl.NewUsageGate()))
	}
	controller := chatctl.NewController(chatID, client, opts...)

	var store *storage.HistoryStore
	if cfg.Storage.Enabled {
		path, err := cfg.HistoryPath()
		if err != nil {
			return err
		}
		store, err = storage.Open(path)
		if err != nil {
			// History is best-effort; chat still works without it.
			log.Printf("history disabled: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	program := tea.NewProgram(
		uichat.New(controller, store, cfg, chatID),
		tea.WithAltScreen(),
	)
	_, err = program.Run()
	return err
}

// buildClient configures the platform client. Authenticated sessions
// use the bearer token; otherwise a persistent anonymous session id is
// generated on first run.
func buildClient(cfg *config.Config) (*api.Client, bool, error) {
	client := api.NewClient(cfg.Platform.BaseURL)

	if cfg.Authenticated() {
		return client.WithBearerToken(cfg.Platform.APIToken), false, nil
	}

	if cfg.Platform.AnonSessionID == "" {
		cfg.Platform.AnonSessionID = uuid.NewString()
		if err := config.Save(cfg); err != nil {
			return nil, false, fmt.Errorf("failed to persist anonymous session: %w", err)
		}
	}
	return client.WithAnonSession(cfg.Platform.AnonSessionID), true, nil
}

func requestDefaults(cfg *config.Config) api.ChatRequest {
	return api.ChatRequest{
		Language:         cfg.Chat.Language,
		Model:            cfg.Chat.Model,
		Temperature:      cfg.Chat.Temperature,
		TopP:             cfg.Chat.TopP,
		TopK:             cfg.Chat.TopK,
		FrequencyPenalty: cfg.Chat.FrequencyPenalty,
		PresencePenalty:  cfg.Chat.PresencePenalty,
		MaxTokens:        cfg.Chat.MaxTokens,
		ContextLimit:     cfg.Chat.ContextLimit,
	}
}
