// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/switchboardhq/switchboard/lib/adapter"
	"github.com/switchboardhq/switchboard/lib/archive"
	"github.com/switchboardhq/switchboard/lib/broker"
	"github.com/switchboardhq/switchboard/lib/clock"
	"github.com/switchboardhq/switchboard/lib/config"
	"github.com/switchboardhq/switchboard/lib/conversation"
	"github.com/switchboardhq/switchboard/lib/process"
	"github.com/switchboardhq/switchboard/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var conversationDir string
	var adapterConfig string
	var archiveDir string
	var logLevel string

	flagSet := pflag.NewFlagSet("switchboard-server", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $SWITCHBOARD_CONFIG or ~/.switchboard/config.yaml)")
	flagSet.StringVar(&conversationDir, "conversation-dir", "", "override the conversation log directory")
	flagSet.StringVar(&adapterConfig, "adapter-config", "", "override the adapter config file")
	flagSet.StringVar(&archiveDir, "archive-dir", "", "override the conversation export directory")
	flagSet.StringVar(&logLevel, "log-level", "", "override the log level (debug, info, warn, error)")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other Switchboard
	// binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("switchboard-server")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if conversationDir != "" {
		cfg.Paths.Conversations = conversationDir
	}
	if adapterConfig != "" {
		cfg.Adapters.File = adapterConfig
	}
	if archiveDir != "" {
		cfg.Paths.Archives = archiveDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	// MCP owns stdout; all logging goes to stderr.
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}

	clk := clock.Real()

	store, err := conversation.Open(conversation.StoreConfig{
		Dir:    cfg.Paths.Conversations,
		Clock:  clk,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	registry, err := adapter.LoadRegistry(adapter.RegistryConfig{
		Path:   cfg.Adapters.File,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	invoker, err := adapter.NewInvoker(adapter.InvokerConfig{
		Clock:  clk,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	exporter, err := archive.NewExporter(archive.ExporterConfig{
		Store:  store,
		Clock:  clk,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	b, err := broker.New(broker.Config{
		Store:     store,
		Registry:  registry,
		Invoker:   invoker,
		Exporter:  exporter,
		ExportDir: cfg.Paths.Archives,
		Clock:     clk,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	server, err := NewServer(ServerConfig{
		Broker:             b,
		DefaultContextMode: cfg.Defaults.ContextMode,
		DefaultMaxTokens:   cfg.Defaults.MaxContextTokens,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	// SIGINT/SIGTERM cancel in-flight adapter invocations. The usual
	// shutdown path for a stdio MCP server is the client closing
	// stdin, which ends the Run loop at EOF.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("switchboard server ready",
		"conversations", cfg.Paths.Conversations,
		"adapters", cfg.Adapters.File,
		"archives", cfg.Paths.Archives,
	)

	return server.Serve(ctx)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Switchboard MCP server — broker conversations between LLM CLIs.

Speaks newline-delimited JSON-RPC 2.0 on stdin/stdout. Intended to be
launched as a subprocess by an MCP-capable client; logs go to stderr.

Configuration is read from --config, $SWITCHBOARD_CONFIG, or
~/.switchboard/config.yaml, in that order. Individual paths can be
overridden with the flags below.

Usage:
  switchboard-server [flags]

Flags:
%s`, flagSet.FlagUsages())
}
