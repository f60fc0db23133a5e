// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/switchboardhq/switchboard/lib/adapter"
	"github.com/switchboardhq/switchboard/lib/clock"
	"github.com/switchboardhq/switchboard/lib/config"
	"github.com/switchboardhq/switchboard/lib/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	var adapterConfig string
	var logLevel string
	var probe bool
	var list bool
	var asJSON bool

	flagSet := pflag.NewFlagSet("switchboard-call", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $SWITCHBOARD_CONFIG or ~/.switchboard/config.yaml)")
	flagSet.StringVar(&adapterConfig, "adapter-config", "", "override the adapter config file")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flagSet.BoolVar(&probe, "probe", false, "only check whether the adapter's command resolves; exit 0 or 1")
	flagSet.BoolVar(&list, "list", false, "list configured adapters and exit")
	flagSet.BoolVar(&asJSON, "json", false, "print the full invocation result as JSON instead of the bare response")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("switchboard-call")
		return 0
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return 0
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if adapterConfig != "" {
		cfg.Adapters.File = adapterConfig
	}
	cfg.Log.Level = logLevel
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if err := cfg.EnsurePaths(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	logger, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	registry, err := adapter.LoadRegistry(adapter.RegistryConfig{
		Path:   cfg.Adapters.File,
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	if list {
		return listAdapters(registry)
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(flagSet)
		return 2
	}
	name := args[0]

	if probe {
		if registry.Available(name) {
			fmt.Printf("%s: available\n", name)
			return 0
		}
		fmt.Printf("%s: not available\n", name)
		return 1
	}

	adapterCfg, err := registry.Get(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	message, err := readMessage(args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	invoker, err := adapter.NewInvoker(adapter.InvokerConfig{
		Clock:  clock.Real(),
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := invoker.Invoke(ctx, adapterCfg, message, nil, false)

	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
	} else {
		if result.Response != "" {
			fmt.Println(result.Response)
		}
		if result.Metadata.Error != "" {
			fmt.Fprintf(os.Stderr, "%s\n", result.Metadata.Error)
		}
	}

	// Mirror the adapter's exit code so this composes with shell
	// scripts. Spawn and timeout failures report -1; map those to 1.
	if result.Metadata.ExitCode < 0 {
		return 1
	}
	return result.Metadata.ExitCode
}

// readMessage takes the outgoing message from the remaining argv, or
// from stdin when no argument was given and stdin is not a terminal.
func readMessage(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading message from stdin: %w", err)
	}
	return string(data), nil
}

func listAdapters(registry *adapter.Registry) int {
	for _, summary := range registry.List() {
		marker := " "
		if registry.Available(summary.Name) {
			marker = "*"
		}
		fmt.Printf("%s %-20s %-8s %s\n", marker, summary.Name, summary.Command, summary.Description)
	}
	if name, ok := registry.DefaultAdapter(); ok {
		fmt.Printf("\ndefault adapter: %s\n", name)
	}
	if name, ok := registry.DefaultSummarizationAdapter(); ok {
		fmt.Printf("default summarization adapter: %s\n", name)
	}
	return 0
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Switchboard-call invokes a configured LLM adapter once.

Uses the same adapter configuration and invocation path as
switchboard-server, but with no MCP framing and no conversation log.
The message comes from the second positional argument, or from stdin
when piped. The exit code mirrors the adapter's.

Usage:
  switchboard-call [flags] <adapter> [message]
  switchboard-call --probe <adapter>
  switchboard-call --list

Flags:
%s`, flagSet.FlagUsages())
}
