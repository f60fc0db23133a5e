// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/switchboardhq/switchboard/lib/clock"
	"github.com/switchboardhq/switchboard/lib/conversation"
)

// messagePlaceholder marks where the outgoing message lands in an
// arg-mode argument vector.
const messagePlaceholder = "{message}"

// waitDelay unblocks Wait when a killed adapter leaked its output
// pipe to a grandchild that keeps it open.
const waitDelay = 5 * time.Second

// InvokerConfig carries the dependencies for NewInvoker.
type InvokerConfig struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

func (c InvokerConfig) validate() error {
	var errs []error
	if c.Clock == nil {
		errs = append(errs, errors.New("clock is required"))
	}
	if c.Logger == nil {
		errs = append(errs, errors.New("logger is required"))
	}
	return errors.Join(errs...)
}

// Invoker executes adapter processes. It is stateless apart from its
// dependencies and safe for concurrent use.
type Invoker struct {
	clock  clock.Clock
	logger *slog.Logger
}

// NewInvoker validates the configuration and returns an Invoker.
func NewInvoker(config InvokerConfig) (*Invoker, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid invoker config: %w", err)
	}
	return &Invoker{clock: config.Clock, logger: config.Logger}, nil
}

// Result is the outcome of one adapter invocation. Response holds the
// trimmed stdout; Metadata records how the execution went, including
// any failure.
type Result struct {
	Response string         `json:"response"`
	Metadata ResultMetadata `json:"metadata"`
}

// ResultMetadata describes one execution. ExitCode is -1 when the
// process could not run at all or was killed on timeout.
type ResultMetadata struct {
	Adapter    string `json:"adapter"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"execution_time_ms"`
	Error      string `json:"error,omitempty"`
}

// Failed reports whether the invocation produced an error. A non-zero
// exit with nothing on stderr is deliberately not a failure: some
// CLIs exit non-zero on soft conditions while still printing a usable
// response.
func (r Result) Failed() bool { return r.Metadata.Error != "" }

// Invoke runs one adapter call and reports the outcome as data.
// history is rendered and prepended on stdin when includeHistory is
// set; it rides stdin even for arg-mode adapters, which only receive
// the outgoing message through argv.
func (inv *Invoker) Invoke(ctx context.Context, config *Config, message string, history []conversation.Message, includeHistory bool) Result {
	switch config.Kind {
	case KindProcess:
		return inv.invokeProcess(ctx, config, message, history, includeHistory)
	default:
		return Result{Metadata: ResultMetadata{
			Adapter:  config.Name,
			ExitCode: -1,
			Error:    fmt.Sprintf("unsupported adapter kind %q", config.Kind),
		}}
	}
}

func (inv *Invoker) invokeProcess(ctx context.Context, config *Config, message string, history []conversation.Message, includeHistory bool) Result {
	args, stdin := buildCommandInput(config, message)
	if includeHistory && len(history) > 0 {
		rendered := renderHistory(history)
		if stdin != "" {
			stdin = rendered + " | " + stdin
		} else {
			stdin = rendered
		}
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	command := exec.CommandContext(ctx, config.Command, args...)
	command.Env = mergedEnv(config.Env)
	command.Dir = config.WorkingDir
	command.WaitDelay = waitDelay
	if stdin != "" {
		command.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	inv.logger.Debug("invoking adapter",
		"adapter", config.Name,
		"command", config.Command,
		"timeout", timeout)

	started := inv.clock.Now()
	runErr := command.Run()
	elapsed := inv.clock.Since(started)

	metadata := ResultMetadata{
		Adapter:    config.Name,
		DurationMS: elapsed.Milliseconds(),
	}
	result := Result{Metadata: metadata}
	switch {
	case runErr == nil:
		result.Response = strings.TrimSpace(stdout.String())
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Metadata.ExitCode = -1
		result.Metadata.Error = fmt.Sprintf("command timed out after %s", timeout)
	case commandNotFound(runErr):
		result.Metadata.ExitCode = -1
		result.Metadata.Error = fmt.Sprintf("command not found: %s", config.Command)
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.Response = strings.TrimSpace(stdout.String())
			result.Metadata.ExitCode = exitErr.ExitCode()
			result.Metadata.Error = strings.TrimSpace(stderr.String())
		} else {
			result.Metadata.ExitCode = -1
			result.Metadata.Error = runErr.Error()
		}
	}

	inv.logger.Debug("adapter finished",
		"adapter", config.Name,
		"exit_code", result.Metadata.ExitCode,
		"duration_ms", result.Metadata.DurationMS,
		"failed", result.Failed())
	return result
}

// buildCommandInput resolves the input method into the final argument
// vector and the stdin payload.
func buildCommandInput(config *Config, message string) (args []string, stdin string) {
	if config.InputMethod != InputArg {
		return slices.Clone(config.Args), message
	}
	substituted := false
	args = make([]string, 0, len(config.Args)+1)
	for _, arg := range config.Args {
		if strings.Contains(arg, messagePlaceholder) {
			arg = strings.ReplaceAll(arg, messagePlaceholder, message)
			substituted = true
		}
		args = append(args, arg)
	}
	if !substituted && message != "" {
		args = append(args, message)
	}
	return args, ""
}

// renderHistory flattens prior turns for a process that reads a
// single line: "speaker: content" entries joined by " | ", with
// newlines inside content collapsed to spaces.
func renderHistory(history []conversation.Message) string {
	parts := make([]string, 0, len(history))
	for _, message := range history {
		content := strings.ReplaceAll(message.Content, "\n", " ")
		parts = append(parts, message.Speaker+": "+content)
	}
	return strings.Join(parts, " | ")
}

// mergedEnv appends the configured overrides to the inherited
// environment. exec keeps the last occurrence of a duplicated name,
// so overrides win. A nil result inherits the parent environment
// untouched.
func mergedEnv(overrides map[string]string) []string {
	if len(overrides) == 0 {
		return nil
	}
	env := os.Environ()
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		env = append(env, key+"="+overrides[key])
	}
	return env
}

func commandNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
