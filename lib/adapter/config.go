// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies how an adapter is reached. The set is closed:
// unknown kinds are rejected when the registry loads, so the rest of
// the system never sees a Config it cannot execute.
type Kind string

// KindProcess runs a local executable and speaks to it over argv,
// stdin, and stdout.
const KindProcess Kind = "process"

// ErrUnsupportedKind reports an adapter kind this build cannot execute.
var ErrUnsupportedKind = errors.New("unsupported adapter kind")

// ParseKind validates a kind string from configuration.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindProcess:
		return KindProcess, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, raw)
	}
}

// InputMethod selects how the outgoing message reaches the adapter
// process.
type InputMethod string

const (
	// InputStdin writes the message to the process's standard input.
	InputStdin InputMethod = "stdin"
	// InputArg substitutes the message into the argument vector,
	// replacing the {message} placeholder or appending when no
	// argument carries one.
	InputArg InputMethod = "arg"
)

// ParseInputMethod validates an input method string. The empty string
// selects InputStdin.
func ParseInputMethod(raw string) (InputMethod, error) {
	switch InputMethod(raw) {
	case InputStdin, "":
		return InputStdin, nil
	case InputArg:
		return InputArg, nil
	default:
		return "", fmt.Errorf("unsupported input method %q", raw)
	}
}

// DefaultTimeout bounds adapter executions that do not configure
// their own limit. LLM CLIs routinely take minutes on long prompts.
const DefaultTimeout = 300 * time.Second

// Config describes one adapter: the executable to run and how to
// feed it. Configs are built by the registry and treated as
// immutable afterwards.
type Config struct {
	Name        string
	Kind        Kind
	Description string

	Command     string
	Args        []string
	InputMethod InputMethod

	// Env entries are appended to the inherited environment, so an
	// entry overrides any inherited variable of the same name.
	Env        map[string]string
	WorkingDir string
	Timeout    time.Duration
}

// adapterFile mirrors the on-disk configuration document.
type adapterFile struct {
	Adapters                    map[string]adapterEntry `json:"adapters"`
	DefaultAdapter              string                  `json:"default_adapter"`
	DefaultSummarizationAdapter string                  `json:"default_summarization_adapter"`
}

type adapterEntry struct {
	Type           string            `json:"type"`
	Command        string            `json:"command"`
	Args           []string          `json:"args"`
	InputMethod    string            `json:"input_method"`
	Description    string            `json:"description"`
	Env            map[string]string `json:"env"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	WorkingDir     string            `json:"working_dir"`
}

// compile turns a raw file entry into a validated Config.
func (e adapterEntry) compile(name string) (*Config, error) {
	kind, err := ParseKind(e.Type)
	if err != nil {
		return nil, fmt.Errorf("adapter %q: %w", name, err)
	}
	method, err := ParseInputMethod(e.InputMethod)
	if err != nil {
		return nil, fmt.Errorf("adapter %q: %w", name, err)
	}
	if e.Command == "" {
		return nil, fmt.Errorf("adapter %q: command is required", name)
	}
	if e.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("adapter %q: timeout_seconds must not be negative", name)
	}
	timeout := DefaultTimeout
	if e.TimeoutSeconds > 0 {
		timeout = time.Duration(e.TimeoutSeconds) * time.Second
	}
	return &Config{
		Name:        name,
		Kind:        kind,
		Description: e.Description,
		Command:     e.Command,
		Args:        e.Args,
		InputMethod: method,
		Env:         e.Env,
		WorkingDir:  e.WorkingDir,
		Timeout:     timeout,
	}, nil
}

// defaultConfigJSON is written when no adapter configuration exists
// yet. It is a working placeholder: echo stands in for a real LLM CLI
// so a fresh install can exercise the whole pipeline immediately.
const defaultConfigJSON = `{
  "adapters": {
    "example-echo": {
      "type": "process",
      "command": "echo",
      "args": ["Example adapter - configure with your actual LLM CLI"],
      "input_method": "stdin",
      "description": "Placeholder adapter that prints a fixed line"
    }
  },
  "default_adapter": "example-echo",
  "default_summarization_adapter": "example-echo",
  "_comment": "Edit this file to register your LLM CLIs. Each adapter names an executable, its arguments ({message} is replaced by the outgoing message when input_method is arg), and how input is delivered. Comments are allowed."
}
`
