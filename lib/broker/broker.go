// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/switchboardhq/switchboard/lib/adapter"
	"github.com/switchboardhq/switchboard/lib/archive"
	"github.com/switchboardhq/switchboard/lib/clock"
	"github.com/switchboardhq/switchboard/lib/conversation"
	"github.com/switchboardhq/switchboard/lib/history"
)

// ErrConversationNotFound reports an operation against a conversation
// id that has no log in either format.
var ErrConversationNotFound = errors.New("conversation does not exist")

// ErrNoAdapters reports a parallel call with an empty adapter list.
var ErrNoAdapters = errors.New("adapter_names cannot be empty")

// InvocationError surfaces a failed adapter execution from operations
// that have no per-adapter result slot to carry it in.
type InvocationError struct {
	Adapter string
	Reason  string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("adapter %q failed: %s", e.Adapter, e.Reason)
}

// Config carries the dependencies for New.
type Config struct {
	Store    *conversation.Store
	Registry *adapter.Registry
	Invoker  *adapter.Invoker
	Exporter *archive.Exporter

	// ExportDir receives conversation archives.
	ExportDir string

	Clock  clock.Clock
	Logger *slog.Logger
}

func (c Config) validate() error {
	var errs []error
	if c.Store == nil {
		errs = append(errs, errors.New("store is required"))
	}
	if c.Registry == nil {
		errs = append(errs, errors.New("registry is required"))
	}
	if c.Invoker == nil {
		errs = append(errs, errors.New("invoker is required"))
	}
	if c.Exporter == nil {
		errs = append(errs, errors.New("exporter is required"))
	}
	if c.ExportDir == "" {
		errs = append(errs, errors.New("export dir is required"))
	}
	if c.Clock == nil {
		errs = append(errs, errors.New("clock is required"))
	}
	if c.Logger == nil {
		errs = append(errs, errors.New("logger is required"))
	}
	return errors.Join(errs...)
}

// Broker executes front-end operations against one store and one
// adapter registry. Safe for concurrent use.
type Broker struct {
	store     *conversation.Store
	registry  *adapter.Registry
	invoker   *adapter.Invoker
	exporter  *archive.Exporter
	exportDir string
	clock     clock.Clock
	logger    *slog.Logger
}

// New validates the configuration and returns a Broker.
func New(config Config) (*Broker, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid broker config: %w", err)
	}
	return &Broker{
		store:     config.Store,
		registry:  config.Registry,
		invoker:   config.Invoker,
		exporter:  config.Exporter,
		exportDir: config.ExportDir,
		clock:     config.Clock,
		logger:    config.Logger,
	}, nil
}

// requireConversation gates operations on conversation existence.
func (b *Broker) requireConversation(id string) error {
	if !b.store.Exists(id) {
		return fmt.Errorf("%w: %q", ErrConversationNotFound, id)
	}
	return nil
}

// resolveAdapter maps an optional adapter name to its Config, falling
// back to the registry default when the name is empty.
func (b *Broker) resolveAdapter(name string) (*adapter.Config, error) {
	if name == "" {
		fallback, ok := b.registry.DefaultAdapter()
		if !ok {
			return nil, errors.New("no adapter specified and no default_adapter configured")
		}
		name = fallback
	}
	return b.registry.Get(name)
}

// selectContext reads the conversation and applies the context mode
// and optional token budget. A nil slice means no history rides along.
func (b *Broker) selectContext(id, mode string, passHistory bool, maxTokens int) ([]conversation.Message, error) {
	if !passHistory {
		return nil, nil
	}
	messages, err := b.store.Messages(id)
	if err != nil {
		return nil, err
	}
	parsed, err := history.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	return history.SelectBudget(messages, parsed, maxTokens)
}

// invocationMetadata is what an appended adapter reply carries in its
// message metadata.
func invocationMetadata(metadata adapter.ResultMetadata) map[string]any {
	return map[string]any{
		"adapter":           metadata.Adapter,
		"exit_code":         metadata.ExitCode,
		"execution_time_ms": metadata.DurationMS,
	}
}
