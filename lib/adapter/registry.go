// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/switchboardhq/switchboard/lib/process"
)

// ErrNotFound reports a lookup for an adapter name the configuration
// does not declare.
var ErrNotFound = errors.New("adapter not found")

// RegistryConfig carries the dependencies for LoadRegistry.
type RegistryConfig struct {
	// Path locates the adapter configuration file. A default file is
	// written there when none exists.
	Path   string
	Logger *slog.Logger
}

func (c RegistryConfig) validate() error {
	var errs []error
	if c.Path == "" {
		errs = append(errs, errors.New("path is required"))
	}
	if c.Logger == nil {
		errs = append(errs, errors.New("logger is required"))
	}
	return errors.Join(errs...)
}

// Registry holds the validated adapter set loaded from one
// configuration file. It is immutable after LoadRegistry and safe for
// concurrent use.
type Registry struct {
	path                 string
	adapters             map[string]*Config
	order                []string
	defaultAdapter       string
	defaultSummarization string
	logger               *slog.Logger
}

// LoadRegistry reads the adapter configuration file, creating a
// default one when the file does not exist yet. The file is JSON with
// comments and trailing commas tolerated.
func LoadRegistry(config RegistryConfig) (*Registry, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid registry config: %w", err)
	}

	data, err := os.ReadFile(config.Path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = writeDefaultConfig(config.Path)
		if err != nil {
			return nil, err
		}
		config.Logger.Info("wrote default adapter configuration", "path", config.Path)
	} else if err != nil {
		return nil, fmt.Errorf("reading adapter configuration: %w", err)
	}

	plain := jsonc.ToJSON(data)
	var file adapterFile
	if err := json.Unmarshal(plain, &file); err != nil {
		return nil, fmt.Errorf("parsing adapter configuration %s: %w", config.Path, err)
	}
	order, err := adapterDeclarationOrder(plain)
	if err != nil {
		return nil, fmt.Errorf("parsing adapter configuration %s: %w", config.Path, err)
	}

	adapters := make(map[string]*Config, len(file.Adapters))
	for _, name := range order {
		compiled, err := file.Adapters[name].compile(name)
		if err != nil {
			return nil, err
		}
		adapters[name] = compiled
	}

	registry := &Registry{
		path:                 config.Path,
		adapters:             adapters,
		order:                order,
		defaultAdapter:       file.DefaultAdapter,
		defaultSummarization: file.DefaultSummarizationAdapter,
		logger:               config.Logger,
	}
	for _, name := range []string{file.DefaultAdapter, file.DefaultSummarizationAdapter} {
		if name == "" {
			continue
		}
		if _, ok := adapters[name]; !ok {
			config.Logger.Warn("default adapter is not declared", "adapter", name)
		}
	}
	config.Logger.Info("loaded adapter configuration",
		"path", config.Path,
		"adapters", len(order))
	return registry, nil
}

func writeDefaultConfig(path string) ([]byte, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating adapter configuration directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigJSON), 0o644); err != nil {
		return nil, fmt.Errorf("writing default adapter configuration: %w", err)
	}
	return []byte(defaultConfigJSON), nil
}

// Path returns the configuration file the registry was loaded from.
func (r *Registry) Path() string { return r.path }

// Get looks up an adapter by name.
func (r *Registry) Get(name string) (*Config, error) {
	config, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return config, nil
}

// Summary is the listing row for one configured adapter.
type Summary struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"type"`
	Description string `json:"description"`
	Command     string `json:"command"`
}

// List returns every configured adapter in declaration order.
func (r *Registry) List() []Summary {
	summaries := make([]Summary, 0, len(r.order))
	for _, name := range r.order {
		config := r.adapters[name]
		summaries = append(summaries, Summary{
			Name:        config.Name,
			Kind:        config.Kind,
			Description: config.Description,
			Command:     config.Command,
		})
	}
	return summaries
}

// DefaultAdapter returns the configured default adapter name, if any.
func (r *Registry) DefaultAdapter() (string, bool) {
	return r.defaultAdapter, r.defaultAdapter != ""
}

// DefaultSummarizationAdapter returns the adapter configured for
// summarization, if any.
func (r *Registry) DefaultSummarizationAdapter() (string, bool) {
	return r.defaultSummarization, r.defaultSummarization != ""
}

// Available reports whether the named adapter's executable resolves
// on this host. It never fails: unknown names and unresolvable
// commands both report false.
func (r *Registry) Available(name string) bool {
	config, err := r.Get(name)
	if err != nil {
		return false
	}
	return process.ExecutableAvailable(config.Command)
}

// adapterDeclarationOrder extracts the adapter names in file order.
// encoding/json loses object key order in maps, and List promises
// declaration order.
func adapterDeclarationOrder(data []byte) ([]string, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(decoder, '{'); err != nil {
		return nil, err
	}
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		key, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in configuration object", token)
		}
		if key != "adapters" {
			if err := skipValue(decoder); err != nil {
				return nil, err
			}
			continue
		}
		if err := expectDelim(decoder, '{'); err != nil {
			return nil, err
		}
		var names []string
		for decoder.More() {
			token, err := decoder.Token()
			if err != nil {
				return nil, err
			}
			name, ok := token.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected token %v in adapters object", token)
			}
			names = append(names, name)
			if err := skipValue(decoder); err != nil {
				return nil, err
			}
		}
		return names, nil
	}
	return nil, nil
}

func expectDelim(decoder *json.Decoder, want json.Delim) error {
	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q, found %v", want, token)
	}
	return nil
}

// skipValue consumes one JSON value, descending through nested
// containers.
func skipValue(decoder *json.Decoder) error {
	token, err := decoder.Token()
	if err != nil {
		return err
	}
	delim, ok := token.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return err
		}
		if delim, ok := token.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
