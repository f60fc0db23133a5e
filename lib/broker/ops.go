// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/switchboardhq/switchboard/lib/adapter"
	"github.com/switchboardhq/switchboard/lib/archive"
	"github.com/switchboardhq/switchboard/lib/conversation"
)

// CreateOutcome reports a created conversation back to the caller.
type CreateOutcome struct {
	ConversationID string `json:"conversation_id"`
	FilePath       string `json:"file_path"`
	Message        string `json:"message"`
}

// CreateConversation creates a conversation and reports where its log
// lives.
func (b *Broker) CreateConversation(params conversation.CreateParams) (CreateOutcome, error) {
	id, err := b.store.Create(params)
	if err != nil {
		return CreateOutcome{}, err
	}
	path, err := b.store.LogPath(id)
	if err != nil {
		return CreateOutcome{}, err
	}
	return CreateOutcome{
		ConversationID: id,
		FilePath:       path,
		Message:        "Created conversation: " + id,
	}, nil
}

const summaryPromptHeader = "Please provide a concise summary of the following conversation:"

// Summary reports a conversation summary produced by an adapter.
// SummarizedBy is empty when the conversation had nothing to
// summarize and no adapter ran.
type Summary struct {
	ConversationID string `json:"conversation_id"`
	Summary        string `json:"summary"`
	MessageCount   int    `json:"message_count"`
	SummarizedBy   string `json:"summarized_by,omitempty"`
}

// Summarize renders the whole conversation into a summarization
// prompt and sends it to the named adapter, or to the configured
// summarization default when no name is given. The summary is
// returned, not appended.
func (b *Broker) Summarize(ctx context.Context, conversationID, adapterName string) (Summary, error) {
	if err := b.requireConversation(conversationID); err != nil {
		return Summary{}, err
	}
	if adapterName == "" {
		fallback, ok := b.registry.DefaultSummarizationAdapter()
		if !ok {
			return Summary{}, errors.New("no adapter specified and no default_summarization_adapter configured")
		}
		adapterName = fallback
	}
	config, err := b.registry.Get(adapterName)
	if err != nil {
		return Summary{}, err
	}

	messages, err := b.store.Messages(conversationID)
	if err != nil {
		return Summary{}, err
	}
	if len(messages) == 0 {
		return Summary{
			ConversationID: conversationID,
			Summary:        "Empty conversation - no messages to summarize.",
		}, nil
	}

	result := b.invoker.Invoke(ctx, config, summaryPrompt(messages), nil, false)
	if result.Failed() {
		return Summary{}, &InvocationError{Adapter: config.Name, Reason: result.Metadata.Error}
	}
	return Summary{
		ConversationID: conversationID,
		Summary:        strings.TrimSpace(result.Response),
		MessageCount:   len(messages),
		SummarizedBy:   config.Name,
	}, nil
}

func summaryPrompt(messages []conversation.Message) string {
	blocks := make([]string, 0, len(messages))
	for _, message := range messages {
		blocks = append(blocks, message.Speaker+": "+message.Content)
	}
	return summaryPromptHeader + "\n\n" + strings.Join(blocks, "\n\n") + "\n\nSummary:"
}

// RecentMessages renders the last count messages as plain text, one
// "[Turn N] speaker:" block per message. count <= 0 renders the whole
// conversation.
func (b *Broker) RecentMessages(conversationID string, count int) (string, error) {
	if err := b.requireConversation(conversationID); err != nil {
		return "", err
	}
	messages, err := b.store.Messages(conversationID)
	if err != nil {
		return "", err
	}
	if count > 0 && len(messages) > count {
		messages = messages[len(messages)-count:]
	}
	if len(messages) == 0 {
		return "No messages found.", nil
	}

	lines := make([]string, 0, 3*len(messages))
	for _, message := range messages {
		lines = append(lines,
			fmt.Sprintf("[Turn %d] %s:", message.Turn, message.Speaker),
			message.Content,
			"")
	}
	return strings.Join(lines, "\n"), nil
}

// ConversationMetadata returns the metadata for an existing
// conversation.
func (b *Broker) ConversationMetadata(conversationID string) (conversation.Metadata, error) {
	if err := b.requireConversation(conversationID); err != nil {
		return conversation.Metadata{}, err
	}
	return b.store.Metadata(conversationID)
}

// ListConversations lists conversation metadata per the options.
func (b *Broker) ListConversations(options conversation.ListOptions) ([]conversation.Metadata, error) {
	return b.store.List(options)
}

// AdapterStatus is one adapter in a listing. Available is set only
// when the listing probed executable availability.
type AdapterStatus struct {
	adapter.Summary
	Available *bool `json:"available,omitempty"`
}

// AdapterListing reports the configured adapters and defaults.
type AdapterListing struct {
	Adapters                    []AdapterStatus `json:"adapters"`
	DefaultAdapter              string          `json:"default_adapter,omitempty"`
	DefaultSummarizationAdapter string          `json:"default_summarization_adapter,omitempty"`
	ConfigPath                  string          `json:"config_path"`
}

// ListAdapters lists the configured adapters in declaration order,
// optionally probing whether each command resolves on this host.
func (b *Broker) ListAdapters(probeAvailability bool) AdapterListing {
	summaries := b.registry.List()
	statuses := make([]AdapterStatus, 0, len(summaries))
	for _, summary := range summaries {
		status := AdapterStatus{Summary: summary}
		if probeAvailability {
			available := b.registry.Available(summary.Name)
			status.Available = &available
		}
		statuses = append(statuses, status)
	}
	listing := AdapterListing{Adapters: statuses, ConfigPath: b.registry.Path()}
	if name, ok := b.registry.DefaultAdapter(); ok {
		listing.DefaultAdapter = name
	}
	if name, ok := b.registry.DefaultSummarizationAdapter(); ok {
		listing.DefaultSummarizationAdapter = name
	}
	return listing
}

// ExportConversation archives an existing conversation into the
// broker's export directory.
func (b *Broker) ExportConversation(conversationID string) (*archive.Manifest, error) {
	if err := b.requireConversation(conversationID); err != nil {
		return nil, err
	}
	return b.exporter.Export(conversationID, b.exportDir)
}
