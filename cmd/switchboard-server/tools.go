// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/switchboardhq/switchboard/lib/broker"
	"github.com/switchboardhq/switchboard/lib/conversation"
)

// toolCatalog assembles the fixed tool table. Order here is the order
// tools/list reports.
func (s *Server) toolCatalog() []tool {
	return []tool{
		s.createConversationTool(),
		s.callLLMTool(),
		s.callLLMParallelTool(),
		s.summarizeConversationTool(),
		s.getRecentMessagesTool(),
		s.getConversationSummaryTool(),
		s.listConversationsTool(),
		s.listAdaptersTool(),
		s.exportConversationTool(),
	}
}

// unmarshalArguments decodes tool arguments into a pre-defaulted args
// struct. Absent fields keep their defaults; missing or null
// arguments are valid for tools whose fields all have defaults.
func unmarshalArguments(raw json.RawMessage, into any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// marshalResult renders a tool result value as JSON text.
func marshalResult(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(data), nil
}

// readOnlyAnnotations marks a tool that only inspects local state.
func readOnlyAnnotations() *toolAnnotations {
	return &toolAnnotations{
		ReadOnlyHint:    boolPtr(true),
		DestructiveHint: boolPtr(false),
		IdempotentHint:  boolPtr(true),
		OpenWorldHint:   boolPtr(false),
	}
}

// invokeAnnotations marks a tool that runs adapter executables, which
// may reach arbitrary external services.
func invokeAnnotations(appends bool) *toolAnnotations {
	return &toolAnnotations{
		ReadOnlyHint:    boolPtr(!appends),
		DestructiveHint: boolPtr(false),
		IdempotentHint:  boolPtr(false),
		OpenWorldHint:   boolPtr(true),
	}
}

func boolPtr(value bool) *bool {
	return &value
}

type createConversationArgs struct {
	ConversationID string   `json:"conversation_id"`
	InitialMessage string   `json:"initial_message"`
	Topic          string   `json:"topic"`
	HostName       string   `json:"host_name"`
	Tags           []string `json:"tags"`
}

func (s *Server) createConversationTool() tool {
	return tool{
		name:        "create_conversation",
		title:       "Create a conversation",
		description: "Create a new conversation with an optional initial message from the host.",
		annotations: &toolAnnotations{
			ReadOnlyHint:    boolPtr(false),
			DestructiveHint: boolPtr(false),
			IdempotentHint:  boolPtr(false),
			OpenWorldHint:   boolPtr(false),
		},
		inputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"conversation_id": {"type": "string", "description": "Conversation ID; a timestamped one is generated when omitted"},
				"initial_message": {"type": "string", "description": "Optional opening message, recorded as turn 1"},
				"topic": {"type": "string", "description": "Optional topic stored in conversation metadata"},
				"host_name": {"type": "string", "description": "Optional host label; the opening message is attributed to host_<label>"},
				"tags": {"type": "array", "items": {"type": "string"}, "description": "Optional metadata tags"}
			}
		}`),
		handler: func(_ context.Context, raw json.RawMessage) (string, error) {
			var args createConversationArgs
			if err := unmarshalArguments(raw, &args); err != nil {
				return "", err
			}
			outcome, err := s.broker.CreateConversation(conversation.CreateParams{
				ID:             args.ConversationID,
				InitialMessage: args.InitialMessage,
				HostLabel:      args.HostName,
				Topic:          args.Topic,
				Tags:           args.Tags,
			})
			if err != nil {
				return "", err
			}
			return marshalResult(outcome)
		},
	}
}

type callLLMArgs struct {
	ConversationID string `json:"conversation_id"`
	AdapterName    string `json:"adapter_name"`
	Message        string `json:"message"`
	ContextMode    string `json:"context_mode"`
	PassHistory    bool   `json:"pass_history"`
	MaxTokens      int    `json:"max_context_tokens"`
}

func (s *Server) callLLMTool() tool {
	return tool{
		name:        "call_llm",
		title:       "Call an LLM adapter",
		description: "Invoke one adapter against a conversation and append its reply. With an empty message and pass_history true, the adapter responds to the conversation history alone, which lets adapters talk to each other without orchestrating messages.",
		annotations: invokeAnnotations(true),
		inputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"conversation_id": {"type": "string", "description": "Conversation to call against"},
				"adapter_name": {"type": "string", "description": "Adapter to invoke; falls back to the configured default_adapter"},
				"message": {"type": "string", "description": "Message for the adapter; may be empty"},
				"context_mode": {"type": "string", "enum": ["none", "minimal", "recent", "smart", "full"], "default": "smart", "description": "How much history the adapter sees"},
				"pass_history": {"type": "boolean", "default": true, "description": "Whether to pass conversation history at all"},
				"max_context_tokens": {"type": "integer", "minimum": 0, "description": "Approximate token cap for selected history; 0 means no cap"}
			},
			"required": ["conversation_id"]
		}`),
		handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args := callLLMArgs{
				ContextMode: s.defaultContextMode,
				PassHistory: true,
				MaxTokens:   s.defaultMaxTokens,
			}
			if err := unmarshalArguments(raw, &args); err != nil {
				return "", err
			}
			if args.ConversationID == "" {
				return "", errors.New("conversation_id is required")
			}
			result, err := s.broker.Call(ctx, broker.CallParams{
				ConversationID: args.ConversationID,
				Adapter:        args.AdapterName,
				Message:        args.Message,
				ContextMode:    args.ContextMode,
				PassHistory:    args.PassHistory,
				MaxTokens:      args.MaxTokens,
			})
			if err != nil {
				return "", err
			}
			return result.Response, nil
		},
	}
}

type callLLMParallelArgs struct {
	ConversationID string   `json:"conversation_id"`
	AdapterNames   []string `json:"adapter_names"`
	Message        string   `json:"message"`
	ContextMode    string   `json:"context_mode"`
	PassHistory    bool     `json:"pass_history"`
	MaxTokens      int      `json:"max_context_tokens"`
}

func (s *Server) callLLMParallelTool() tool {
	return tool{
		name:        "call_llm_parallel",
		title:       "Call several adapters in parallel",
		description: "Invoke multiple adapters concurrently against the same context snapshot and append every successful reply. Each adapter's failure is isolated in its own result slot.",
		annotations: invokeAnnotations(true),
		inputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"conversation_id": {"type": "string", "description": "Conversation to call against"},
				"adapter_names": {"type": "array", "items": {"type": "string"}, "minItems": 1, "description": "Adapters to invoke"},
				"message": {"type": "string", "description": "Message sent to every adapter; may be empty"},
				"context_mode": {"type": "string", "enum": ["none", "minimal", "recent", "smart", "full"], "default": "smart", "description": "How much history the adapters see"},
				"pass_history": {"type": "boolean", "default": true, "description": "Whether to pass conversation history at all"},
				"max_context_tokens": {"type": "integer", "minimum": 0, "description": "Approximate token cap for selected history; 0 means no cap"}
			},
			"required": ["conversation_id", "adapter_names"]
		}`),
		handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args := callLLMParallelArgs{
				ContextMode: s.defaultContextMode,
				PassHistory: true,
				MaxTokens:   s.defaultMaxTokens,
			}
			if err := unmarshalArguments(raw, &args); err != nil {
				return "", err
			}
			if args.ConversationID == "" {
				return "", errors.New("conversation_id is required")
			}
			result, err := s.broker.CallParallel(ctx, broker.ParallelParams{
				ConversationID: args.ConversationID,
				Adapters:       args.AdapterNames,
				Message:        args.Message,
				ContextMode:    args.ContextMode,
				PassHistory:    args.PassHistory,
				MaxTokens:      args.MaxTokens,
			})
			if err != nil {
				return "", err
			}
			return marshalResult(result)
		},
	}
}

type summarizeConversationArgs struct {
	ConversationID string `json:"conversation_id"`
	AdapterName    string `json:"adapter_name"`
}

func (s *Server) summarizeConversationTool() tool {
	return tool{
		name:        "summarize_conversation",
		title:       "Summarize a conversation",
		description: "Generate a summary of the whole conversation using an LLM adapter. The summary is returned, not appended.",
		annotations: invokeAnnotations(false),
		inputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"conversation_id": {"type": "string", "description": "Conversation to summarize"},
				"adapter_name": {"type": "string", "description": "Adapter to use; falls back to the configured default_summarization_adapter"}
			},
			"required": ["conversation_id"]
		}`),
		handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args summarizeConversationArgs
			if err := unmarshalArguments(raw, &args); err != nil {
				return "", err
			}
			if args.ConversationID == "" {
				return "", errors.New("conversation_id is required")
			}
			summary, err := s.broker.Summarize(ctx, args.ConversationID, args.AdapterName)
			if err != nil {
				return "", err
			}
			return marshalResult(summary)
		},
	}
}

type recentMessagesArgs struct {
	ConversationID string `json:"conversation_id"`
	Count          int    `json:"count"`
}

func (s *Server) getRecentMessagesTool() tool {
	return tool{
		name:        "get_recent_messages",
		title:       "Get recent messages",
		description: "Get the N most recent messages of a conversation as plain text.",
		annotations: readOnlyAnnotations(),
		inputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"conversation_id": {"type": "string", "description": "Conversation to read"},
				"count": {"type": "integer", "minimum": 1, "default": 5, "description": "Number of trailing messages to return"}
			},
			"required": ["conversation_id"]
		}`),
		handler: func(_ context.Context, raw json.RawMessage) (string, error) {
			args := recentMessagesArgs{Count: 5}
			if err := unmarshalArguments(raw, &args); err != nil {
				return "", err
			}
			if args.ConversationID == "" {
				return "", errors.New("conversation_id is required")
			}
			return s.broker.RecentMessages(args.ConversationID, args.Count)
		},
	}
}

type conversationSummaryArgs struct {
	ConversationID string `json:"conversation_id"`
}

func (s *Server) getConversationSummaryTool() tool {
	return tool{
		name:        "get_conversation_summary",
		title:       "Get conversation metadata",
		description: "Get the metadata snapshot of a conversation: participants, message count, topic, tags, and timestamps.",
		annotations: readOnlyAnnotations(),
		inputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"conversation_id": {"type": "string", "description": "Conversation to describe"}
			},
			"required": ["conversation_id"]
		}`),
		handler: func(_ context.Context, raw json.RawMessage) (string, error) {
			var args conversationSummaryArgs
			if err := unmarshalArguments(raw, &args); err != nil {
				return "", err
			}
			if args.ConversationID == "" {
				return "", errors.New("conversation_id is required")
			}
			metadata, err := s.broker.ConversationMetadata(args.ConversationID)
			if err != nil {
				return "", err
			}
			return marshalResult(metadata)
		},
	}
}

type listConversationsArgs struct {
	Limit  int    `json:"limit"`
	SortBy string `json:"sort_by"`
	Order  string `json:"order"`
}

// conversationListing is the list_conversations result envelope.
type conversationListing struct {
	Total         int                     `json:"total"`
	Conversations []conversation.Metadata `json:"conversations"`
}

func (s *Server) listConversationsTool() tool {
	return tool{
		name:        "list_conversations",
		title:       "List conversations",
		description: "List known conversations with their metadata, newest first by default.",
		annotations: readOnlyAnnotations(),
		inputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "integer", "minimum": 1, "default": 20, "description": "Maximum number of conversations to return"},
				"sort_by": {"type": "string", "enum": ["created_at", "updated_at", "message_count"], "default": "updated_at", "description": "Sort field"},
				"order": {"type": "string", "enum": ["asc", "desc"], "default": "desc", "description": "Sort direction"}
			}
		}`),
		handler: func(_ context.Context, raw json.RawMessage) (string, error) {
			args := listConversationsArgs{Limit: 20}
			if err := unmarshalArguments(raw, &args); err != nil {
				return "", err
			}
			sortBy, err := conversation.ParseSortField(args.SortBy)
			if err != nil {
				return "", err
			}
			order, err := conversation.ParseSortOrder(args.Order)
			if err != nil {
				return "", err
			}
			conversations, err := s.broker.ListConversations(conversation.ListOptions{
				Limit:  args.Limit,
				SortBy: sortBy,
				Order:  order,
			})
			if err != nil {
				return "", err
			}
			if conversations == nil {
				conversations = []conversation.Metadata{}
			}
			return marshalResult(conversationListing{
				Total:         len(conversations),
				Conversations: conversations,
			})
		},
	}
}

type listAdaptersArgs struct {
	TestAvailability bool `json:"test_availability"`
}

func (s *Server) listAdaptersTool() tool {
	return tool{
		name:        "list_adapters",
		title:       "List adapters",
		description: "List the configured LLM adapters in declaration order, with the configured defaults.",
		annotations: readOnlyAnnotations(),
		inputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"test_availability": {"type": "boolean", "default": false, "description": "Probe whether each adapter's command resolves on this host"}
			}
		}`),
		handler: func(_ context.Context, raw json.RawMessage) (string, error) {
			var args listAdaptersArgs
			if err := unmarshalArguments(raw, &args); err != nil {
				return "", err
			}
			return marshalResult(s.broker.ListAdapters(args.TestAvailability))
		},
	}
}

type exportConversationArgs struct {
	ConversationID string `json:"conversation_id"`
}

func (s *Server) exportConversationTool() tool {
	return tool{
		name:        "export_conversation",
		title:       "Export a conversation",
		description: "Archive a conversation as a compressed, checksummed snapshot in the export directory and return its manifest.",
		annotations: &toolAnnotations{
			ReadOnlyHint:    boolPtr(false),
			DestructiveHint: boolPtr(false),
			IdempotentHint:  boolPtr(true),
			OpenWorldHint:   boolPtr(false),
		},
		inputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"conversation_id": {"type": "string", "description": "Conversation to export"}
			},
			"required": ["conversation_id"]
		}`),
		handler: func(_ context.Context, raw json.RawMessage) (string, error) {
			var args exportConversationArgs
			if err := unmarshalArguments(raw, &args); err != nil {
				return "", err
			}
			if args.ConversationID == "" {
				return "", errors.New("conversation_id is required")
			}
			manifest, err := s.broker.ExportConversation(args.ConversationID)
			if err != nil {
				return "", err
			}
			return marshalResult(manifest)
		},
	}
}
