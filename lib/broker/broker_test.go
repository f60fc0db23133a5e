// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/switchboardhq/switchboard/lib/adapter"
	"github.com/switchboardhq/switchboard/lib/archive"
	"github.com/switchboardhq/switchboard/lib/clock"
	"github.com/switchboardhq/switchboard/lib/conversation"
	"github.com/switchboardhq/switchboard/lib/history"
)

var brokerTestEpoch = time.Date(2026, 5, 12, 10, 30, 0, 0, time.UTC)

// brokerConfigJSON wires adapters to small POSIX tools so calls
// exercise the real process path.
const brokerConfigJSON = `{
	"adapters": {
		"echo-cat":     {"type": "process", "command": "cat", "input_method": "stdin", "description": "echoes stdin"},
		"echo-cat-two": {"type": "process", "command": "cat", "input_method": "stdin"},
		"shout":        {"type": "process", "command": "tr", "args": ["a-z", "A-Z"], "input_method": "stdin"},
		"failing":      {"type": "process", "command": "sh", "args": ["-c", "echo boom >&2; exit 1"], "input_method": "stdin"}
	},
	"default_adapter": "echo-cat",
	"default_summarization_adapter": "echo-cat"
}`

// noDefaultsConfigJSON has no default adapter pointers.
const noDefaultsConfigJSON = `{
	"adapters": {
		"echo-cat": {"type": "process", "command": "cat", "input_method": "stdin"}
	}
}`

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestBroker(t *testing.T, configJSON string) (*Broker, *conversation.Store) {
	t.Helper()
	logger := testLogger(t)
	fake := clock.Fake(brokerTestEpoch)

	store, err := conversation.Open(conversation.StoreConfig{
		Dir:    t.TempDir(),
		Clock:  fake,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	configPath := filepath.Join(t.TempDir(), "adapters.json")
	if err := os.WriteFile(configPath, []byte(configJSON), 0o644); err != nil {
		t.Fatalf("writing adapter config: %v", err)
	}
	registry, err := adapter.LoadRegistry(adapter.RegistryConfig{Path: configPath, Logger: logger})
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}

	invoker, err := adapter.NewInvoker(adapter.InvokerConfig{Clock: fake, Logger: logger})
	if err != nil {
		t.Fatalf("NewInvoker: %v", err)
	}
	exporter, err := archive.NewExporter(archive.ExporterConfig{Store: store, Clock: fake, Logger: logger})
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}

	b, err := New(Config{
		Store:     store,
		Registry:  registry,
		Invoker:   invoker,
		Exporter:  exporter,
		ExportDir: filepath.Join(t.TempDir(), "exports"),
		Clock:     fake,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, store
}

func createDemo(t *testing.T, store *conversation.Store, initial string) {
	t.Helper()
	if _, err := store.Create(conversation.CreateParams{ID: "demo", InitialMessage: initial}); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	for _, want := range []string{
		"store is required",
		"registry is required",
		"invoker is required",
		"exporter is required",
		"export dir is required",
		"clock is required",
		"logger is required",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestCallAppendsResponse(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	result, err := b.Call(context.Background(), CallParams{
		ConversationID: "demo",
		Adapter:        "echo-cat",
		Message:        "World",
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Response != "World" {
		t.Errorf("Response = %q, want World", result.Response)
	}
	if result.Turn != 2 {
		t.Errorf("Turn = %d, want 2", result.Turn)
	}
	if result.Adapter != "echo-cat" {
		t.Errorf("Adapter = %q, want echo-cat", result.Adapter)
	}

	messages, err := store.Messages("demo")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	reply := messages[1]
	if reply.Turn != 2 || reply.Speaker != "echo-cat" || reply.Content != "World" {
		t.Errorf("appended reply = %+v", reply)
	}
	if got, ok := reply.Metadata["exit_code"].(float64); !ok || got != 0 {
		t.Errorf("metadata exit_code = %v, want 0", reply.Metadata["exit_code"])
	}
	if reply.Metadata["adapter"] != "echo-cat" {
		t.Errorf("metadata adapter = %v, want echo-cat", reply.Metadata["adapter"])
	}
}

func TestCallSendsSelectedHistory(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	result, err := b.Call(context.Background(), CallParams{
		ConversationID: "demo",
		Adapter:        "echo-cat",
		Message:        "World",
		ContextMode:    "full",
		PassHistory:    true,
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if want := "host: Hello | World"; result.Response != want {
		t.Errorf("Response = %q, want %q", result.Response, want)
	}
}

func TestCallDefaultAdapter(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	result, err := b.Call(context.Background(), CallParams{ConversationID: "demo", Message: "hi"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Adapter != "echo-cat" {
		t.Errorf("Adapter = %q, want default echo-cat", result.Adapter)
	}
}

func TestCallNoDefaultAdapter(t *testing.T) {
	b, store := newTestBroker(t, noDefaultsConfigJSON)
	createDemo(t, store, "Hello")

	_, err := b.Call(context.Background(), CallParams{ConversationID: "demo", Message: "hi"})
	if err == nil || !strings.Contains(err.Error(), "no default_adapter") {
		t.Fatalf("error = %v, want missing-default error", err)
	}
}

func TestCallUnknownConversation(t *testing.T) {
	b, _ := newTestBroker(t, brokerConfigJSON)
	_, err := b.Call(context.Background(), CallParams{ConversationID: "ghost", Adapter: "echo-cat"})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("error = %v, want ErrConversationNotFound", err)
	}
}

func TestCallUnknownAdapter(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	_, err := b.Call(context.Background(), CallParams{ConversationID: "demo", Adapter: "ghost"})
	if !errors.Is(err, adapter.ErrNotFound) {
		t.Fatalf("error = %v, want adapter.ErrNotFound", err)
	}
}

func TestCallInvalidContextMode(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	_, err := b.Call(context.Background(), CallParams{
		ConversationID: "demo",
		Adapter:        "echo-cat",
		ContextMode:    "bogus",
		PassHistory:    true,
	})
	if !errors.Is(err, history.ErrUnknownMode) {
		t.Fatalf("error = %v, want history.ErrUnknownMode", err)
	}
}

func TestCallFailedAdapterDoesNotAppend(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	_, err := b.Call(context.Background(), CallParams{ConversationID: "demo", Adapter: "failing"})
	var invocationErr *InvocationError
	if !errors.As(err, &invocationErr) {
		t.Fatalf("error = %v, want *InvocationError", err)
	}
	if invocationErr.Adapter != "failing" || invocationErr.Reason != "boom" {
		t.Errorf("InvocationError = %+v", invocationErr)
	}

	messages, err := store.Messages("demo")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 1 {
		t.Errorf("got %d messages after failed call, want 1", len(messages))
	}
}

func TestCallParallelFanOut(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	result, err := b.CallParallel(context.Background(), ParallelParams{
		ConversationID: "demo",
		Adapters:       []string{"echo-cat", "shout"},
		Message:        "World",
	})
	if err != nil {
		t.Fatalf("CallParallel: %v", err)
	}
	if result.TotalAdapters != 2 || result.Successful != 2 || result.Failed != 0 {
		t.Fatalf("counts = %d/%d/%d, want 2/2/0", result.TotalAdapters, result.Successful, result.Failed)
	}
	if result.Results[0].Adapter != "echo-cat" || result.Results[0].Response != "World" {
		t.Errorf("slot 0 = %+v", result.Results[0])
	}
	if result.Results[1].Adapter != "shout" || result.Results[1].Response != "WORLD" {
		t.Errorf("slot 1 = %+v", result.Results[1])
	}

	messages, err := store.Messages("demo")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	speakers := map[string]bool{}
	for _, message := range messages[1:] {
		speakers[message.Speaker] = true
	}
	if !speakers["echo-cat"] || !speakers["shout"] {
		t.Errorf("appended speakers = %v", speakers)
	}
}

func TestCallParallelSharesSnapshot(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	result, err := b.CallParallel(context.Background(), ParallelParams{
		ConversationID: "demo",
		Adapters:       []string{"echo-cat", "echo-cat-two"},
		ContextMode:    "full",
		PassHistory:    true,
	})
	if err != nil {
		t.Fatalf("CallParallel: %v", err)
	}
	// Both adapters see the pre-call snapshot, never each other's
	// append.
	for i, slot := range result.Results {
		if slot.Response != "host: Hello" {
			t.Errorf("slot %d response = %q, want %q", i, slot.Response, "host: Hello")
		}
	}
}

func TestCallParallelIsolatesFailures(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	result, err := b.CallParallel(context.Background(), ParallelParams{
		ConversationID: "demo",
		Adapters:       []string{"echo-cat", "failing", "ghost"},
		Message:        "World",
	})
	if err != nil {
		t.Fatalf("CallParallel: %v", err)
	}
	if result.Successful != 1 || result.Failed != 2 {
		t.Fatalf("counts = %d successful, %d failed, want 1/2", result.Successful, result.Failed)
	}
	if !result.Results[0].Success || result.Results[0].Response != "World" {
		t.Errorf("slot 0 = %+v", result.Results[0])
	}
	if result.Results[1].Success || result.Results[1].Error != "boom" {
		t.Errorf("slot 1 = %+v", result.Results[1])
	}
	if result.Results[2].Success || !strings.Contains(result.Results[2].Error, "adapter not found") {
		t.Errorf("slot 2 = %+v", result.Results[2])
	}

	messages, err := store.Messages("demo")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 2 {
		t.Errorf("got %d messages, want 2 (initial + one success)", len(messages))
	}
}

func TestCallParallelEmptyList(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	_, err := b.CallParallel(context.Background(), ParallelParams{ConversationID: "demo"})
	if !errors.Is(err, ErrNoAdapters) {
		t.Fatalf("error = %v, want ErrNoAdapters", err)
	}
}

func TestSummarize(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")
	if _, err := store.Append("demo", "claude", "Hi there", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	summary, err := b.Summarize(context.Background(), "demo", "")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	// The summarizer is cat, so the "summary" is the prompt itself.
	want := summaryPromptHeader + "\n\nhost: Hello\n\nclaude: Hi there\n\nSummary:"
	if summary.Summary != want {
		t.Errorf("Summary = %q, want %q", summary.Summary, want)
	}
	if summary.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", summary.MessageCount)
	}
	if summary.SummarizedBy != "echo-cat" {
		t.Errorf("SummarizedBy = %q, want echo-cat", summary.SummarizedBy)
	}

	messages, err := store.Messages("demo")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 2 {
		t.Errorf("summary was appended: %d messages", len(messages))
	}
}

func TestSummarizeEmptyConversation(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "")

	summary, err := b.Summarize(context.Background(), "demo", "")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if want := "Empty conversation - no messages to summarize."; summary.Summary != want {
		t.Errorf("Summary = %q, want %q", summary.Summary, want)
	}
	if summary.MessageCount != 0 || summary.SummarizedBy != "" {
		t.Errorf("summary = %+v, want zero count and no summarizer", summary)
	}
}

func TestSummarizeNoDefault(t *testing.T) {
	b, store := newTestBroker(t, noDefaultsConfigJSON)
	createDemo(t, store, "Hello")

	_, err := b.Summarize(context.Background(), "demo", "")
	if err == nil || !strings.Contains(err.Error(), "no default_summarization_adapter") {
		t.Fatalf("error = %v, want missing-default error", err)
	}
}

func TestSummarizeFailingAdapter(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	_, err := b.Summarize(context.Background(), "demo", "failing")
	var invocationErr *InvocationError
	if !errors.As(err, &invocationErr) {
		t.Fatalf("error = %v, want *InvocationError", err)
	}
	if invocationErr.Reason != "boom" {
		t.Errorf("Reason = %q, want boom", invocationErr.Reason)
	}
}

func TestRecentMessages(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "first")
	if _, err := store.Append("demo", "a", "second", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := store.Append("demo", "b", "third", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := b.RecentMessages("demo", 2)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	want := "[Turn 2] a:\nsecond\n\n[Turn 3] b:\nthird\n"
	if got != want {
		t.Errorf("RecentMessages(2) = %q, want %q", got, want)
	}

	all, err := b.RecentMessages("demo", 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if !strings.Contains(all, "[Turn 1] host:") {
		t.Errorf("RecentMessages(10) = %q, want all three turns", all)
	}
}

func TestRecentMessagesEmpty(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "")

	got, err := b.RecentMessages("demo", 5)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if got != "No messages found." {
		t.Errorf("RecentMessages = %q", got)
	}
}

func TestRecentMessagesUnknownConversation(t *testing.T) {
	b, _ := newTestBroker(t, brokerConfigJSON)
	if _, err := b.RecentMessages("ghost", 5); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("error = %v, want ErrConversationNotFound", err)
	}
}

func TestConversationMetadata(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	metadata, err := b.ConversationMetadata("demo")
	if err != nil {
		t.Fatalf("ConversationMetadata: %v", err)
	}
	if metadata.ID != "demo" || metadata.MessageCount != 1 {
		t.Errorf("metadata = %+v", metadata)
	}

	if _, err := b.ConversationMetadata("ghost"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("error = %v, want ErrConversationNotFound", err)
	}
}

func TestListConversations(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")
	if _, err := store.Create(conversation.CreateParams{ID: "other"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	listed, err := b.ListConversations(conversation.ListOptions{})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("got %d conversations, want 2", len(listed))
	}
}

func TestListAdapters(t *testing.T) {
	b, _ := newTestBroker(t, brokerConfigJSON)

	listing := b.ListAdapters(false)
	if len(listing.Adapters) != 4 {
		t.Fatalf("got %d adapters, want 4", len(listing.Adapters))
	}
	if listing.Adapters[0].Name != "echo-cat" {
		t.Errorf("first adapter = %q, want declaration order", listing.Adapters[0].Name)
	}
	if listing.Adapters[0].Available != nil {
		t.Error("Available set without probing")
	}
	if listing.DefaultAdapter != "echo-cat" || listing.DefaultSummarizationAdapter != "echo-cat" {
		t.Errorf("defaults = %q/%q", listing.DefaultAdapter, listing.DefaultSummarizationAdapter)
	}
	if listing.ConfigPath == "" {
		t.Error("ConfigPath is empty")
	}

	probed := b.ListAdapters(true)
	for _, status := range probed.Adapters {
		if status.Available == nil {
			t.Fatalf("adapter %q has no availability after probing", status.Name)
		}
		if !*status.Available {
			t.Errorf("adapter %q = unavailable, want available", status.Name)
		}
	}
}

func TestListAdaptersUnavailableCommand(t *testing.T) {
	b, _ := newTestBroker(t, `{
		"adapters": {"ghost-bin": {"type": "process", "command": "switchboard-no-such-binary"}}
	}`)
	listing := b.ListAdapters(true)
	if len(listing.Adapters) != 1 {
		t.Fatalf("got %d adapters, want 1", len(listing.Adapters))
	}
	if available := listing.Adapters[0].Available; available == nil || *available {
		t.Errorf("Available = %v, want false", available)
	}
}

func TestCreateConversationOutcome(t *testing.T) {
	b, _ := newTestBroker(t, brokerConfigJSON)

	outcome, err := b.CreateConversation(conversation.CreateParams{ID: "fresh", InitialMessage: "hi"})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if outcome.ConversationID != "fresh" {
		t.Errorf("ConversationID = %q", outcome.ConversationID)
	}
	if outcome.Message != "Created conversation: fresh" {
		t.Errorf("Message = %q", outcome.Message)
	}
	if !strings.HasSuffix(outcome.FilePath, "fresh.log") {
		t.Errorf("FilePath = %q, want *.log", outcome.FilePath)
	}
	if _, err := os.Stat(outcome.FilePath); err != nil {
		t.Errorf("log file missing: %v", err)
	}
}

func TestCreateConversationInvalidID(t *testing.T) {
	b, _ := newTestBroker(t, brokerConfigJSON)
	_, err := b.CreateConversation(conversation.CreateParams{ID: "../../etc/passwd"})
	if !errors.Is(err, conversation.ErrInvalidID) {
		t.Fatalf("error = %v, want conversation.ErrInvalidID", err)
	}
}

func TestExportConversation(t *testing.T) {
	b, store := newTestBroker(t, brokerConfigJSON)
	createDemo(t, store, "Hello")

	manifest, err := b.ExportConversation("demo")
	if err != nil {
		t.Fatalf("ExportConversation: %v", err)
	}
	archivePath := filepath.Join(b.exportDir, manifest.ArchiveFile)
	if _, err := os.Stat(archivePath); err != nil {
		t.Errorf("archive missing: %v", err)
	}

	if _, err := b.ExportConversation("ghost"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("error = %v, want ErrConversationNotFound", err)
	}
}
