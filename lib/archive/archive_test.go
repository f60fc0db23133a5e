// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/switchboardhq/switchboard/lib/clock"
	"github.com/switchboardhq/switchboard/lib/conversation"
)

var archiveTestEpoch = time.Date(2026, 5, 12, 10, 30, 0, 0, time.UTC)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestExporter(t *testing.T) (*Exporter, *conversation.Store) {
	t.Helper()
	fake := clock.Fake(archiveTestEpoch)
	store, err := conversation.Open(conversation.StoreConfig{
		Dir:    t.TempDir(),
		Clock:  fake,
		Logger: testLogger(t),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	exporter, err := NewExporter(ExporterConfig{Store: store, Clock: fake, Logger: testLogger(t)})
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	return exporter, store
}

func TestNewExporterValidatesConfig(t *testing.T) {
	_, err := NewExporter(ExporterConfig{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	for _, want := range []string{"store is required", "clock is required", "logger is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestExportRoundTrip(t *testing.T) {
	exporter, store := newTestExporter(t)
	if _, err := store.Create(conversation.CreateParams{
		ID:             "export-me",
		InitialMessage: "Hello",
		Topic:          "exports",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Append("export-me", "claude", "Hi there", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	destDir := filepath.Join(t.TempDir(), "exports")
	manifest, err := exporter.Export("export-me", destDir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if manifest.ConversationID != "export-me" {
		t.Errorf("ConversationID = %q, want export-me", manifest.ConversationID)
	}
	if manifest.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", manifest.MessageCount)
	}
	if manifest.ArchiveFile != "export-me.json.zst" {
		t.Errorf("ArchiveFile = %q", manifest.ArchiveFile)
	}
	if len(manifest.Checksum) != 64 {
		t.Errorf("Checksum = %q, want 64 hex characters", manifest.Checksum)
	}
	if manifest.CompressedSize <= 0 || manifest.UncompressedSize <= 0 {
		t.Errorf("sizes = %d/%d, want positive", manifest.CompressedSize, manifest.UncompressedSize)
	}
	if !manifest.CreatedAt.Equal(archiveTestEpoch) {
		t.Errorf("CreatedAt = %v, want %v", manifest.CreatedAt, archiveTestEpoch)
	}

	archivePath := filepath.Join(destDir, manifest.ArchiveFile)
	compressed, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	raw, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("decompressing archive: %v", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("parsing archive document: %v", err)
	}
	if doc.Metadata.ID != "export-me" || doc.Metadata.MessageCount != 2 {
		t.Errorf("archived metadata = %+v", doc.Metadata)
	}
	if len(doc.Messages) != 2 || doc.Messages[1].Content != "Hi there" {
		t.Errorf("archived messages = %+v", doc.Messages)
	}
}

func TestExportThenVerify(t *testing.T) {
	exporter, store := newTestExporter(t)
	if _, err := store.Create(conversation.CreateParams{ID: "verified", InitialMessage: "one"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	destDir := t.TempDir()
	manifest, err := exporter.Export("verified", destDir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	archivePath := filepath.Join(destDir, manifest.ArchiveFile)
	manifestPath := filepath.Join(destDir, "verified.manifest.json")
	if err := Verify(archivePath, manifestPath); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	exporter, store := newTestExporter(t)
	if _, err := store.Create(conversation.CreateParams{ID: "tampered", InitialMessage: "original content"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	destDir := t.TempDir()
	manifest, err := exporter.Export("tampered", destDir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	archivePath := filepath.Join(destDir, manifest.ArchiveFile)
	manifestPath := filepath.Join(destDir, "tampered.manifest.json")

	compressed, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	compressed[len(compressed)/2] ^= 0xff
	if err := os.WriteFile(archivePath, compressed, 0o644); err != nil {
		t.Fatalf("rewriting archive: %v", err)
	}

	if err := Verify(archivePath, manifestPath); err == nil {
		t.Fatal("Verify accepted a tampered archive")
	}
}

func TestVerifyDetectsTruncation(t *testing.T) {
	exporter, store := newTestExporter(t)
	if _, err := store.Create(conversation.CreateParams{ID: "truncated", InitialMessage: "some content here"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	destDir := t.TempDir()
	manifest, err := exporter.Export("truncated", destDir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	archivePath := filepath.Join(destDir, manifest.ArchiveFile)
	manifestPath := filepath.Join(destDir, "truncated.manifest.json")

	compressed, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	if err := os.WriteFile(archivePath, compressed[:len(compressed)-4], 0o644); err != nil {
		t.Fatalf("rewriting archive: %v", err)
	}

	err = Verify(archivePath, manifestPath)
	if err == nil {
		t.Fatal("Verify accepted a truncated archive")
	}
	if !strings.Contains(err.Error(), "manifest says") {
		t.Errorf("error = %v, want size mismatch", err)
	}
}

func TestExportEmptyConversation(t *testing.T) {
	exporter, store := newTestExporter(t)
	if _, err := store.Create(conversation.CreateParams{ID: "empty"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	manifest, err := exporter.Export("empty", t.TempDir())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if manifest.MessageCount != 0 {
		t.Errorf("MessageCount = %d, want 0", manifest.MessageCount)
	}
}

func TestExportRejectsInvalidID(t *testing.T) {
	exporter, _ := newTestExporter(t)
	if _, err := exporter.Export("../../etc/passwd", t.TempDir()); err == nil {
		t.Fatal("Export accepted a path-traversal id")
	}
}
