// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/switchboardhq/switchboard/lib/clock"
	"github.com/switchboardhq/switchboard/lib/conversation"
)

const (
	archiveSuffix  = ".json.zst"
	manifestSuffix = ".manifest.json"
)

// archiveDomainKey is the BLAKE3 key for archive checksums. The byte
// values are the ASCII encoding of the domain name, zero-padded to 32
// bytes, so the key is inspectable in hex dumps. Changing it
// invalidates every existing manifest.
var archiveDomainKey = [32]byte{
	's', 'w', 'i', 't', 'c', 'h', 'b', 'o', 'a', 'r', 'd', '.',
	'a', 'r', 'c', 'h', 'i', 'v', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// zstdEncoder and zstdDecoder are reused across calls to avoid
// repeated initialization overhead. Both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("archive: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("archive: zstd decoder initialization failed: " + err.Error())
	}
}

// Manifest describes one exported archive. It is written next to the
// archive file and is the input to Verify.
type Manifest struct {
	ConversationID   string                 `json:"conversation_id"`
	CreatedAt        conversation.Timestamp `json:"created_at"`
	MessageCount     int                    `json:"message_count"`
	ArchiveFile      string                 `json:"archive_file"`
	Checksum         string                 `json:"checksum_blake3"`
	CompressedSize   int64                  `json:"compressed_size"`
	UncompressedSize int64                  `json:"uncompressed_size"`
}

// document is the uncompressed export payload.
type document struct {
	Metadata conversation.Metadata  `json:"metadata"`
	Messages []conversation.Message `json:"messages"`
}

// ExporterConfig carries the dependencies for NewExporter.
type ExporterConfig struct {
	Store  *conversation.Store
	Clock  clock.Clock
	Logger *slog.Logger
}

func (c ExporterConfig) validate() error {
	var errs []error
	if c.Store == nil {
		errs = append(errs, errors.New("store is required"))
	}
	if c.Clock == nil {
		errs = append(errs, errors.New("clock is required"))
	}
	if c.Logger == nil {
		errs = append(errs, errors.New("logger is required"))
	}
	return errors.Join(errs...)
}

// Exporter writes conversation archives. Safe for concurrent use.
type Exporter struct {
	store  *conversation.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewExporter validates the configuration and returns an Exporter.
func NewExporter(config ExporterConfig) (*Exporter, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid exporter config: %w", err)
	}
	return &Exporter{store: config.Store, clock: config.Clock, logger: config.Logger}, nil
}

// Export snapshots one conversation into destDir and returns the
// manifest. The archive is written before the manifest, so a manifest
// on disk always refers to a complete archive.
func (e *Exporter) Export(id string, destDir string) (*Manifest, error) {
	metadata, err := e.store.Metadata(id)
	if err != nil {
		return nil, fmt.Errorf("reading metadata for export: %w", err)
	}
	messages, err := e.store.Messages(id)
	if err != nil {
		return nil, fmt.Errorf("reading messages for export: %w", err)
	}

	raw, err := json.MarshalIndent(document{Metadata: metadata, Messages: messages}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding export document: %w", err)
	}
	raw = append(raw, '\n')
	compressed := zstdEncoder.EncodeAll(raw, nil)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	archiveName := metadata.ID + archiveSuffix
	archivePath := filepath.Join(destDir, archiveName)
	if err := os.WriteFile(archivePath, compressed, 0o644); err != nil {
		return nil, fmt.Errorf("writing archive: %w", err)
	}

	manifest := &Manifest{
		ConversationID:   metadata.ID,
		CreatedAt:        conversation.Timestamp{Time: e.clock.Now().UTC()},
		MessageCount:     len(messages),
		ArchiveFile:      archiveName,
		Checksum:         hex.EncodeToString(checksum(raw)),
		CompressedSize:   int64(len(compressed)),
		UncompressedSize: int64(len(raw)),
	}
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	encoded = append(encoded, '\n')
	if err := os.WriteFile(filepath.Join(destDir, metadata.ID+manifestSuffix), encoded, 0o644); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	e.logger.Info("exported conversation",
		"conversation", metadata.ID,
		"archive", archivePath,
		"messages", len(messages),
		"compressed_size", manifest.CompressedSize,
		"uncompressed_size", manifest.UncompressedSize)
	return manifest, nil
}

// Verify checks an archive against its manifest: compressed size,
// uncompressed size, and checksum must all match.
func Verify(archivePath, manifestPath string) error {
	encoded, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(encoded, &manifest); err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}

	compressed, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}
	if int64(len(compressed)) != manifest.CompressedSize {
		return fmt.Errorf("archive is %d bytes, manifest says %d", len(compressed), manifest.CompressedSize)
	}

	raw, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, manifest.UncompressedSize))
	if err != nil {
		return fmt.Errorf("decompressing archive: %w", err)
	}
	if int64(len(raw)) != manifest.UncompressedSize {
		return fmt.Errorf("archive decompresses to %d bytes, manifest says %d", len(raw), manifest.UncompressedSize)
	}
	if got := hex.EncodeToString(checksum(raw)); got != manifest.Checksum {
		return fmt.Errorf("archive checksum %s does not match manifest %s", got, manifest.Checksum)
	}
	return nil
}

// checksum computes the archive-domain BLAKE3 keyed hash of the
// uncompressed document. Hashing uncompressed bytes keeps manifests
// valid if the compression level ever changes.
func checksum(data []byte) []byte {
	hasher, err := blake3.NewKeyed(archiveDomainKey[:])
	if err != nil {
		panic("archive: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hasher.Sum(nil)
}
