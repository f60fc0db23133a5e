// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive exports conversations as compressed, checksummed
// snapshots.
//
// An export produces two files in the destination directory: the
// archive itself, `<id>.json.zst` (the conversation metadata and
// full message log as one zstd-compressed JSON document), and a
// plain-JSON manifest, `<id>.manifest.json`, recording sizes and a
// BLAKE3 checksum of the uncompressed document. Verify checks an
// archive against its manifest without touching the store.
package archive
