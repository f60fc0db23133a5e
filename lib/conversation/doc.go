// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package conversation persists multi-party conversations as
// append-only logs with a derived metadata cache.
//
// On disk, a store directory holds one `<id>.log` file per
// conversation with one JSON message object per line, a
// `.metadata/<id>.json` sidecar caching derived metadata, and a
// `.locks/<id>.lock` file backing the per-conversation advisory lock.
// The log is the source of truth: the sidecar is an optimization and
// is always recomputable from the log alone.
//
// Earlier releases stored each conversation as a single JSON array in
// `<id>.json`. Such files are migrated to the line-oriented format on
// first touch and the original is renamed to `<id>.json.bak`.
//
// Appends are serialized per conversation id with flock(2), so
// overlapping writers, including independent processes sharing the
// store directory, never produce duplicate turn numbers or interleaved
// lines. Every append is a single write of a full line followed by an
// fsync: a crash immediately after Append returns never loses the
// record and never exposes a partial line to a reader.
package conversation
