// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Switchboard-server is a Model Context Protocol server that brokers
// multi-turn conversations between a coordinating MCP client and
// command-line LLM adapters. It speaks newline-delimited JSON-RPC 2.0
// on stdin/stdout and logs to stderr, the standard arrangement for
// stdio MCP servers launched as a subprocess by an agent framework.
//
// Each tool call routes through a [broker.Broker]: conversations live
// as append-only JSONL logs on disk, adapters are external executables
// declared in a JSON config file, and context selection decides how
// much history each adapter sees. The tool catalog is fixed at
// startup; there is no dynamic discovery.
//
// The server implements the 2025-06-18 MCP protocol revision. Only
// the tools capability is advertised: no resources, no prompts, no
// sampling.
package main
