// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Switchboard-call invokes a configured LLM adapter once, outside any
// conversation. It is the smoke-testing companion to
// switchboard-server: same adapter configuration, same invocation
// path, but no MCP framing and no conversation log. The exit code
// mirrors the adapter's, so it composes with shell scripts.
package main
