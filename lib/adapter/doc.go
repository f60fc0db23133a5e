// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package adapter maps logical adapter names to external-process
// invocations.
//
// A Registry loads the adapter configuration file once at startup
// (JSON with comments tolerated) and hands out immutable Configs. An
// Invoker executes one adapter call: it builds the argument vector or
// stdin payload from the outgoing message and the rendered history,
// spawns the process with a merged environment and a bounded timeout,
// and captures the outcome as a Result.
//
// Invoke never returns a Go error. Adapter processes fail in routine
// ways (missing binaries, timeouts, non-zero exits) and those
// failures are data, not control flow: they land in the Result's
// metadata so a failed call can be recorded or reported without
// unwinding the caller.
package adapter
