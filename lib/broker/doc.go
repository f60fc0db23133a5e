// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker ties the conversation store, context selection, and
// adapter invocation together into the operations the RPC front-end
// exposes.
//
// A Broker owns the read, select, invoke, append flow for adapter
// calls: it reads the conversation, selects the context window,
// invokes the adapter, and appends the reply. Only adapter replies
// are recorded; the outgoing message is deliberately not appended, so
// hosts can steer multi-adapter conversations without orchestration
// noise ending up in the log. Parallel fan-out takes one context
// snapshot and shares it across every adapter, isolating per-adapter
// failures in their own result slots.
package broker
