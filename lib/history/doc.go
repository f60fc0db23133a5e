// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package history decides which portion of a conversation log is
// replayed as context when an adapter is invoked.
//
// Selection is a pure transform: a mode names the policy (none,
// minimal, recent, smart, full) and the result is always a
// subsequence of the input in its original order. An optional token
// budget trims the selection further using a character-based
// estimate; there is deliberately no model-accurate tokenization
// here.
package history
