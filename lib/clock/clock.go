// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock reads for testability.
//
// Switchboard stamps every conversation message and metadata update
// with the current time, and measures adapter invocation durations.
// Production code injects Real(); tests inject Fake() and advance it
// explicitly so that timestamps and durations are deterministic.
package clock

import "time"

// Clock provides the current time. Every production function that
// would call time.Now should accept a Clock (or be a method on a
// struct with a Clock field) instead of calling the time package
// directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the time elapsed since t, as measured by this
	// clock. Equivalent to Now().Sub(t).
	Since(t time.Time) time.Duration
}

// Real returns a Clock backed by the system clock.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time                  { return time.Now() }
func (realClock) Since(t time.Time) time.Duration { return time.Since(t) }
