// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestRealNow(t *testing.T) {
	c := Real()
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("Real().Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestFakeAdvance(t *testing.T) {
	epoch := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	c := Fake(epoch)

	if got := c.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}

	c.Advance(90 * time.Second)
	want := epoch.Add(90 * time.Second)
	if got := c.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}

	if got := c.Since(epoch); got != 90*time.Second {
		t.Errorf("Since(epoch) = %v, want %v", got, 90*time.Second)
	}
}

func TestFakeSet(t *testing.T) {
	epoch := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	c := Fake(epoch)

	target := time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC)
	c.Set(target)
	if got := c.Now(); !got.Equal(target) {
		t.Errorf("Now() after Set = %v, want %v", got, target)
	}
}

func TestFakeAdvanceBackwardPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Advance(-1) did not panic")
		}
	}()
	Fake(time.Unix(0, 0)).Advance(-time.Second)
}
