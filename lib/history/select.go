// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"errors"
	"fmt"

	"github.com/switchboardhq/switchboard/lib/conversation"
)

// Mode is a context selection policy. The set is closed: ParseMode
// rejects anything else.
type Mode string

const (
	// ModeNone sends no history.
	ModeNone Mode = "none"

	// ModeMinimal sends only the most recent message.
	ModeMinimal Mode = "minimal"

	// ModeRecent sends the last ten messages.
	ModeRecent Mode = "recent"

	// ModeSmart sends everything for short conversations, and the
	// opening message plus the last five once the conversation has
	// reached ten messages. The opening message anchors what the
	// conversation is about; the tail carries the current exchange.
	ModeSmart Mode = "smart"

	// ModeFull sends the entire log.
	ModeFull Mode = "full"
)

// ErrUnknownMode reports a context mode string outside the closed set.
var ErrUnknownMode = errors.New("unknown context mode")

const (
	// recentWindow is how many trailing messages ModeRecent keeps.
	recentWindow = 10

	// smartThreshold is the conversation length at which ModeSmart
	// stops sending everything. It intentionally differs from
	// smartTailWindow+1: the observed behavior has this asymmetry and
	// callers depend on it.
	smartThreshold = 10

	// smartTailWindow is how many trailing messages ModeSmart keeps
	// alongside the opening message.
	smartTailWindow = 5
)

// ParseMode maps a request string to a Mode. Empty defaults to smart.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case "":
		return ModeSmart, nil
	case ModeNone, ModeMinimal, ModeRecent, ModeSmart, ModeFull:
		return Mode(raw), nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownMode, raw)
	}
}

// Select returns the subsequence of messages the mode calls for,
// preserving original order. It is deterministic and never mutates
// the input.
func Select(messages []conversation.Message, mode Mode) ([]conversation.Message, error) {
	switch mode {
	case ModeNone:
		return []conversation.Message{}, nil
	case ModeMinimal:
		if len(messages) == 0 {
			return []conversation.Message{}, nil
		}
		return messages[len(messages)-1:], nil
	case ModeRecent:
		if len(messages) <= recentWindow {
			return messages, nil
		}
		return messages[len(messages)-recentWindow:], nil
	case ModeSmart:
		if len(messages) < smartThreshold {
			return messages, nil
		}
		selected := make([]conversation.Message, 0, smartTailWindow+1)
		selected = append(selected, messages[0])
		selected = append(selected, messages[len(messages)-smartTailWindow:]...)
		return selected, nil
	case ModeFull:
		return messages, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}
}
