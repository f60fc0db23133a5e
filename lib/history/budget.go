// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"unicode/utf8"

	"github.com/switchboardhq/switchboard/lib/conversation"
)

// EstimateTokens approximates the token count of a message set. Each
// message costs (len(content) + len(speaker) + 4) / 4 with integer
// division, lengths in characters. The +4 covers per-message framing;
// /4 is the usual characters-per-token rule of thumb.
func EstimateTokens(messages []conversation.Message) int {
	total := 0
	for _, message := range messages {
		total += (utf8.RuneCountInString(message.Content) + utf8.RuneCountInString(message.Speaker) + 4) / 4
	}
	return total
}

// SelectBudget selects by mode and then trims the result to fit
// maxTokens. A maxTokens of zero or less means no ceiling.
//
// Smart mode trims by holding the opening message fixed and shrinking
// the trailing window; if nothing fits alongside the opening message,
// it gives up the anchor and shrinks from the absolute end of the
// full sequence. Every other mode shrinks its selection from the
// front, keeping the most recent messages. When even the single most
// recent message exceeds the budget, the result is empty.
func SelectBudget(messages []conversation.Message, mode Mode, maxTokens int) ([]conversation.Message, error) {
	selected, err := Select(messages, mode)
	if err != nil {
		return nil, err
	}
	if maxTokens <= 0 || EstimateTokens(selected) <= maxTokens {
		return selected, nil
	}
	if mode == ModeSmart {
		return trimSmart(messages, maxTokens), nil
	}
	return trimSuffix(selected, maxTokens), nil
}

// trimSuffix returns the largest trailing suffix whose estimate fits
// the budget. Suffix cost grows monotonically with length, so binary
// search finds the boundary.
func trimSuffix(messages []conversation.Message, maxTokens int) []conversation.Message {
	best := 0
	low, high := 1, len(messages)
	for low <= high {
		mid := (low + high) / 2
		if EstimateTokens(messages[len(messages)-mid:]) <= maxTokens {
			best = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	if best == 0 {
		return []conversation.Message{}
	}
	return messages[len(messages)-best:]
}

// trimSmart keeps messages[0] fixed and binary-searches the largest
// trailing window that fits next to it. Window sizes run from
// len(messages)-1 (everything after the opener) down to one, so the
// opener is never duplicated into its own window.
func trimSmart(messages []conversation.Message, maxTokens int) []conversation.Message {
	openerCost := EstimateTokens(messages[:1])
	best := 0
	low, high := 1, len(messages)-1
	for low <= high {
		mid := (low + high) / 2
		if openerCost+EstimateTokens(messages[len(messages)-mid:]) <= maxTokens {
			best = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	if best == 0 {
		// Not even the opener plus the last message fits. Drop the
		// anchor and shrink from the absolute end instead.
		return trimSuffix(messages, maxTokens)
	}
	trimmed := make([]conversation.Message, 0, best+1)
	trimmed = append(trimmed, messages[0])
	trimmed = append(trimmed, messages[len(messages)-best:]...)
	return trimmed
}
