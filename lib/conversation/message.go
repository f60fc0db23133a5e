// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is one turn in a conversation log. Messages are immutable
// once written.
type Message struct {
	// Turn is the 1-based sequential position of the message within
	// its conversation, assigned as count-before-append + 1.
	Turn int `json:"turn"`

	// Speaker identifies who produced the message: an adapter name,
	// or "host"/"host_<label>" for messages from the coordinating
	// client.
	Speaker string `json:"speaker"`

	// Content is the message text.
	Content string `json:"content"`

	// Timestamp records when the message was appended.
	Timestamp Timestamp `json:"timestamp"`

	// Metadata carries open per-message annotations, such as the
	// structured result of the adapter invocation that produced the
	// message.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Metadata is the derived per-conversation summary cached in the
// `.metadata` sidecar. It is always recomputable from the message log.
type Metadata struct {
	ID        string    `json:"id"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`

	// Participants lists every speaker in the log, in order of first
	// appearance.
	Participants []string `json:"participants"`

	MessageCount int      `json:"message_count"`
	Topic        string   `json:"topic"`
	Tags         []string `json:"tags"`
	Status       string   `json:"status"`
}

// StatusActive is the status assigned to newly created conversations.
const StatusActive = "active"

// topicLength is how many leading characters of the first message
// become the derived topic.
const topicLength = 100

// Timestamp is a time.Time that round-trips the ISO-8601 renderings
// found in conversation files. New records are written as RFC 3339
// with nanosecond precision; records written by earlier releases may
// carry zone-less timestamps, which parse as UTC.
type Timestamp struct {
	time.Time
}

// timestampLayouts are tried in order when parsing. The zone-less
// layout accepts any fractional-second precision, including none.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// MarshalJSON renders the timestamp as an RFC 3339 string.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// UnmarshalJSON parses either RFC 3339 or the legacy zone-less form.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp is not a JSON string: %w", err)
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}
