// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidID reports a conversation id that failed sanitization.
// Callers must treat this as a hard failure, never substitute a
// default id.
var ErrInvalidID = errors.New("invalid conversation id")

// sanitizeID enforces the boundary between conversation ids and
// filesystem paths. Ids containing path separators or a ".." sequence
// are rejected outright; all other characters outside [a-zA-Z0-9_-]
// are stripped. An id that strips down to nothing is rejected.
//
// The returned id is what the store files are named after, so two ids
// that sanitize to the same string address the same conversation.
func sanitizeID(id string) (string, error) {
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("id %q contains path elements: %w", id, ErrInvalidID)
	}
	var clean strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			clean.WriteRune(r)
		}
	}
	if clean.Len() == 0 {
		return "", fmt.Errorf("id %q has no usable characters: %w", id, ErrInvalidID)
	}
	return clean.String(), nil
}
