// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// lockConversation takes the exclusive advisory lock for the id,
// blocking until it is available, and returns the release function.
//
// The lock is an flock(2) on `.locks/<id>.lock`, so it serializes
// writers across processes sharing the store directory, not just
// goroutines in this one. flock locks belong to the open file
// description: every caller opens its own descriptor, which is what
// makes two goroutines in the same process exclude each other.
func (s *Store) lockConversation(id string) (func(), error) {
	path := filepath.Join(s.dir, lockDirName, id+".lock")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening conversation lock: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		file.Close()
		return nil, fmt.Errorf("locking conversation %q: %w", id, err)
	}
	return func() {
		if err := unix.Flock(int(file.Fd()), unix.LOCK_UN); err != nil {
			s.logger.Warn("releasing conversation lock", "conversation", id, "error", err)
		}
		file.Close()
	}, nil
}
