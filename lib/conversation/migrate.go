// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ensureMigrated converts a legacy single-JSON-array log to the
// line-oriented format if one exists for the id. Safe to call from
// read paths: it takes the conversation lock only when there is
// something to migrate.
func (s *Store) ensureMigrated(id string) error {
	if _, err := os.Stat(s.legacyPath(id)); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if _, err := os.Stat(s.logPath(id)); err == nil {
		return nil
	}
	unlock, err := s.lockConversation(id)
	if err != nil {
		return err
	}
	defer unlock()
	return s.migrateLegacyLocked(id)
}

// migrateLegacyLocked performs the migration. The caller holds the
// conversation lock.
//
// The new log is written to a temp file, fsynced, and renamed into
// place, so a failure part way through leaves the original untouched
// and a re-run starts clean. Once the log exists the migration is a
// no-op, which makes it idempotent. Renaming the original to .bak is
// best effort: the converted data is already durable, so a backup
// failure must not fail the migration.
func (s *Store) migrateLegacyLocked(id string) error {
	if _, err := os.Stat(s.logPath(id)); err == nil {
		return nil
	}
	legacyPath := s.legacyPath(id)
	data, err := os.ReadFile(legacyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading legacy log: %w", err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("parsing legacy log: %w", err)
	}

	tmpPath := s.logPath(id) + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating converted log: %w", err)
	}
	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	for _, message := range messages {
		if err := encoder.Encode(message); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("writing converted log: %w", err)
		}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing converted log: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing converted log: %w", err)
	}
	if err := os.Rename(tmpPath, s.logPath(id)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("installing converted log: %w", err)
	}

	if err := os.Rename(legacyPath, s.backupPath(id)); err != nil {
		s.logger.Warn("could not back up legacy conversation file",
			"conversation", id, "error", err)
	}
	s.logger.Info("migrated legacy conversation log",
		"conversation", id, "messages", len(messages))
	return nil
}
