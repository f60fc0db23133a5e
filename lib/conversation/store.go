// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"slices"

	"github.com/switchboardhq/switchboard/lib/clock"
)

// ErrExists reports an attempt to create a conversation whose id is
// already in use.
var ErrExists = errors.New("conversation already exists")

const (
	metadataDirName = ".metadata"
	lockDirName     = ".locks"

	logSuffix    = ".log"
	legacySuffix = ".json"
	backupSuffix = ".json.bak"
)

// StoreConfig carries the dependencies for Open. All fields are
// required.
type StoreConfig struct {
	// Dir is the directory holding conversation logs. It is created
	// if missing, along with the metadata and lock subdirectories.
	Dir string

	// Clock stamps messages and metadata updates.
	Clock clock.Clock

	// Logger receives storage diagnostics. Corrupt log lines and
	// degraded migrations surface here at Warn.
	Logger *slog.Logger
}

func (c *StoreConfig) validate() error {
	var errs []error
	if c.Dir == "" {
		errs = append(errs, errors.New("Dir is required"))
	}
	if c.Clock == nil {
		errs = append(errs, errors.New("Clock is required"))
	}
	if c.Logger == nil {
		errs = append(errs, errors.New("Logger is required"))
	}
	return errors.Join(errs...)
}

// Store owns the on-disk logs and metadata caches for every
// conversation under one directory. No other component writes these
// files.
type Store struct {
	dir    string
	clock  clock.Clock
	logger *slog.Logger
}

// Open validates the config, creates the store directories, and
// returns a Store.
func Open(config StoreConfig) (*Store, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("conversation store config: %w", err)
	}
	for _, dir := range []string{
		config.Dir,
		filepath.Join(config.Dir, metadataDirName),
		filepath.Join(config.Dir, lockDirName),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return &Store{
		dir:    config.Dir,
		clock:  config.Clock,
		logger: config.Logger,
	}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// LogPath returns the path of the conversation's line-oriented log
// file. The file may not exist yet.
func (s *Store) LogPath(id string) (string, error) {
	sanitized, err := sanitizeID(id)
	if err != nil {
		return "", err
	}
	return s.logPath(sanitized), nil
}

func (s *Store) logPath(id string) string {
	return filepath.Join(s.dir, id+logSuffix)
}

func (s *Store) legacyPath(id string) string {
	return filepath.Join(s.dir, id+legacySuffix)
}

func (s *Store) backupPath(id string) string {
	return filepath.Join(s.dir, id+backupSuffix)
}

func (s *Store) metadataPath(id string) string {
	return filepath.Join(s.dir, metadataDirName, id+legacySuffix)
}

// CreateParams describes a conversation to create. The zero value
// creates an empty conversation with a generated id.
type CreateParams struct {
	// ID is the requested conversation id. Empty means generate a
	// collision-resistant one.
	ID string

	// InitialMessage, when non-empty, becomes turn 1, spoken by the
	// host.
	InitialMessage string

	// HostLabel names the host in the initial message's speaker
	// field: "host_<label>", or bare "host" when empty.
	HostLabel string

	// Topic and Tags seed the metadata snapshot.
	Topic string
	Tags  []string
}

// Create makes a new conversation and returns its sanitized id. It
// fails with ErrInvalidID (and an empty id) when the requested id does
// not sanitize, and with ErrExists when the id already has a log in
// either the current or the legacy format.
func (s *Store) Create(params CreateParams) (string, error) {
	requested := params.ID
	if requested == "" {
		requested = s.generateID()
	}
	id, err := sanitizeID(requested)
	if err != nil {
		return "", err
	}

	unlock, err := s.lockConversation(id)
	if err != nil {
		return "", err
	}
	defer unlock()

	if s.hasLog(id) {
		return "", fmt.Errorf("conversation %q: %w", id, ErrExists)
	}
	logFile, err := os.OpenFile(s.logPath(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating conversation log: %w", err)
	}
	if err := logFile.Close(); err != nil {
		return "", fmt.Errorf("creating conversation log: %w", err)
	}

	now := s.clock.Now()
	meta := Metadata{
		ID:           id,
		CreatedAt:    Timestamp{Time: now},
		UpdatedAt:    Timestamp{Time: now},
		Participants: []string{},
		Topic:        params.Topic,
		Tags:         normalizeTags(params.Tags),
		Status:       StatusActive,
	}
	if params.InitialMessage != "" {
		speaker := "host"
		if params.HostLabel != "" {
			speaker = "host_" + params.HostLabel
		}
		message := Message{
			Turn:      1,
			Speaker:   speaker,
			Content:   params.InitialMessage,
			Timestamp: Timestamp{Time: now},
		}
		if err := s.appendRecord(id, message); err != nil {
			return "", err
		}
		meta.Participants = []string{speaker}
		meta.MessageCount = 1
	}
	if err := s.writeMetadata(id, meta); err != nil {
		return "", err
	}

	s.logger.Info("created conversation", "conversation", id, "topic", params.Topic)
	return id, nil
}

// generateID builds a collision-resistant conversation id from the
// current time at microsecond precision plus a random suffix.
func (s *Store) generateID() string {
	now := s.clock.Now()
	return fmt.Sprintf("conversation_%s_%06d_%04d",
		now.Format("20060102_150405"), now.Nanosecond()/1000, 1000+rand.Intn(9000))
}

func normalizeTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// Append adds one message to the conversation and returns it with its
// assigned turn number and timestamp. The record is flushed and
// fsynced before Append returns. Appends to the same conversation are
// serialized by the per-conversation advisory lock, including across
// processes.
func (s *Store) Append(id, speaker, content string, metadata map[string]any) (Message, error) {
	sanitized, err := sanitizeID(id)
	if err != nil {
		return Message{}, err
	}

	unlock, err := s.lockConversation(sanitized)
	if err != nil {
		return Message{}, err
	}
	defer unlock()

	if err := s.migrateLegacyLocked(sanitized); err != nil {
		return Message{}, fmt.Errorf("migrating conversation %q: %w", sanitized, err)
	}

	existing, err := s.readLog(sanitized)
	if err != nil {
		return Message{}, err
	}
	message := Message{
		Turn:      len(existing) + 1,
		Speaker:   speaker,
		Content:   content,
		Timestamp: Timestamp{Time: s.clock.Now()},
		Metadata:  metadata,
	}
	if err := s.appendRecord(sanitized, message); err != nil {
		return Message{}, err
	}
	if err := s.refreshMetadata(sanitized, message, len(existing)+1); err != nil {
		return Message{}, err
	}
	return message, nil
}

// appendRecord writes one message as a single line and fsyncs. The
// line is assembled in memory and written with one call so a reader
// never observes a partial record.
func (s *Store) appendRecord(id string, message Message) error {
	var line bytes.Buffer
	encoder := json.NewEncoder(&line)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(message); err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	file, err := os.OpenFile(s.logPath(id), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening conversation log: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(line.Bytes()); err != nil {
		return fmt.Errorf("appending to conversation log: %w", err)
	}
	// Sync before returning so a crash after Append never loses the
	// record.
	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing conversation log: %w", err)
	}
	return nil
}

// Messages returns every message in the conversation in log order.
// Unknown ids yield an empty slice, not an error. Lines that fail to
// parse are logged at Warn and skipped.
func (s *Store) Messages(id string) ([]Message, error) {
	sanitized, err := sanitizeID(id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureMigrated(sanitized); err != nil {
		s.logger.Warn("legacy migration failed, reading degrades to empty",
			"conversation", sanitized, "error", err)
		return []Message{}, nil
	}
	return s.readLog(sanitized)
}

// MessageRange returns the half-open slice [start, end) of the
// conversation's messages, applied after the full parse. Indexes are
// clamped to the valid range; a negative end means "to the end".
func (s *Store) MessageRange(id string, start, end int) ([]Message, error) {
	messages, err := s.Messages(id)
	if err != nil {
		return nil, err
	}
	if start < 0 {
		start = 0
	}
	if end < 0 || end > len(messages) {
		end = len(messages)
	}
	if start > end {
		start = end
	}
	return messages[start:end], nil
}

// readLog parses the line-oriented log. Missing file means an empty
// conversation. Corrupt lines are skipped with a warning so damage to
// one record never hides the rest.
func (s *Store) readLog(id string) ([]Message, error) {
	file, err := os.Open(s.logPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening conversation log: %w", err)
	}
	defer file.Close()

	messages := []Message{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var message Message
		if err := json.Unmarshal(line, &message); err != nil {
			s.logger.Warn("skipping corrupt conversation log line",
				"conversation", id, "line", lineNumber, "error", err)
			continue
		}
		messages = append(messages, message)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading conversation log: %w", err)
	}
	return messages, nil
}

// Exists reports whether the id has a log in either format. Invalid
// ids read as nonexistent.
func (s *Store) Exists(id string) bool {
	sanitized, err := sanitizeID(id)
	if err != nil {
		return false
	}
	return s.hasLog(sanitized)
}

func (s *Store) hasLog(id string) bool {
	if _, err := os.Stat(s.logPath(id)); err == nil {
		return true
	}
	if _, err := os.Stat(s.legacyPath(id)); err == nil {
		return true
	}
	return false
}

// Metadata returns the conversation's metadata: the cached sidecar
// when present, otherwise a fresh derivation from the log, persisted
// as the new cache when the log is non-empty. Unknown ids yield a
// fresh zero-count metadata, not an error; callers that need
// existence checks use Exists.
func (s *Store) Metadata(id string) (Metadata, error) {
	sanitized, err := sanitizeID(id)
	if err != nil {
		return Metadata{}, err
	}
	if err := s.ensureMigrated(sanitized); err != nil {
		s.logger.Warn("legacy migration failed, deriving metadata from empty log",
			"conversation", sanitized, "error", err)
	}
	if meta, ok := s.readMetadataCache(sanitized); ok {
		return meta, nil
	}
	messages, err := s.readLog(sanitized)
	if err != nil {
		return Metadata{}, err
	}
	meta := s.deriveMetadata(sanitized, messages)
	if len(messages) > 0 {
		if err := s.writeMetadata(sanitized, meta); err != nil {
			s.logger.Warn("could not persist metadata cache",
				"conversation", sanitized, "error", err)
		}
	}
	return meta, nil
}

// deriveMetadata recomputes metadata from scratch. The log is the
// source of truth, so this must agree with what incremental refreshes
// would have produced.
func (s *Store) deriveMetadata(id string, messages []Message) Metadata {
	now := Timestamp{Time: s.clock.Now()}
	meta := Metadata{
		ID:           id,
		CreatedAt:    now,
		UpdatedAt:    now,
		Participants: []string{},
		Tags:         []string{},
		Status:       StatusActive,
	}
	if len(messages) == 0 {
		return meta
	}
	meta.CreatedAt = messages[0].Timestamp
	meta.UpdatedAt = messages[len(messages)-1].Timestamp
	meta.MessageCount = len(messages)
	meta.Topic = truncateRunes(messages[0].Content, topicLength)
	for _, message := range messages {
		if !slices.Contains(meta.Participants, message.Speaker) {
			meta.Participants = append(meta.Participants, message.Speaker)
		}
	}
	return meta
}

// refreshMetadata updates the cache after an append: new count, new
// updated_at, and the speaker added to participants on first
// appearance.
func (s *Store) refreshMetadata(id string, appended Message, count int) error {
	meta, ok := s.readMetadataCache(id)
	if !ok {
		messages, err := s.readLog(id)
		if err != nil {
			return err
		}
		meta = s.deriveMetadata(id, messages)
	}
	meta.UpdatedAt = Timestamp{Time: s.clock.Now()}
	meta.MessageCount = count
	if !slices.Contains(meta.Participants, appended.Speaker) {
		meta.Participants = append(meta.Participants, appended.Speaker)
	}
	return s.writeMetadata(id, meta)
}

// readMetadataCache loads the sidecar. A missing or unreadable
// sidecar reads as absent: it is a cache, so the caller re-derives.
func (s *Store) readMetadataCache(id string) (Metadata, bool) {
	data, err := os.ReadFile(s.metadataPath(id))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("unreadable metadata cache", "conversation", id, "error", err)
		}
		return Metadata{}, false
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("corrupt metadata cache, rederiving", "conversation", id, "error", err)
		return Metadata{}, false
	}
	return meta, true
}

// writeMetadata persists the sidecar atomically (temp file + rename)
// so readers never see a half-written cache.
func (s *Store) writeMetadata(id string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	data = append(data, '\n')
	path := s.metadataPath(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing metadata cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing metadata cache: %w", err)
	}
	return nil
}

// truncateRunes shortens s to at most n characters (code points, not
// bytes, so multi-byte content does not get split mid-rune).
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
