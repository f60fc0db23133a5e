// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"
)

// SortField selects which metadata field List orders by.
type SortField string

const (
	SortByCreatedAt    SortField = "created_at"
	SortByUpdatedAt    SortField = "updated_at"
	SortByMessageCount SortField = "message_count"
	SortByID           SortField = "id"
)

// SortOrder is the direction of a List sort.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// ParseSortField maps a request string to a SortField. Empty defaults
// to updated_at, anything else is an error.
func ParseSortField(raw string) (SortField, error) {
	switch SortField(raw) {
	case "":
		return SortByUpdatedAt, nil
	case SortByCreatedAt, SortByUpdatedAt, SortByMessageCount, SortByID:
		return SortField(raw), nil
	default:
		return "", fmt.Errorf("unknown sort field %q", raw)
	}
}

// ParseSortOrder maps a request string to a SortOrder. Empty defaults
// to descending, anything else is an error.
func ParseSortOrder(raw string) (SortOrder, error) {
	switch SortOrder(raw) {
	case "":
		return Descending, nil
	case Ascending, Descending:
		return SortOrder(raw), nil
	default:
		return "", fmt.Errorf("unknown sort order %q", raw)
	}
}

// ListOptions controls List. The zero value lists every conversation,
// newest update first.
type ListOptions struct {
	// Limit truncates the result when positive.
	Limit int

	// SortBy orders the result. Zero value sorts by updated_at.
	SortBy SortField

	// Order is the sort direction. Zero value is descending.
	Order SortOrder
}

// List enumerates every known conversation, including not-yet-migrated
// legacy files, fetches metadata for each (migrating and deriving as a
// side effect), sorts, and truncates. A conversation whose metadata
// cannot be read is skipped with a warning rather than failing the
// listing.
func (s *Store) List(options ListOptions) ([]Metadata, error) {
	sortBy := options.SortBy
	if sortBy == "" {
		sortBy = SortByUpdatedAt
	}
	order := options.Order
	if order == "" {
		order = Descending
	}
	switch sortBy {
	case SortByCreatedAt, SortByUpdatedAt, SortByMessageCount, SortByID:
	default:
		return nil, fmt.Errorf("unknown sort field %q", sortBy)
	}
	if order != Ascending && order != Descending {
		return nil, fmt.Errorf("unknown sort order %q", order)
	}

	ids, err := s.conversationIDs()
	if err != nil {
		return nil, err
	}

	metas := make([]Metadata, 0, len(ids))
	for _, id := range ids {
		meta, err := s.Metadata(id)
		if err != nil {
			s.logger.Warn("skipping unlistable conversation", "conversation", id, "error", err)
			continue
		}
		metas = append(metas, meta)
	}

	slices.SortStableFunc(metas, func(a, b Metadata) int {
		var c int
		switch sortBy {
		case SortByCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt.Time)
		case SortByUpdatedAt:
			c = a.UpdatedAt.Compare(b.UpdatedAt.Time)
		case SortByMessageCount:
			c = cmp.Compare(a.MessageCount, b.MessageCount)
		case SortByID:
			c = cmp.Compare(a.ID, b.ID)
		}
		if order == Descending {
			c = -c
		}
		return c
	})

	if options.Limit > 0 && len(metas) > options.Limit {
		metas = metas[:options.Limit]
	}
	return metas, nil
}

// conversationIDs scans the store directory for conversation files in
// both formats, deduplicated. Backup, temp, and bookkeeping entries
// are not conversations.
func (s *Store) conversationIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading store directory: %w", err)
	}
	seen := make(map[string]bool)
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		id, isLog := strings.CutSuffix(name, logSuffix)
		if !isLog {
			id, _ = strings.CutSuffix(name, legacySuffix)
		}
		if id == name || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
