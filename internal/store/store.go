// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists paper records as one JSON file per record.
// File-per-record granularity keeps writers independent: every unit of
// pipeline work owns exactly one record, so no locking is needed.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

// ErrNotFound is returned by Load when no record exists for the id.
var ErrNotFound = errors.New("record not found")

// Store manages the papers directory.
type Store struct {
	dir string
}

// New opens (and creates if needed) a record store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Exists reports whether a record is persisted for id.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

// Load reads the record for id. Returns ErrNotFound if absent.
func (s *Store) Load(id string) (*types.PaperRecord, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("loading %s: %w", id, err)
	}

	var rec types.PaperRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing record %s: %w", id, err)
	}
	return &rec, nil
}

// Save writes the record atomically: marshal to a temp file in the store
// directory, then rename over the destination. UpdatedAt is stamped on
// every save; CreatedAt only on first save.
func (s *Store) Save(rec *types.PaperRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("saving record: empty id")
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record %s: %w", rec.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".record-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing record %s: %w", rec.ID, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, s.path(rec.ID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// List returns records ordered most-recently-written first. skip offsets
// into the ordering; limit <= 0 returns everything after skip. Records
// that fail to parse are skipped rather than aborting the listing.
func (s *Store) List(skip, limit int) ([]*types.PaperRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading store directory: %w", err)
	}

	type candidate struct {
		id      string
		modTime time.Time
	}

	var candidates []candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			id:      strings.TrimSuffix(name, ".json"),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	if skip < 0 {
		skip = 0
	}
	if skip >= len(candidates) {
		return nil, nil
	}
	candidates = candidates[skip:]
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	var records []*types.PaperRecord
	for _, c := range candidates {
		rec, err := s.Load(c.id)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
