// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/pkg/types"
)

// CSVStore keeps the inventory as a CSV file with a header row.
type CSVStore struct {
	path   string
	logger zerolog.Logger
}

// NewCSVStore returns a store backed by the CSV file at path.
func NewCSVStore(path string, logger zerolog.Logger) *CSVStore {
	return &CSVStore{path: path, logger: logger}
}

func (s *CSVStore) Location() string { return s.path }

func (s *CSVStore) Close() error { return nil }

// EnsureInitialized writes the header if the file does not exist yet.
func (s *CSVStore) EnsureInitialized() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking inventory %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating inventory directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("creating inventory %s: %w", s.path, err)
	}
	return writeSynced(f, types.InventoryColumns)
}

// LoadSeen reads the doi column. Any read or parse error yields an empty set.
func (s *CSVStore) LoadSeen() *SeenSet {
	seen := NewSeenSet()
	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("inventory unreadable, starting fresh")
		}
		return seen
	}
	defer f.Close()

	ids, err := readDOIColumn(f)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("inventory unparsable, starting fresh")
		return seen
	}
	for _, id := range ids {
		seen.Add(id)
	}
	return seen
}

func readDOIColumn(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := -1
	for i, name := range header {
		if name == types.InventoryColumns[0] {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("header has no %q column", types.InventoryColumns[0])
	}

	var ids []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if key := seenKey(rec[col]); key != "" {
			ids = append(ids, key)
		}
	}
}

// Append writes one row, flushes, and fsyncs before returning.
func (s *CSVStore) Append(row types.InventoryRow) error {
	if err := s.EnsureInitialized(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening inventory %s: %w", s.path, err)
	}
	return writeSynced(f, row.Values())
}

// writeSynced writes one record to f, syncs, and closes it.
func writeSynced(f *os.File, record []string) error {
	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		f.Close()
		return fmt.Errorf("writing inventory row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing inventory row: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing inventory: %w", err)
	}
	return f.Close()
}
