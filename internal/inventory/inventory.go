// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package inventory persists one row per processed article in an append-only,
// crash-resumable store. The set of identifiers already present is the
// checkpoint a new run resumes from.
package inventory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/internal/layout"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// Store is an append-only inventory. Rows are never rewritten or
// deduplicated here; callers consult LoadSeen before doing any work.
type Store interface {
	// EnsureInitialized creates the store with its schema if absent.
	EnsureInitialized() error

	// LoadSeen returns the normalized identifiers already recorded. A store
	// that cannot be parsed yields an empty set.
	LoadSeen() *SeenSet

	// Append durably writes one row. When it returns nil the row survives a crash.
	Append(row types.InventoryRow) error

	// Location names the underlying file for user-facing messages.
	Location() string

	Close() error
}

// Open returns the store selected by backend under the given layout.
func Open(backend types.InventoryBackend, l layout.Layout, logger zerolog.Logger) (Store, error) {
	switch backend {
	case types.InventoryCSV, "":
		return NewCSVStore(l.InventoryCSV(), logger), nil
	case types.InventorySQLite:
		return NewSQLiteStore(l.InventoryDB(), logger)
	default:
		return nil, fmt.Errorf("unknown inventory backend %q", backend)
	}
}

// SeenSet is the set of normalized identifiers already processed. Entries
// are only ever added.
type SeenSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// Has reports whether id was already processed.
func (s *SeenSet) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Add marks id as processed.
func (s *SeenSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

// Len returns the number of identifiers in the set.
func (s *SeenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// seenKey matches the key a stored "doi" cell contributes to the seen-set.
func seenKey(cell string) string {
	return strings.ToLower(strings.TrimSpace(cell))
}
