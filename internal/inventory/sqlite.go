// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inventory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/pkg/types"
)

// SQLiteStore keeps the inventory in a single-table SQLite database.
// Rows carry an autoincrement key so insertion order is preserved.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// NewSQLiteStore opens or creates the database at path. Every commit is
// fsynced (synchronous=FULL) so an appended row survives a crash.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating inventory directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &SQLiteStore{db: db, path: path, logger: logger}
	if err := s.EnsureInitialized(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Location() string { return s.path }

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EnsureInitialized() error {
	const schema = `CREATE TABLE IF NOT EXISTS inventory (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		doi TEXT NOT NULL,
		title TEXT,
		source TEXT,
		keyword TEXT,
		abstract_available TEXT,
		abstract_matched TEXT,
		pdf_downloaded TEXT,
		xml_downloaded TEXT,
		fulltext_matched TEXT,
		names_found TEXT,
		units_found TEXT,
		notes TEXT
	)`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_inventory_doi ON inventory(doi)`); err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	return nil
}

// LoadSeen reads every stored doi. A query failure yields an empty set.
func (s *SQLiteStore) LoadSeen() *SeenSet {
	seen := NewSeenSet()
	rows, err := s.db.Query(`SELECT doi FROM inventory ORDER BY seq`)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("inventory unreadable, starting fresh")
		return seen
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var doi string
		if err := rows.Scan(&doi); err != nil {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("inventory unparsable, starting fresh")
			return NewSeenSet()
		}
		if key := seenKey(doi); key != "" {
			ids = append(ids, key)
		}
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("inventory unparsable, starting fresh")
		return seen
	}
	for _, id := range ids {
		seen.Add(id)
	}
	return seen
}

// Append inserts one row in its own transaction.
func (s *SQLiteStore) Append(row types.InventoryRow) error {
	v := row.Values()
	_, err := s.db.Exec(`INSERT INTO inventory
		(doi, title, source, keyword, abstract_available, abstract_matched,
		 pdf_downloaded, xml_downloaded, fulltext_matched, names_found, units_found, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7], v[8], v[9], v[10], v[11])
	if err != nil {
		return fmt.Errorf("inserting inventory row %s: %w", row.DOI, err)
	}
	return nil
}

// Rows returns every stored row in insertion order as column values.
func (s *SQLiteStore) Rows() ([][]string, error) {
	rows, err := s.db.Query(`SELECT doi, title, source, keyword, abstract_available,
		abstract_matched, pdf_downloaded, xml_downloaded, fulltext_matched,
		names_found, units_found, notes FROM inventory ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying inventory: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		rec := make([]string, len(types.InventoryColumns))
		ptrs := make([]any, len(rec))
		for i := range rec {
			ptrs[i] = &rec[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning inventory row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
