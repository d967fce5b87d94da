// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inventory

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LineLog is an append-only text file with one identifier per line. It backs
// the pdf_doi.txt, xml_doi.txt, and doi_not_downl.txt side-channel logs.
type LineLog struct {
	mu   sync.Mutex
	path string
}

// NewLineLog returns a log at path. The file is created on first Append.
func NewLineLog(path string) *LineLog {
	return &LineLog{path: path}
}

func (l *LineLog) Path() string { return l.path }

// Append writes id followed by a newline and syncs the file.
func (l *LineLog) Append(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", l.path, err)
	}
	if _, err := f.WriteString(id + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("appending to %s: %w", l.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", l.path, err)
	}
	return f.Close()
}

// Lines returns the non-blank trimmed lines. A missing file has no lines.
func (l *LineLog) Lines() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", l.path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", l.path, err)
	}
	return lines, nil
}
