// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/article-harvester/pkg/types"
)

// Snapshot is the on-disk form of one keyword's merged search results. A
// saved snapshot can be replayed through the pipeline without querying
// any API again.
type Snapshot struct {
	Keyword   string                `yaml:"keyword"`
	Sources   []SnapshotSource      `yaml:"sources,omitempty"`
	Timestamp time.Time             `yaml:"timestamp"`
	Records   []types.ArticleRecord `yaml:"records"`
}

// SnapshotSource records how many records one adapter contributed.
type SnapshotSource struct {
	Source  types.Source `yaml:"source"`
	Records int          `yaml:"records"`
}

// WriteSnapshot saves the merged set for keyword as YAML at path.
func WriteSnapshot(path, keyword string, set *RecordSet, counts []SourceCount) error {
	snap := Snapshot{
		Keyword:   keyword,
		Timestamp: time.Now().UTC(),
		Records:   set.Records(),
	}
	for _, c := range counts {
		snap.Sources = append(snap.Sources, SnapshotSource{Source: c.Source, Records: c.Records})
	}

	data, err := yaml.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a previously saved snapshot from disk.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// RecordSet rebuilds the ordered set from the stored records.
func (s *Snapshot) RecordSet() *RecordSet {
	set := NewRecordSet()
	for _, rec := range s.Records {
		set.Add(rec)
	}
	return set
}
