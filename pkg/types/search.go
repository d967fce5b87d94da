// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the article-harvester pipeline:
// article records discovered by search, inventory rows persisted per processed
// article, and the typed run configuration.
package types

import (
	"fmt"
	"strings"
)

// Source identifies the bibliographic API that produced an ArticleRecord.
type Source string

const (
	SourceOpenAlex      Source = "openalex"
	SourceEuropePMC     Source = "europepmc"
	SourceCrossref      Source = "crossref"
	SourceArxiv         Source = "arxiv"
	SourceScienceDirect Source = "sciencedirect"
)

// AllSources returns every supported source in default query order.
func AllSources() []Source {
	return []Source{SourceOpenAlex, SourceEuropePMC, SourceCrossref, SourceArxiv, SourceScienceDirect}
}

// ParseSource maps a case-insensitive source name to a Source.
func ParseSource(name string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range AllSources() {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", name)
}

// ArticleRecord is one article discovered by a search adapter. Records are
// unique by NormalizedID; after aggregation they are read-only for the run.
type ArticleRecord struct {
	// Identifier is the raw source identifier (a DOI or e.g. "arxiv:2301.07041").
	Identifier string `json:"identifier" yaml:"identifier"`

	// NormalizedID is the canonical lowercase key used for dedup and file naming.
	NormalizedID string `json:"normalized_id" yaml:"normalized_id"`

	Title string `json:"title" yaml:"title"`

	// Abstract is empty when the source had none.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Source is the adapter that first reported the record.
	Source Source `json:"source" yaml:"source"`

	// PDFURL and XMLURL are direct retrieval links, empty when unknown.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
	XMLURL string `json:"xml_url,omitempty" yaml:"xml_url,omitempty"`

	// Raw keeps source-specific identifiers (e.g. "arxiv_id").
	Raw map[string]string `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// HasAbstract reports whether both title and abstract are non-empty.
func (r ArticleRecord) HasAbstract() bool {
	return strings.TrimSpace(r.Title) != "" && strings.TrimSpace(r.Abstract) != ""
}
