package types

import (
	"fmt"
	"regexp"
	"time"
)

// UnlimitedRecords is the per-source bound used when none is configured.
const UnlimitedRecords = 1_000_000

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// RequestDelay is the minimum spacing enforced before every outbound request.
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay" mapstructure:"request_delay"`
}

// SearchConfig holds settings for the search stage.
type SearchConfig struct {
	// Sources lists the adapters to query, in order. Empty means all.
	Sources []string `json:"sources" yaml:"sources" mapstructure:"sources"`

	// MaxPerSource bounds the records each adapter returns per keyword.
	// Zero means no limit (UnlimitedRecords).
	MaxPerSource int `json:"max_per_source" yaml:"max_per_source" mapstructure:"max_per_source"`

	// ElsevierAPIKey enables ScienceDirect search and Elsevier content URLs.
	ElsevierAPIKey string `json:"elsevier_api_key,omitempty" yaml:"elsevier_api_key,omitempty" mapstructure:"elsevier_api_key"`

	// ContactEmail is sent as mailto for polite-pool access (OpenAlex, Crossref).
	ContactEmail string `json:"contact_email,omitempty" yaml:"contact_email,omitempty" mapstructure:"contact_email"`

	// Snapshot writes the merged records of each keyword to searches/<keyword>.yaml.
	Snapshot bool `json:"snapshot" yaml:"snapshot" mapstructure:"snapshot"`
}

// PerSourceLimit returns MaxPerSource, or UnlimitedRecords when unset.
func (c SearchConfig) PerSourceLimit() int {
	if c.MaxPerSource <= 0 {
		return UnlimitedRecords
	}
	return c.MaxPerSource
}

// MirrorConfig controls the mirror strategy and its rate-limit protocol.
type MirrorConfig struct {
	// Domain is the mirror top-level domain (e.g. "bz" for libgen.bz).
	Domain string `json:"domain" yaml:"domain" mapstructure:"domain"`

	// MinDelay is the minimum spacing between mirror attempts and the first backoff delay.
	MinDelay time.Duration `json:"min_delay" yaml:"min_delay" mapstructure:"min_delay"`

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`

	// BackoffFactor multiplies the delay after each rate-limit signal.
	BackoffFactor float64 `json:"backoff_factor" yaml:"backoff_factor" mapstructure:"backoff_factor"`

	// BackoffIncrement is added to the delay after multiplying.
	BackoffIncrement time.Duration `json:"backoff_increment" yaml:"backoff_increment" mapstructure:"backoff_increment"`

	// MaxAttempts bounds the attempts of one lookup or fetch step.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// RateLimitSignals are case-insensitive substrings that mark a throttled response.
	RateLimitSignals []string `json:"rate_limit_signals" yaml:"rate_limit_signals" mapstructure:"rate_limit_signals"`
}

// AcquisitionConfig holds settings for the download stage.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// OAOnly disables every non-primary (mirror) strategy.
	OAOnly bool `json:"oa_only" yaml:"oa_only" mapstructure:"oa_only"`

	// OpenAlexFallback inserts an OpenAlex open-access lookup between the
	// direct link and the mirror.
	OpenAlexFallback bool `json:"openalex_fallback" yaml:"openalex_fallback" mapstructure:"openalex_fallback"`

	// ElsevierAPIKey is sent as X-ELS-APIKey to Elsevier content hosts.
	ElsevierAPIKey string `json:"elsevier_api_key,omitempty" yaml:"elsevier_api_key,omitempty" mapstructure:"elsevier_api_key"`

	Mirror MirrorConfig `json:"mirror" yaml:"mirror" mapstructure:"mirror"`
}

// AbstractPolicy selects how abstract patterns combine.
type AbstractPolicy string

const (
	PolicyAll AbstractPolicy = "all"
	PolicyAny AbstractPolicy = "any"
)

// FullTextRequirement selects which full-text evidence a record must show.
type FullTextRequirement string

const (
	RequireAny        FullTextRequirement = "any"
	RequireNames      FullTextRequirement = "names"
	RequireUnits      FullTextRequirement = "units"
	RequireNamesUnits FullTextRequirement = "names_units"
)

// FilterConfig holds the abstract and full-text filter settings.
type FilterConfig struct {
	AbstractEnabled  bool           `json:"abstract_enabled" yaml:"abstract_enabled" mapstructure:"abstract_enabled"`
	AbstractPatterns []string       `json:"abstract_patterns" yaml:"abstract_patterns" mapstructure:"abstract_patterns"`
	AbstractPolicy   AbstractPolicy `json:"abstract_policy" yaml:"abstract_policy" mapstructure:"abstract_policy"`

	// AbstractPatternsFile is a YAML list of extra abstract patterns.
	AbstractPatternsFile string `json:"abstract_patterns_file,omitempty" yaml:"abstract_patterns_file,omitempty" mapstructure:"abstract_patterns_file"`

	// FullText is empty when the full-text stage is disabled.
	FullText         FullTextRequirement `json:"fulltext" yaml:"fulltext" mapstructure:"fulltext"`
	FullTextPatterns []string            `json:"fulltext_patterns" yaml:"fulltext_patterns" mapstructure:"fulltext_patterns"`
	PropertyNames    []string            `json:"property_names" yaml:"property_names" mapstructure:"property_names"`
	PropertyUnits    []string            `json:"property_units" yaml:"property_units" mapstructure:"property_units"`
}

// FullTextEnabled reports whether the full-text stage runs.
func (c FilterConfig) FullTextEnabled() bool {
	return c.FullText != ""
}

// PDFBackend selects the PDF text extraction tool.
type PDFBackend string

const (
	BackendPdftotext  PDFBackend = "pdftotext"
	BackendMarkitdown PDFBackend = "markitdown"
)

// ExtractionConfig holds settings for text extraction.
type ExtractionConfig struct {
	PDFBackend PDFBackend `json:"pdf_backend" yaml:"pdf_backend" mapstructure:"pdf_backend"`

	// TableCommand is the table-extraction binary; absent from PATH means no tables.
	TableCommand string `json:"table_command" yaml:"table_command" mapstructure:"table_command"`
}

// InventoryBackend selects the inventory storage format.
type InventoryBackend string

const (
	InventoryCSV    InventoryBackend = "csv"
	InventorySQLite InventoryBackend = "sqlite"
)

// HarvestConfig is the full configuration of one pipeline run.
type HarvestConfig struct {
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"keywords"`

	// OutputDir is the base directory for artifacts, logs, and the inventory.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	Verbose bool `json:"verbose" yaml:"verbose" mapstructure:"verbose"`

	Inventory InventoryBackend `json:"inventory" yaml:"inventory" mapstructure:"inventory"`

	// MetricsFile, when set, receives Prometheus text metrics at the end of the run.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`

	Search      SearchConfig      `json:"search" yaml:"search" mapstructure:"search"`
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition" mapstructure:"acquisition"`
	Filter      FilterConfig      `json:"filter" yaml:"filter" mapstructure:"filter"`
	Extraction  ExtractionConfig  `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
}

// DefaultHarvestConfig returns the defaults every command starts from.
func DefaultHarvestConfig() HarvestConfig {
	return HarvestConfig{
		OutputDir: "data",
		Inventory: InventoryCSV,
		Acquisition: AcquisitionConfig{
			HTTPConfig: HTTPConfig{
				Timeout:      30 * time.Second,
				UserAgent:    "article-harvester/0.1",
				RequestDelay: 500 * time.Millisecond,
			},
			Mirror: MirrorConfig{
				Domain:           "bz",
				MinDelay:         3100 * time.Millisecond,
				MaxDelay:         60 * time.Second,
				BackoffFactor:    2,
				BackoffIncrement: time.Second,
				MaxAttempts:      5,
				RateLimitSignals: []string{"you have downloaded too much files"},
			},
		},
		Filter: FilterConfig{
			AbstractPolicy: PolicyAll,
		},
		Extraction: ExtractionConfig{
			PDFBackend:   BackendPdftotext,
			TableCommand: "tabula",
		},
	}
}

// Validate reports configuration errors that would make a harvest run
// meaningless, including an empty keyword list.
func (c HarvestConfig) Validate() error {
	if len(c.Keywords) == 0 {
		return fmt.Errorf("no keywords: provide at least one --keyword")
	}
	return c.ValidateSettings()
}

// ValidateSettings checks everything but the keyword list. Commands that
// work from earlier output, such as retry-failed, need no keywords.
func (c HarvestConfig) ValidateSettings() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is empty")
	}
	for _, s := range c.Search.Sources {
		if _, err := ParseSource(s); err != nil {
			return err
		}
	}
	switch c.Inventory {
	case InventoryCSV, InventorySQLite:
	default:
		return fmt.Errorf("unknown inventory backend %q", c.Inventory)
	}
	switch c.Filter.AbstractPolicy {
	case PolicyAll, PolicyAny:
	default:
		return fmt.Errorf("unknown abstract policy %q", c.Filter.AbstractPolicy)
	}
	switch c.Filter.FullText {
	case "", RequireAny, RequireNames, RequireUnits, RequireNamesUnits:
	default:
		return fmt.Errorf("unknown full-text filter mode %q", c.Filter.FullText)
	}
	switch c.Extraction.PDFBackend {
	case BackendPdftotext, BackendMarkitdown:
	default:
		return fmt.Errorf("unknown PDF backend %q", c.Extraction.PDFBackend)
	}
	for _, p := range append(append([]string{}, c.Filter.AbstractPatterns...), c.Filter.FullTextPatterns...) {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	if c.Acquisition.Mirror.MaxAttempts <= 0 {
		return fmt.Errorf("mirror max attempts must be positive")
	}
	return nil
}
