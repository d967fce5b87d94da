// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns downloaded artifacts into normalized plain text
// with pluggable backends: pdftotext or the markitdown container for PDFs,
// an XPath walk for XML, and an optional table extractor detected at
// startup. Extraction never fails the caller; a backend error yields "".
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/internal/container"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// Format is the artifact type passed to ExtractText.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatXML Format = "xml"
)

// Converter transforms an artifact file into text. Different backends
// (pdftotext, markitdown, XML) implement this interface.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// Extractor is the text extraction adapter used by the full-text filter.
type Extractor struct {
	PDF    Converter
	XML    Converter
	Tables TableExtractor
	Logger zerolog.Logger
}

// NewExtractor builds the configured PDF backend, the XML converter, and
// the table capability. Only a misconfigured PDF backend is an error.
func NewExtractor(ctx context.Context, cfg types.ExtractionConfig, logger zerolog.Logger) (*Extractor, error) {
	e := container.OSExecutor{}
	var pdf Converter
	switch cfg.PDFBackend {
	case types.BackendPdftotext, "":
		pdf = &PdftotextConverter{Exec: e}
	case types.BackendMarkitdown:
		rt, err := container.DetectRuntimeWith(ctx, e)
		if err != nil {
			return nil, err
		}
		md, err := NewMarkitdownConverter(ctx, rt)
		if err != nil {
			return nil, err
		}
		pdf = md
	default:
		return nil, fmt.Errorf("unknown PDF backend %q", cfg.PDFBackend)
	}

	tables := DetectTables(e, cfg.TableCommand)
	logger.Debug().Str("pdf_backend", string(cfg.PDFBackend)).Bool("tables", tables.Available()).Msg("text extraction ready")
	return &Extractor{PDF: pdf, XML: XMLConverter{}, Tables: tables, Logger: logger}, nil
}

// ExtractText returns the normalized text of the artifact, or "" when the
// backend fails.
func (e *Extractor) ExtractText(ctx context.Context, path string, f Format) string {
	var c Converter
	switch f {
	case FormatPDF:
		c = e.PDF
	case FormatXML:
		c = e.XML
	}
	if c == nil {
		return ""
	}
	text, err := c.Convert(ctx, path)
	if err != nil {
		e.Logger.Debug().Err(err).Str("path", path).Msg("text extraction failed")
		return ""
	}
	return NormalizeSpaces(text)
}

// TablesAvailable reports whether a table extractor was detected.
func (e *Extractor) TablesAvailable() bool {
	return e.Tables != nil && e.Tables.Available()
}

// ExtractTables returns the normalized text of every table in the PDF, or
// "" when no extractor is installed or it fails.
func (e *Extractor) ExtractTables(ctx context.Context, path string) string {
	if !e.TablesAvailable() {
		return ""
	}
	text, err := e.Tables.Extract(ctx, path)
	if err != nil {
		e.Logger.Debug().Err(err).Str("path", path).Msg("table extraction failed")
		return ""
	}
	return NormalizeSpaces(text)
}

// FullText combines the PDF text, the PDF table text, and the XML text of
// one article. Empty paths are skipped. The result is trimmed.
func (e *Extractor) FullText(ctx context.Context, pdfPath, xmlPath string) string {
	var parts []string
	if pdfPath != "" {
		parts = append(parts, e.ExtractText(ctx, pdfPath, FormatPDF), e.ExtractTables(ctx, pdfPath))
	}
	if xmlPath != "" {
		parts = append(parts, e.ExtractText(ctx, xmlPath, FormatXML))
	}
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return NormalizeSpaces(strings.Join(kept, "\n\n"))
}

// SaveText writes text to path, creating its directory.
func SaveText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating text directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing text %s: %w", path, err)
	}
	return nil
}
