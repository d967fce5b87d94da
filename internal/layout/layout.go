// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package layout derives every artifact and log path from one output directory.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/article-harvester/internal/ident"
)

const (
	pdfDir      = "pdfs"
	xmlDir      = "xmls"
	textDir     = "texts"
	searchesDir = "searches"

	inventoryCSV    = "inventory.csv"
	inventoryDB     = "inventory.db"
	pdfLogFile      = "pdf_doi.txt"
	xmlLogFile      = "xml_doi.txt"
	failedLogFile   = "doi_not_downl.txt"
	snapshotFileExt = ".yaml"
)

// Layout holds the directory structure of one output directory.
type Layout struct {
	Root string
}

// New returns the layout rooted at dir.
func New(dir string) Layout {
	return Layout{Root: dir}
}

func (l Layout) PDFDir() string      { return filepath.Join(l.Root, pdfDir) }
func (l Layout) XMLDir() string      { return filepath.Join(l.Root, xmlDir) }
func (l Layout) TextDir() string     { return filepath.Join(l.Root, textDir) }
func (l Layout) SearchesDir() string { return filepath.Join(l.Root, searchesDir) }

func (l Layout) InventoryCSV() string { return filepath.Join(l.Root, inventoryCSV) }
func (l Layout) InventoryDB() string  { return filepath.Join(l.Root, inventoryDB) }
func (l Layout) PDFLog() string       { return filepath.Join(l.Root, pdfLogFile) }
func (l Layout) XMLLog() string       { return filepath.Join(l.Root, xmlLogFile) }
func (l Layout) FailedLog() string    { return filepath.Join(l.Root, failedLogFile) }

// PDFPath returns <pdfDir>/<filename>.pdf for the identifier.
func (l Layout) PDFPath(id string) string {
	return filepath.Join(l.PDFDir(), ident.Filename(id)+".pdf")
}

// XMLPath returns <xmlDir>/<filename>.xml for the identifier.
func (l Layout) XMLPath(id string) string {
	return filepath.Join(l.XMLDir(), ident.Filename(id)+".xml")
}

// TextPath returns <textDir>/<filename>.txt for the identifier.
func (l Layout) TextPath(id string) string {
	return filepath.Join(l.TextDir(), ident.Filename(id)+".txt")
}

// SnapshotPath returns the search snapshot file for a keyword.
func (l Layout) SnapshotPath(keyword string) string {
	return filepath.Join(l.SearchesDir(), ident.Filename(keyword)+snapshotFileExt)
}

// Ensure creates the output directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Root, l.PDFDir(), l.XMLDir(), l.TextDir(), l.SearchesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// RemoveArtifacts deletes the PDF, XML, and text files of an identifier.
// Every file is attempted; the failures are joined. Missing files are not
// an error.
func (l Layout) RemoveArtifacts(id string) error {
	var errs []error
	for _, p := range []string{l.PDFPath(id), l.XMLPath(id), l.TextPath(id)} {
		if err := RemoveIfExists(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemoveIfExists deletes path, ignoring a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}
