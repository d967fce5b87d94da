// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// Inventory notes tags.
const (
	NoteSkipAbstractFilter = "skip:abstract_filter"
	NoteDownloadFailed     = "download_failed"
	NoteSkipFullTextFilter = "skip:fulltext_filter"
	NoteFullTextEmpty      = "fulltext:empty"
)

// InventoryColumns is the fixed column schema of the inventory, in order.
var InventoryColumns = []string{
	"doi", "title", "source", "keyword",
	"abstract_available", "abstract_matched",
	"pdf_downloaded", "xml_downloaded",
	"fulltext_matched", "names_found", "units_found",
	"notes",
}

// InventoryRow is the persisted outcome of processing one article. Rows are
// appended once and never updated.
type InventoryRow struct {
	DOI               string
	Title             string
	Source            Source
	Keyword           string
	AbstractAvailable bool
	AbstractMatched   bool
	PDFDownloaded     bool
	XMLDownloaded     bool
	FullTextMatched   bool
	NamesFound        bool
	UnitsFound        bool
	Notes             []string
}

// AddNote appends a notes tag.
func (r *InventoryRow) AddNote(tag string) {
	r.Notes = append(r.Notes, tag)
}

// NotesString joins the notes tags with commas.
func (r InventoryRow) NotesString() string {
	return strings.Join(r.Notes, ",")
}

// Values returns the row as strings in InventoryColumns order.
func (r InventoryRow) Values() []string {
	return []string{
		r.DOI, r.Title, string(r.Source), r.Keyword,
		FormatBool(r.AbstractAvailable), FormatBool(r.AbstractMatched),
		FormatBool(r.PDFDownloaded), FormatBool(r.XMLDownloaded),
		FormatBool(r.FullTextMatched), FormatBool(r.NamesFound), FormatBool(r.UnitsFound),
		r.NotesString(),
	}
}

// FormatBool renders a flag the way existing inventories store it.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
