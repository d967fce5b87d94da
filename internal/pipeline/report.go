// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"io"

	"github.com/pdiddy/article-harvester/pkg/types"
)

// report collects the stage messages of one record for the progress output.
type report struct {
	id      string
	source  types.Source
	stages  []stage
	outcome string
	notes   string
}

type stage struct {
	name, message string
}

func newReport(id string, source types.Source) *report {
	return &report{id: id, source: source}
}

func (r *report) add(name, message string) {
	r.stages = append(r.stages, stage{name: name, message: message})
}

func (r *report) result(outcome string, row types.InventoryRow) {
	r.outcome = outcome
	r.notes = row.NotesString()
}

// write prints one status line, followed by the per-stage block when
// verbose is set.
func (r *report) write(w io.Writer, verbose bool) {
	if r.notes != "" {
		fmt.Fprintf(w, "%s: %s [%s] (%s)\n", r.outcome, r.id, r.source, r.notes)
	} else {
		fmt.Fprintf(w, "%s: %s [%s]\n", r.outcome, r.id, r.source)
	}
	if !verbose {
		return
	}
	for _, s := range r.stages {
		fmt.Fprintf(w, "  %-8s %s\n", s.name+":", s.message)
	}
}
