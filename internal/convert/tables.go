// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"

	"github.com/pdiddy/article-harvester/internal/container"
)

// TableExtractor is the optional table capability. When no backend is
// installed, NoTables stands in and every extraction is empty.
type TableExtractor interface {
	Available() bool
	Extract(ctx context.Context, pdfPath string) (string, error)
}

// DetectTables returns a TabulaExtractor when command is on PATH and
// NoTables otherwise. It is called once at startup.
func DetectTables(e container.Executor, command string) TableExtractor {
	if !container.Installed(e, command) {
		return NoTables{}
	}
	return &TabulaExtractor{Command: command, Exec: e}
}

// NoTables is the absent table capability.
type NoTables struct{}

func (NoTables) Available() bool { return false }

func (NoTables) Extract(context.Context, string) (string, error) { return "", nil }

// TabulaExtractor runs the tabula CLI over every page and returns the
// tables as tab-separated rows.
type TabulaExtractor struct {
	Command string
	Exec    container.Executor
}

func (t *TabulaExtractor) Available() bool { return true }

func (t *TabulaExtractor) Extract(ctx context.Context, pdfPath string) (string, error) {
	out, err := container.Output(ctx, t.Exec, t.Command, "--format", "TSV", "--pages", "all", pdfPath)
	if err != nil {
		return "", fmt.Errorf("extracting tables from %s: %w", pdfPath, err)
	}
	return string(out), nil
}
