// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"

	"github.com/pdiddy/article-harvester/internal/container"
)

const binPdftotext = "pdftotext"

// PdftotextConverter runs the local poppler pdftotext binary.
type PdftotextConverter struct {
	Exec container.Executor
}

func (p *PdftotextConverter) Convert(ctx context.Context, path string) (string, error) {
	out, err := container.Output(ctx, p.Exec, binPdftotext, "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("converting %s: %w", path, err)
	}
	return string(out), nil
}
