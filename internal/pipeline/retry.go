// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"github.com/pdiddy/article-harvester/internal/acquire"
	"github.com/pdiddy/article-harvester/internal/inventory"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// RetrySummary counts a retry-failed run.
type RetrySummary struct {
	Candidates  int
	Recovered   int
	StillFailed int
}

// RetryFailed re-runs the PDF cascade for identifiers in the failed log
// that have not since been downloaded. Only identifiers are known, so the
// direct strategy has no link and the cascade starts at the fallbacks.
// The inventory is not touched.
func (p *Pipeline) RetryFailed(ctx context.Context) (RetrySummary, error) {
	var sum RetrySummary
	failed, err := inventory.NewLineLog(p.Layout.FailedLog()).Lines()
	if err != nil {
		return sum, fmt.Errorf("%w: %v", acquire.ErrLocalIO, err)
	}
	done, err := inventory.NewLineLog(p.Layout.PDFLog()).Lines()
	if err != nil {
		return sum, fmt.Errorf("%w: %v", acquire.ErrLocalIO, err)
	}
	skip := make(map[string]bool, len(done))
	for _, id := range done {
		skip[id] = true
	}

	ctx = p.Logger.WithContext(ctx)
	for _, id := range failed {
		if skip[id] {
			continue
		}
		skip[id] = true
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Candidates++

		res, err := p.Downloader.DownloadPDF(ctx, types.ArticleRecord{Identifier: id, NormalizedID: id})
		if err != nil {
			return sum, err
		}
		if res.Success() {
			sum.Recovered++
			fmt.Fprintf(p.Out, "recovered: %s\n", id)
		} else {
			sum.StillFailed++
			fmt.Fprintf(p.Out, "failed:  %s\n", id)
		}
		if p.Config.Verbose {
			fmt.Fprintf(p.Out, "  pdf:     %s\n", res)
		}
	}
	fmt.Fprintf(p.Out, "\nRetry summary: %d recovered, %d still failed (candidates: %d)\n",
		sum.Recovered, sum.StillFailed, sum.Candidates)
	return sum, nil
}
