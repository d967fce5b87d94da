// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/internal/acquire"
	"github.com/pdiddy/article-harvester/internal/convert"
	"github.com/pdiddy/article-harvester/internal/ident"
	"github.com/pdiddy/article-harvester/internal/observability"
	"github.com/pdiddy/article-harvester/pkg/types"
)

var titleFlattener = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Process handles one merged record: skip if already seen, otherwise run
// the filters and downloads and append one inventory row. Only local I/O
// errors and cancellation are returned; the record is not marked seen
// when the row could not be written.
func (p *Pipeline) Process(ctx context.Context, keyword string, rec types.ArticleRecord, sum *Summary) error {
	id := rec.NormalizedID
	if id == "" {
		id = ident.Normalize(rec.Identifier)
		rec.NormalizedID = id
	}
	if id == "" {
		return nil
	}
	if p.Seen.Has(id) {
		sum.Skipped++
		p.Metrics.Article(observability.OutcomeSkipped)
		return nil
	}

	logger := observability.WithArticle(*zerolog.Ctx(ctx), id, string(rec.Source))
	ctx = logger.WithContext(ctx)

	row := types.InventoryRow{
		DOI:               id,
		Title:             titleFlattener.Replace(rec.Title),
		Source:            rec.Source,
		Keyword:           keyword,
		AbstractAvailable: rec.HasAbstract(),
		AbstractMatched:   p.AbstractFilter == nil,
	}
	rep := newReport(id, rec.Source)

	outcome, err := p.evaluate(ctx, rec, &row, rep)
	if err != nil {
		return err
	}
	// An interrupted record gets no row, so the next run retries it.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.Store.Append(row); err != nil {
		return fmt.Errorf("%w: appending inventory row for %s: %v", acquire.ErrLocalIO, id, err)
	}
	p.Seen.Add(id)
	sum.Processed++
	switch outcome {
	case observability.OutcomeDownloaded:
		sum.Downloaded++
	case observability.OutcomeFiltered:
		sum.Filtered++
	case observability.OutcomeFailed:
		sum.Failed++
	}
	p.Metrics.Article(outcome)
	logger.Debug().Str("outcome", outcome).Str("notes", row.NotesString()).Msg("record processed")

	rep.result(outcome, row)
	rep.write(p.Out, p.Config.Verbose)
	return nil
}

// evaluate fills row from the filter and download stages and returns the
// article outcome.
func (p *Pipeline) evaluate(ctx context.Context, rec types.ArticleRecord, row *types.InventoryRow, rep *report) (string, error) {
	if p.AbstractFilter != nil {
		if !p.AbstractFilter.Match(rec) {
			row.AddNote(types.NoteSkipAbstractFilter)
			if row.AbstractAvailable {
				rep.add("abstract", "no pattern match, download skipped")
			} else {
				rep.add("abstract", "no abstract available, download skipped")
			}
			return observability.OutcomeFiltered, nil
		}
		row.AbstractMatched = true
		rep.add("abstract", "matched")
	}

	pdf, err := p.Downloader.DownloadPDF(ctx, rec)
	if err != nil {
		return "", err
	}
	rep.add("pdf", pdf.String())
	xml, err := p.Downloader.DownloadXML(ctx, rec)
	if err != nil {
		return "", err
	}
	rep.add("xml", xml.String())

	if err := ctx.Err(); err != nil {
		return "", err
	}

	row.PDFDownloaded = pdf.Success()
	row.XMLDownloaded = xml.Succeeded()
	if !row.PDFDownloaded && !row.XMLDownloaded {
		row.AddNote(types.NoteDownloadFailed)
		return observability.OutcomeFailed, nil
	}

	if p.FullTextFilter == nil {
		return observability.OutcomeDownloaded, nil
	}
	return p.filterFullText(ctx, row, rep)
}

// filterFullText extracts and filters the downloaded artifacts. A record
// that fails has every artifact removed and its download flags reset.
func (p *Pipeline) filterFullText(ctx context.Context, row *types.InventoryRow, rep *report) (string, error) {
	var pdfPath, xmlPath string
	if row.PDFDownloaded {
		pdfPath = p.Layout.PDFPath(row.DOI)
	}
	if row.XMLDownloaded {
		xmlPath = p.Layout.XMLPath(row.DOI)
	}
	text := p.Extractor.FullText(ctx, pdfPath, xmlPath)
	res := p.FullTextFilter.Evaluate(text)
	row.FullTextMatched = res.Pass
	row.NamesFound = res.NamesFound
	row.UnitsFound = res.UnitsFound

	if res.Pass {
		if err := convert.SaveText(p.Layout.TextPath(row.DOI), text); err != nil {
			return "", fmt.Errorf("%w: %v", acquire.ErrLocalIO, err)
		}
		rep.add("fulltext", fmt.Sprintf("passed (names=%t, units=%t)", res.NamesFound, res.UnitsFound))
		return observability.OutcomeDownloaded, nil
	}

	if text == "" {
		row.AddNote(types.NoteFullTextEmpty)
		rep.add("fulltext", "no text could be extracted")
	} else {
		rep.add("fulltext", fmt.Sprintf("no match (pattern=%t, names=%t, units=%t)", res.Matched, res.NamesFound, res.UnitsFound))
	}
	row.AddNote(types.NoteSkipFullTextFilter)
	if err := p.Layout.RemoveArtifacts(row.DOI); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("could not remove rejected artifacts")
	}
	row.PDFDownloaded = false
	row.XMLDownloaded = false
	return observability.OutcomeFiltered, nil
}
