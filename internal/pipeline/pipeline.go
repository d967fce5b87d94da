// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives the harvest: for every keyword it aggregates the
// search adapters, then walks the merged records in order through the
// abstract filter, the download cascade, and the full-text filter,
// appending exactly one inventory row per new identifier.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/internal/acquire"
	"github.com/pdiddy/article-harvester/internal/convert"
	"github.com/pdiddy/article-harvester/internal/filter"
	"github.com/pdiddy/article-harvester/internal/httputil"
	"github.com/pdiddy/article-harvester/internal/inventory"
	"github.com/pdiddy/article-harvester/internal/layout"
	"github.com/pdiddy/article-harvester/internal/observability"
	"github.com/pdiddy/article-harvester/internal/search"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// Downloader acquires the artifacts of one record.
type Downloader interface {
	DownloadPDF(ctx context.Context, rec types.ArticleRecord) (acquire.DownloadResult, error)
	DownloadXML(ctx context.Context, rec types.ArticleRecord) (acquire.Outcome, error)
}

// TextExtractor returns the combined normalized text of an article's
// artifacts, or "" when nothing could be extracted.
type TextExtractor interface {
	FullText(ctx context.Context, pdfPath, xmlPath string) string
}

// Pipeline holds every collaborator and the mutable state of one run.
type Pipeline struct {
	Config types.HarvestConfig
	Layout layout.Layout
	Store  inventory.Store
	Seen   *inventory.SeenSet

	Adapters   []search.Adapter
	Downloader Downloader

	// AbstractFilter is nil when the abstract stage is disabled.
	AbstractFilter *filter.AbstractFilter
	// FullTextFilter and Extractor are nil when the full-text stage is disabled.
	FullTextFilter *filter.FullTextFilter
	Extractor      TextExtractor

	// Out receives the human-readable progress report.
	Out     io.Writer
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// New builds a pipeline from cfg: it creates the output directories, opens
// and initializes the inventory, loads the seen set, and wires the search
// adapters, download engine, filters, and extractor.
func New(ctx context.Context, cfg types.HarvestConfig, out io.Writer, logger zerolog.Logger, metrics *observability.Metrics) (*Pipeline, error) {
	if err := cfg.ValidateSettings(); err != nil {
		return nil, err
	}
	l := layout.New(cfg.OutputDir)
	if err := l.Ensure(); err != nil {
		return nil, fmt.Errorf("%w: %v", acquire.ErrLocalIO, err)
	}

	store, err := inventory.Open(cfg.Inventory, l, logger)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureInitialized(); err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %v", acquire.ErrLocalIO, err)
	}

	client := httputil.NewClient(cfg.Acquisition.HTTPConfig)
	adapters, err := search.Registry(cfg.Search, client)
	if err != nil {
		store.Close()
		return nil, err
	}
	var resolver acquire.PDFResolver
	if cfg.Acquisition.OpenAlexFallback {
		resolver = &search.OpenAlexAdapter{Client: client, Email: cfg.Search.ContactEmail}
	}

	p := &Pipeline{
		Config:     cfg,
		Layout:     l,
		Store:      store,
		Seen:       store.LoadSeen(),
		Adapters:   adapters,
		Downloader: acquire.NewEngine(cfg.Acquisition, l, client, resolver, metrics, logger),
		Out:        out,
		Logger:     logger,
		Metrics:    metrics,
	}
	if err := p.buildFilters(ctx); err != nil {
		store.Close()
		return nil, err
	}
	logger.Info().
		Str("inventory", store.Location()).
		Int("seen", p.Seen.Len()).
		Int("sources", len(adapters)).
		Msg("pipeline ready")
	return p, nil
}

func (p *Pipeline) buildFilters(ctx context.Context) error {
	fc := p.Config.Filter
	if fc.AbstractEnabled {
		patterns := fc.AbstractPatterns
		if fc.AbstractPatternsFile != "" {
			extra, err := filter.LoadPatternFile(fc.AbstractPatternsFile)
			if err != nil {
				return err
			}
			patterns = append(append([]string{}, patterns...), extra...)
		}
		af, err := filter.NewAbstractFilter(patterns, fc.AbstractPolicy)
		if err != nil {
			return err
		}
		p.AbstractFilter = af
	}

	ff, err := filter.NewFullTextFilter(fc)
	if err != nil {
		return err
	}
	if ff == nil {
		return nil
	}
	ex, err := convert.NewExtractor(ctx, p.Config.Extraction, p.Logger)
	if err != nil {
		return err
	}
	p.FullTextFilter = ff
	p.Extractor = ex
	return nil
}

// Close releases the inventory.
func (p *Pipeline) Close() error {
	if p.Store == nil {
		return nil
	}
	return p.Store.Close()
}

// Summary counts what a run did.
type Summary struct {
	Keywords int
	// Records is the number of merged records seen across keywords.
	Records int
	// Processed is the number of inventory rows appended.
	Processed int
	// Skipped records were already in the inventory.
	Skipped    int
	Downloaded int
	Filtered   int
	Failed     int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d processed, %d already done, %d downloaded, %d filtered, %d failed (records: %d, keywords: %d)",
		s.Processed, s.Skipped, s.Downloaded, s.Filtered, s.Failed, s.Records, s.Keywords)
}

// Run searches every keyword and processes the merged records. It stops
// at the first local I/O error or when ctx is canceled.
func (p *Pipeline) Run(ctx context.Context, keywords []string) (Summary, error) {
	return p.run(ctx, keywords, p.searchKeyword)
}

// RunSnapshots processes each keyword's saved search snapshot instead of
// querying the adapters.
func (p *Pipeline) RunSnapshots(ctx context.Context, keywords []string) (Summary, error) {
	return p.run(ctx, keywords, p.loadSnapshot)
}

type recordSource func(ctx context.Context, keyword string) (*search.RecordSet, error)

func (p *Pipeline) run(ctx context.Context, keywords []string, source recordSource) (Summary, error) {
	var sum Summary
	for _, kw := range keywords {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		fmt.Fprintf(p.Out, "\n=== Keyword: %s ===\n", kw)
		kwCtx := observability.WithKeyword(p.Logger, kw).WithContext(ctx)
		set, err := source(kwCtx, kw)
		if err != nil {
			return sum, err
		}
		fmt.Fprintf(p.Out, "Total unique records for '%s': %d\n", kw, set.Len())
		sum.Keywords++
		sum.Records += set.Len()

		for _, rec := range set.Records() {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			if err := p.Process(kwCtx, kw, rec, &sum); err != nil {
				return sum, err
			}
		}
	}
	fmt.Fprintf(p.Out, "\nRun summary: %s\n", sum)
	fmt.Fprintf(p.Out, "Done. Summary in %s\n", p.Store.Location())
	return sum, nil
}

func (p *Pipeline) searchKeyword(ctx context.Context, kw string) (*search.RecordSet, error) {
	set, counts := search.Aggregate(ctx, p.Adapters, kw, p.Config.Search.PerSourceLimit())
	for _, c := range counts {
		p.Metrics.SearchReturned(string(c.Source), c.Records)
		if c.Records == 0 {
			p.Metrics.SearchFailed(string(c.Source))
		}
	}
	if p.Config.Search.Snapshot {
		if err := search.WriteSnapshot(p.Layout.SnapshotPath(kw), kw, set, counts); err != nil {
			return nil, fmt.Errorf("%w: %v", acquire.ErrLocalIO, err)
		}
	}
	return set, nil
}

func (p *Pipeline) loadSnapshot(_ context.Context, kw string) (*search.RecordSet, error) {
	snap, err := search.ReadSnapshot(p.Layout.SnapshotPath(kw))
	if err != nil {
		return nil, fmt.Errorf("keyword %q: %w", kw, err)
	}
	return snap.RecordSet(), nil
}
