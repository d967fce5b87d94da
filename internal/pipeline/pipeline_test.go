// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/article-harvester/internal/acquire"
	"github.com/pdiddy/article-harvester/internal/filter"
	"github.com/pdiddy/article-harvester/internal/httputil"
	"github.com/pdiddy/article-harvester/internal/inventory"
	"github.com/pdiddy/article-harvester/internal/layout"
	"github.com/pdiddy/article-harvester/internal/observability"
	"github.com/pdiddy/article-harvester/internal/search"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// --- stubs ---

type stubAdapter struct {
	name    types.Source
	records []types.ArticleRecord
	calls   int
}

func (s *stubAdapter) Name() types.Source { return s.name }

func (s *stubAdapter) Search(context.Context, []string, int) *search.RecordSet {
	s.calls++
	set := search.NewRecordSet()
	for _, r := range s.records {
		set.Add(r)
	}
	return set
}

// stubDownloader writes artifacts for ids listed in pdf and xml.
type stubDownloader struct {
	layout layout.Layout
	pdf    map[string]bool
	xml    map[string]bool
	err    error
	calls  []string
}

func (d *stubDownloader) DownloadPDF(_ context.Context, rec types.ArticleRecord) (acquire.DownloadResult, error) {
	d.calls = append(d.calls, rec.NormalizedID)
	if d.err != nil {
		return acquire.DownloadResult{}, d.err
	}
	o := acquire.Outcome{Strategy: "direct", Status: acquire.StatusFailed, Message: "HTTP 404 Not Found"}
	if d.pdf[rec.NormalizedID] {
		if err := os.WriteFile(d.layout.PDFPath(rec.NormalizedID), []byte("%PDF-1.4"), 0o644); err != nil {
			return acquire.DownloadResult{}, err
		}
		o = acquire.Outcome{Strategy: "direct", Status: acquire.StatusSucceeded, Message: "downloaded from direct link"}
	}
	return acquire.DownloadResult{Outcomes: []acquire.Outcome{o}}, nil
}

func (d *stubDownloader) DownloadXML(_ context.Context, rec types.ArticleRecord) (acquire.Outcome, error) {
	if d.xml[rec.NormalizedID] {
		if err := os.WriteFile(d.layout.XMLPath(rec.NormalizedID), []byte("<article/>"), 0o644); err != nil {
			return acquire.Outcome{}, err
		}
		return acquire.Outcome{Strategy: "direct", Status: acquire.StatusSucceeded, Message: "downloaded"}, nil
	}
	return acquire.Outcome{Strategy: "direct", Status: acquire.StatusSkipped, Message: "no direct link provided"}, nil
}

type stubExtractor struct{ text string }

func (e stubExtractor) FullText(context.Context, string, string) string { return e.text }

// memStore is an in-memory inventory.
type memStore struct {
	rows []types.InventoryRow
	err  error
}

func (m *memStore) EnsureInitialized() error { return nil }

func (m *memStore) LoadSeen() *inventory.SeenSet {
	s := inventory.NewSeenSet()
	for _, r := range m.rows {
		s.Add(r.DOI)
	}
	return s
}

func (m *memStore) Append(row types.InventoryRow) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *memStore) Location() string { return "memory" }
func (m *memStore) Close() error     { return nil }

// --- helpers ---

func art(id, title, abstract string) types.ArticleRecord {
	return types.ArticleRecord{Identifier: id, Title: title, Abstract: abstract, Source: types.SourceOpenAlex}
}

type fixture struct {
	p     *Pipeline
	store *memStore
	dl    *stubDownloader
	out   *bytes.Buffer
}

func newFixture(t *testing.T, records ...types.ArticleRecord) *fixture {
	t.Helper()
	l := layout.New(t.TempDir())
	require.NoError(t, l.Ensure())
	store := &memStore{}
	dl := &stubDownloader{layout: l, pdf: map[string]bool{}, xml: map[string]bool{}}
	out := &bytes.Buffer{}
	cfg := types.DefaultHarvestConfig()
	cfg.OutputDir = l.Root
	p := &Pipeline{
		Config:     cfg,
		Layout:     l,
		Store:      store,
		Seen:       store.LoadSeen(),
		Adapters:   []search.Adapter{&stubAdapter{name: types.SourceOpenAlex, records: records}},
		Downloader: dl,
		Out:        out,
		Logger:     zerolog.Nop(),
		Metrics:    observability.NewMetrics("test"),
	}
	return &fixture{p: p, store: store, dl: dl, out: out}
}

func (f *fixture) withFullText(t *testing.T, text string, cfg types.FilterConfig) {
	t.Helper()
	ff, err := filter.NewFullTextFilter(cfg)
	require.NoError(t, err)
	f.p.FullTextFilter = ff
	f.p.Extractor = stubExtractor{text: text}
}

func ids(rows []types.InventoryRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.DOI
	}
	return out
}

// --- tests ---

func TestRun_RowsFollowMergeOrder(t *testing.T) {
	f := newFixture(t,
		art("https://doi.org/10.1/C", "c", "x"),
		art("10.1/a", "a", "x"),
		art("arxiv:2301.00001", "b", "x"),
	)
	f.dl.pdf["10.1/a"] = true

	sum, err := f.p.Run(context.Background(), []string{"radiolysis"})
	require.NoError(t, err)

	assert.Equal(t, []string{"10.1/c", "10.1/a", "arxiv:2301.00001"}, ids(f.store.rows))
	assert.Equal(t, f.dl.calls, ids(f.store.rows))
	assert.Equal(t, Summary{Keywords: 1, Records: 3, Processed: 3, Downloaded: 1, Failed: 2}, sum)

	out := f.out.String()
	assert.Contains(t, out, "=== Keyword: radiolysis ===")
	assert.Contains(t, out, "Total unique records for 'radiolysis': 3")
	assert.Contains(t, out, "Done. Summary in memory")
}

func TestRun_SecondRunAddsNothing(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"), art("10.1/b", "b", "x"))
	_, err := f.p.Run(context.Background(), []string{"kw"})
	require.NoError(t, err)
	require.Len(t, f.store.rows, 2)

	// A fresh pipeline resumes from what the store holds.
	f.p.Seen = f.store.LoadSeen()
	f.dl.calls = nil
	sum, err := f.p.Run(context.Background(), []string{"kw"})
	require.NoError(t, err)
	assert.Len(t, f.store.rows, 2)
	assert.Empty(t, f.dl.calls)
	assert.Equal(t, 2, sum.Skipped)
	assert.Zero(t, sum.Processed)
}

func TestRun_ResumesFromCSVInventory(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"), art("10.1/b", "b", "x"))
	csv := inventory.NewCSVStore(f.p.Layout.InventoryCSV(), zerolog.Nop())
	require.NoError(t, csv.EnsureInitialized())
	f.p.Store = csv
	f.p.Seen = csv.LoadSeen()

	_, err := f.p.Run(context.Background(), []string{"kw"})
	require.NoError(t, err)

	reopened := inventory.NewCSVStore(f.p.Layout.InventoryCSV(), zerolog.Nop())
	f.p.Store = reopened
	f.p.Seen = reopened.LoadSeen()
	sum, err := f.p.Run(context.Background(), []string{"kw", "other"})
	require.NoError(t, err)
	assert.Zero(t, sum.Processed)
	assert.Equal(t, 4, sum.Skipped)
}

func TestRun_SameIDAcrossKeywordsProcessedOnce(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"))
	sum, err := f.p.Run(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, f.store.rows, 1)
	assert.Equal(t, "one", f.store.rows[0].Keyword)
	assert.Equal(t, 1, sum.Skipped)
}

func TestProcess_AbstractFilterShortCircuits(t *testing.T) {
	f := newFixture(t,
		art("10.1/a", "Gamma radiolysis", "G value measured"),
		art("10.1/b", "Unrelated", "Nothing here"),
		art("10.1/c", "Gamma radiolysis", ""),
	)
	af, err := filter.NewAbstractFilter([]string{"radiolysis"}, types.PolicyAll)
	require.NoError(t, err)
	f.p.AbstractFilter = af
	f.dl.pdf["10.1/a"] = true

	sum, err := f.p.Run(context.Background(), []string{"kw"})
	require.NoError(t, err)
	assert.Equal(t, []string{"10.1/a"}, f.dl.calls, "filtered records are never downloaded")
	assert.Equal(t, 2, sum.Filtered)

	rows := f.store.rows
	require.Len(t, rows, 3)
	assert.True(t, rows[0].AbstractMatched)
	assert.True(t, rows[0].PDFDownloaded)

	assert.False(t, rows[1].AbstractMatched)
	assert.True(t, rows[1].AbstractAvailable)
	assert.Equal(t, "skip:abstract_filter", rows[1].NotesString())
	assert.False(t, rows[1].PDFDownloaded)

	assert.False(t, rows[2].AbstractAvailable)
	assert.Equal(t, "skip:abstract_filter", rows[2].NotesString())
}

func TestProcess_DownloadFailedNote(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"))
	_, err := f.p.Run(context.Background(), []string{"kw"})
	require.NoError(t, err)
	require.Len(t, f.store.rows, 1)
	assert.Equal(t, "download_failed", f.store.rows[0].NotesString())
	assert.True(t, f.store.rows[0].AbstractMatched, "no abstract filter means matched")
}

func TestProcess_FullTextRejectRollsBack(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"))
	f.dl.pdf["10.1/a"] = true
	f.dl.xml["10.1/a"] = true
	f.withFullText(t, "nothing relevant", types.FilterConfig{FullText: types.RequireAny, FullTextPatterns: []string{"radiolysis"}})
	require.NoError(t, os.WriteFile(f.p.Layout.TextPath("10.1/a"), []byte("stale"), 0o644))

	sum, err := f.p.Run(context.Background(), []string{"kw"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Filtered)

	row := f.store.rows[0]
	assert.False(t, row.PDFDownloaded)
	assert.False(t, row.XMLDownloaded)
	assert.False(t, row.FullTextMatched)
	assert.Equal(t, "skip:fulltext_filter", row.NotesString())
	for _, p := range []string{f.p.Layout.PDFPath("10.1/a"), f.p.Layout.XMLPath("10.1/a"), f.p.Layout.TextPath("10.1/a")} {
		assert.NoFileExists(t, p)
	}
}

func TestProcess_FullTextPassSavesText(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"))
	f.dl.pdf["10.1/a"] = true
	f.withFullText(t, "G value 0.45 molecules/100 eV", types.FilterConfig{
		FullText:      types.RequireUnits,
		PropertyUnits: []string{"molecules/100 eV"},
	})

	_, err := f.p.Run(context.Background(), []string{"kw"})
	require.NoError(t, err)

	row := f.store.rows[0]
	assert.True(t, row.PDFDownloaded)
	assert.True(t, row.FullTextMatched)
	assert.True(t, row.UnitsFound)
	assert.False(t, row.NamesFound)
	assert.Empty(t, row.Notes)

	data, err := os.ReadFile(f.p.Layout.TextPath("10.1/a"))
	require.NoError(t, err)
	assert.Equal(t, "G value 0.45 molecules/100 eV", string(data))
}

func TestProcess_EmptyFullTextIsRejected(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"))
	f.dl.pdf["10.1/a"] = true
	f.withFullText(t, "", types.FilterConfig{FullText: types.RequireAny})

	_, err := f.p.Run(context.Background(), []string{"kw"})
	require.NoError(t, err)
	row := f.store.rows[0]
	assert.Equal(t, "fulltext:empty,skip:fulltext_filter", row.NotesString())
	assert.False(t, row.PDFDownloaded)
	assert.NoFileExists(t, f.p.Layout.PDFPath("10.1/a"))
}

func TestProcess_FullTextSkippedWhenNothingDownloaded(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"))
	f.withFullText(t, "radiolysis", types.FilterConfig{FullText: types.RequireAny})

	_, err := f.p.Run(context.Background(), []string{"kw"})
	require.NoError(t, err)
	assert.Equal(t, "download_failed", f.store.rows[0].NotesString())
}

func TestRun_LocalIOErrorAborts(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"), art("10.1/b", "b", "x"))
	f.dl.err = acquire.ErrLocalIO

	_, err := f.p.Run(context.Background(), []string{"kw"})
	assert.ErrorIs(t, err, acquire.ErrLocalIO)
	assert.Empty(t, f.store.rows)
	assert.Equal(t, []string{"10.1/a"}, f.dl.calls)
	assert.False(t, f.p.Seen.Has("10.1/a"), "an unrecorded id is retried next run")
}

func TestRun_AppendFailureAborts(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"))
	f.store.err = errors.New("disk full")

	_, err := f.p.Run(context.Background(), []string{"kw"})
	assert.ErrorIs(t, err, acquire.ErrLocalIO)
	assert.False(t, f.p.Seen.Has("10.1/a"))
}

func TestRun_CanceledContextStops(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.p.Run(ctx, []string{"kw"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.rows)
}

func TestRun_SnapshotAndReplay(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"), art("10.1/b", "b", "x"))
	f.p.Config.Search.Snapshot = true
	_, err := f.p.Run(context.Background(), []string{"gamma rays"})
	require.NoError(t, err)
	assert.FileExists(t, f.p.Layout.SnapshotPath("gamma rays"))

	adapter := f.p.Adapters[0].(*stubAdapter)
	f.store.rows = nil
	f.p.Seen = inventory.NewSeenSet()
	sum, err := f.p.RunSnapshots(context.Background(), []string{"gamma rays"})
	require.NoError(t, err)
	assert.Equal(t, 1, adapter.calls, "replay does not search")
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, []string{"10.1/a", "10.1/b"}, ids(f.store.rows))
}

func TestRunSnapshots_MissingSnapshot(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.RunSnapshots(context.Background(), []string{"never searched"})
	assert.Error(t, err)
}

func TestProcess_VerboseReport(t *testing.T) {
	f := newFixture(t, art("10.1/a", "a", "x"))
	f.p.Config.Verbose = true
	_, err := f.p.Run(context.Background(), []string{"kw"})
	require.NoError(t, err)

	out := f.out.String()
	assert.Contains(t, out, "failed: 10.1/a [openalex] (download_failed)")
	assert.Contains(t, out, "  pdf:     direct: failed (HTTP 404 Not Found)")
	assert.Contains(t, out, "  xml:     direct: skipped (no direct link provided)")
}

func TestProcess_TitleIsFlattened(t *testing.T) {
	f := newFixture(t, art("10.1/a", "Line one\nline two\r\nend", "x"))
	_, err := f.p.Run(context.Background(), []string{"kw"})
	require.NoError(t, err)
	assert.Equal(t, "Line one line two end", f.store.rows[0].Title)
}

func TestRetryFailed(t *testing.T) {
	f := newFixture(t)
	failed := inventory.NewLineLog(f.p.Layout.FailedLog())
	for _, id := range []string{"10.1/a", "10.1/b", "10.1/a", "10.1/c"} {
		require.NoError(t, failed.Append(id))
	}
	require.NoError(t, inventory.NewLineLog(f.p.Layout.PDFLog()).Append("10.1/c"))
	f.dl.pdf["10.1/b"] = true

	sum, err := f.p.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RetrySummary{Candidates: 2, Recovered: 1, StillFailed: 1}, sum)
	assert.Equal(t, []string{"10.1/a", "10.1/b"}, f.dl.calls)
	assert.Empty(t, f.store.rows, "retry never touches the inventory")
	assert.Contains(t, f.out.String(), "recovered: 10.1/b")
}

func TestNew_WiresFromConfig(t *testing.T) {
	dir := t.TempDir()
	patterns := dir + "/patterns.yaml"
	require.NoError(t, os.WriteFile(patterns, []byte("- pulse radiolysis\n"), 0o644))

	cfg := types.DefaultHarvestConfig()
	cfg.Keywords = []string{"radiolysis"}
	cfg.OutputDir = dir + "/data"
	cfg.Inventory = types.InventorySQLite
	cfg.Search.Sources = []string{"arxiv", "crossref"}
	cfg.Filter.AbstractEnabled = true
	cfg.Filter.AbstractPatterns = []string{"gamma"}
	cfg.Filter.AbstractPatternsFile = patterns
	cfg.Filter.FullText = types.RequireAny

	p, err := New(context.Background(), cfg, &bytes.Buffer{}, zerolog.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	assert.Equal(t, p.Layout.InventoryDB(), p.Store.Location())
	require.Len(t, p.Adapters, 2)
	assert.Equal(t, types.SourceArxiv, p.Adapters[0].Name())
	require.NotNil(t, p.AbstractFilter)
	assert.Len(t, p.AbstractFilter.Patterns, 2)
	assert.NotNil(t, p.FullTextFilter)
	assert.NotNil(t, p.Extractor)
	assert.DirExists(t, p.Layout.PDFDir())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := types.DefaultHarvestConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Inventory = "parquet"
	_, err := New(context.Background(), cfg, &bytes.Buffer{}, zerolog.Nop(), nil)
	assert.ErrorContains(t, err, "unknown inventory backend")
}

func TestRun_InterruptedDownloadIsRetriedNextRun(t *testing.T) {
	var serve atomic.Bool
	started := make(chan struct{})
	var once sync.Once
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if serve.Load() {
			w.Write([]byte("%PDF-1.4 body"))
			return
		}
		once.Do(func() { close(started) })
		<-r.Context().Done()
	}))
	defer ts.Close()

	rec := art("10.1/a", "a", "x")
	rec.PDFURL = ts.URL + "/a.pdf"
	f := newFixture(t, rec)
	acq := f.p.Config.Acquisition
	acq.OAOnly = true
	acq.RequestDelay = 0
	f.p.Downloader = acquire.NewEngine(acq, f.p.Layout, httputil.NewClient(acq.HTTPConfig), nil, f.p.Metrics, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-started
		cancel()
	}()

	_, err := f.p.Run(ctx, []string{"kw"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.rows)
	assert.False(t, f.p.Seen.Has("10.1/a"))
	failed, err := inventory.NewLineLog(f.p.Layout.FailedLog()).Lines()
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.NotContains(t, f.out.String(), "Done.")

	serve.Store(true)
	sum, err := f.p.Run(context.Background(), []string{"kw"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.Downloaded)
	require.Len(t, f.store.rows, 1)
	assert.True(t, f.store.rows[0].PDFDownloaded)
	assert.Empty(t, f.store.rows[0].Notes)
}

func TestProcess_CanceledAfterDownloadWritesNoRow(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.p.Downloader = &cancelingDownloader{stubDownloader: f.dl, cancel: cancel}

	var sum Summary
	err := f.p.Process(ctx, "kw", art("10.1/a", "a", "x"), &sum)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.rows)
	assert.False(t, f.p.Seen.Has("10.1/a"))
	assert.Zero(t, sum.Processed)
}

// cancelingDownloader cancels the run once the PDF cascade has finished.
type cancelingDownloader struct {
	*stubDownloader
	cancel context.CancelFunc
}

func (d *cancelingDownloader) DownloadPDF(ctx context.Context, rec types.ArticleRecord) (acquire.DownloadResult, error) {
	res, err := d.stubDownloader.DownloadPDF(ctx, rec)
	d.cancel()
	return res, err
}
