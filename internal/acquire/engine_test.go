// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/article-harvester/internal/inventory"
	"github.com/pdiddy/article-harvester/internal/layout"
	"github.com/pdiddy/article-harvester/internal/observability"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// stubStrategy returns a fixed status and writes a PDF on success.
type stubStrategy struct {
	name   string
	oa     bool
	status Status
	err    error
	calls  int
}

func (s *stubStrategy) Name() string     { return s.name }
func (s *stubStrategy) OpenAccess() bool { return s.oa }

func (s *stubStrategy) Attempt(_ context.Context, t Target) (Outcome, error) {
	s.calls++
	if s.err != nil {
		return Outcome{}, s.err
	}
	if s.status == StatusSucceeded {
		if err := os.WriteFile(t.Dest, []byte("%PDF-1.4"), 0o644); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{Strategy: s.name, Status: s.status, Message: s.status.String()}, nil
}

func testEngine(t *testing.T, strategies ...Strategy) *Engine {
	t.Helper()
	l := layout.New(t.TempDir())
	require.NoError(t, l.Ensure())
	return &Engine{
		Strategies: strategies,
		XML:        NewDirectXML(testFetcher(), ""),
		Layout:     l,
		PDFLog:     inventory.NewLineLog(l.PDFLog()),
		XMLLog:     inventory.NewLineLog(l.XMLLog()),
		FailedLog:  inventory.NewLineLog(l.FailedLog()),
		Metrics:    observability.NewMetrics("test"),
		Logger:     zerolog.Nop(),
	}
}

func lines(t *testing.T, log *inventory.LineLog) []string {
	t.Helper()
	got, err := log.Lines()
	require.NoError(t, err)
	return got
}

var rec = types.ArticleRecord{Identifier: "10.1/A", NormalizedID: "10.1/a", Title: "T"}

func TestEngine_StopsAtFirstSuccess(t *testing.T) {
	direct := &stubStrategy{name: "direct", oa: true, status: StatusFailed}
	oa := &stubStrategy{name: "openalex", oa: true, status: StatusSucceeded}
	mirror := &stubStrategy{name: "mirror", status: StatusSucceeded}
	e := testEngine(t, direct, oa, mirror)

	res, err := e.DownloadPDF(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, res.Success())
	require.Len(t, res.Outcomes, 3)

	assert.Equal(t, StatusFailed, res.Outcomes[0].Status)
	assert.Equal(t, StatusSucceeded, res.Outcomes[1].Status)
	assert.Equal(t, StatusSkipped, res.Outcomes[2].Status)
	assert.Equal(t, "not attempted: openalex download succeeded", res.Outcomes[2].Message)
	assert.Zero(t, mirror.calls)

	assert.Equal(t, []string{"10.1/a"}, lines(t, e.PDFLog))
	assert.Empty(t, lines(t, e.FailedLog))
	assert.FileExists(t, e.Layout.PDFPath("10.1/a"))
	assert.Equal(t, float64(1), testutil.ToFloat64(e.Metrics.StrategyOutcomes.WithLabelValues("openalex", "succeeded")))
}

func TestEngine_AllFailedGoesToFailedLog(t *testing.T) {
	e := testEngine(t,
		&stubStrategy{name: "direct", oa: true, status: StatusSkipped},
		&stubStrategy{name: "mirror", status: StatusFailed},
	)

	res, err := e.DownloadPDF(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, []string{"10.1/a"}, lines(t, e.FailedLog))
	assert.Empty(t, lines(t, e.PDFLog))
	assert.NoFileExists(t, e.Layout.PDFPath("10.1/a"))
}

func TestEngine_OpenAccessOnlySkipsMirror(t *testing.T) {
	mirror := &stubStrategy{name: "mirror", status: StatusSucceeded}
	e := testEngine(t, &stubStrategy{name: "direct", oa: true, status: StatusFailed}, mirror)
	e.OAOnly = true

	res, err := e.DownloadPDF(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, res.Success())
	o, ok := res.Outcome("mirror")
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, o.Status)
	assert.Equal(t, "skipped: open-access-only mode", o.Message)
	assert.Zero(t, mirror.calls)
}

func TestEngine_LocalIOAborts(t *testing.T) {
	mirror := &stubStrategy{name: "mirror", status: StatusSucceeded}
	e := testEngine(t, &stubStrategy{name: "direct", oa: true, err: ErrLocalIO}, mirror)

	_, err := e.DownloadPDF(context.Background(), rec)
	assert.True(t, errors.Is(err, ErrLocalIO))
	assert.Zero(t, mirror.calls)
	assert.Empty(t, lines(t, e.FailedLog))
}

func TestEngine_DownloadXML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<article><body>text</body></article>"))
	}))
	defer ts.Close()
	e := testEngine(t)

	r := rec
	r.XMLURL = ts.URL
	o, err := e.DownloadXML(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, o.Succeeded())
	assert.FileExists(t, e.Layout.XMLPath(r.NormalizedID))
	assert.Equal(t, []string{"10.1/a"}, lines(t, e.XMLLog))

	r.XMLURL = ""
	o, err = e.DownloadXML(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, o.Status)
	assert.Len(t, lines(t, e.XMLLog), 1)
}

func TestNewEngine_Cascade(t *testing.T) {
	cfg := types.DefaultHarvestConfig().Acquisition
	l := layout.New(t.TempDir())

	e := NewEngine(cfg, l, testClient(), stubResolver{}, nil, zerolog.Nop())
	assert.Equal(t, []string{"direct", "mirror"}, strategyNames(e))

	cfg.OpenAlexFallback = true
	e = NewEngine(cfg, l, testClient(), stubResolver{}, nil, zerolog.Nop())
	assert.Equal(t, []string{"direct", "openalex", "mirror"}, strategyNames(e))
}

func strategyNames(e *Engine) []string {
	names := make([]string, len(e.Strategies))
	for i, s := range e.Strategies {
		names[i] = s.Name()
	}
	return names
}

// blockingServer holds every request open until the client goes away and
// closes started on the first one.
func blockingServer(t *testing.T) (*httptest.Server, <-chan struct{}) {
	t.Helper()
	started := make(chan struct{})
	var once sync.Once
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-r.Context().Done()
	}))
	t.Cleanup(ts.Close)
	return ts, started
}

func TestEngine_CancelDuringDirectFetch(t *testing.T) {
	ts, started := blockingServer(t)
	mirror := &stubStrategy{name: "mirror", status: StatusSucceeded}
	e := testEngine(t, NewDirectPDF(testFetcher(), ""), mirror)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-started
		cancel()
	}()

	r := rec
	r.PDFURL = ts.URL + "/a.pdf"
	_, err := e.DownloadPDF(ctx, r)
	require.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, mirror.calls)
	assert.Empty(t, lines(t, e.FailedLog))
	assert.Empty(t, lines(t, e.PDFLog))
	assert.NoFileExists(t, e.Layout.PDFPath(r.NormalizedID))
}

func TestEngine_CanceledBeforeCascade(t *testing.T) {
	direct := &stubStrategy{name: "direct", oa: true, status: StatusSucceeded}
	e := testEngine(t, direct)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.DownloadPDF(ctx, rec)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, direct.calls)
	assert.Empty(t, lines(t, e.FailedLog))

	_, err = e.DownloadXML(ctx, rec)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_FailedOutcomeAfterCancelIsNotLogged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	// A strategy that reports a plain failure while the run is being canceled.
	direct := &cancelingStrategy{cancel: cancel}
	e := testEngine(t, direct)

	_, err := e.DownloadPDF(ctx, rec)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, lines(t, e.FailedLog))
}

type cancelingStrategy struct{ cancel context.CancelFunc }

func (s *cancelingStrategy) Name() string     { return "direct" }
func (s *cancelingStrategy) OpenAccess() bool { return true }

func (s *cancelingStrategy) Attempt(context.Context, Target) (Outcome, error) {
	s.cancel()
	return Outcome{Strategy: "direct", Status: StatusFailed, Message: "connection reset"}, nil
}
