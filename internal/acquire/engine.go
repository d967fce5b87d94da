// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/internal/httputil"
	"github.com/pdiddy/article-harvester/internal/inventory"
	"github.com/pdiddy/article-harvester/internal/layout"
	"github.com/pdiddy/article-harvester/internal/observability"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// Engine runs the PDF cascade and the XML fetch for one article at a time
// and keeps the side-channel logs of successes and total failures.
type Engine struct {
	// Strategies are tried in order until one succeeds.
	Strategies []Strategy
	// XML fetches the XML full text from the record's link.
	XML Strategy
	// OAOnly skips every strategy that is not open access.
	OAOnly bool

	Layout    layout.Layout
	PDFLog    *inventory.LineLog
	XMLLog    *inventory.LineLog
	FailedLog *inventory.LineLog

	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// NewEngine wires the default cascade: direct link, the optional OpenAlex
// open-access lookup, then the mirror. resolver may be nil when the
// OpenAlex fallback is disabled.
func NewEngine(cfg types.AcquisitionConfig, l layout.Layout, client *httputil.Client, resolver PDFResolver, metrics *observability.Metrics, logger zerolog.Logger) *Engine {
	fetcher := &Fetcher{Client: client}
	strategies := []Strategy{NewDirectPDF(fetcher, cfg.ElsevierAPIKey)}
	if cfg.OpenAlexFallback && resolver != nil {
		strategies = append(strategies, &OpenAlexStrategy{Resolver: resolver, Fetcher: fetcher})
	}
	pacer := NewPacer(cfg.Mirror.MinDelay)
	strategies = append(strategies, NewMirrorStrategy(cfg.Mirror, client, fetcher, pacer, metrics))

	return &Engine{
		Strategies: strategies,
		XML:        NewDirectXML(fetcher, cfg.ElsevierAPIKey),
		OAOnly:     cfg.OAOnly,
		Layout:     l,
		PDFLog:     inventory.NewLineLog(l.PDFLog()),
		XMLLog:     inventory.NewLineLog(l.XMLLog()),
		FailedLog:  inventory.NewLineLog(l.FailedLog()),
		Metrics:    metrics,
		Logger:     logger,
	}
}

// DownloadPDF runs the cascade for rec. Strategies after the first success
// are not attempted. The id goes to the PDF log on success and to the
// failed log otherwise. Local I/O errors and cancellation are returned,
// and an interrupted cascade writes neither log.
func (e *Engine) DownloadPDF(ctx context.Context, rec types.ArticleRecord) (DownloadResult, error) {
	t := Target{ID: rec.NormalizedID, URL: rec.PDFURL, Dest: e.Layout.PDFPath(rec.NormalizedID)}
	logger := e.Logger.With().Str("doi", t.ID).Logger()
	ctx = logger.WithContext(ctx)

	var result DownloadResult
	var winner string
	for _, s := range e.Strategies {
		var o Outcome
		switch {
		case winner != "":
			o = skipped(s.Name(), "not attempted: %s download succeeded", winner)
		case e.OAOnly && !s.OpenAccess():
			o = skipped(s.Name(), "skipped: open-access-only mode")
		default:
			if err := ctx.Err(); err != nil {
				return result, err
			}
			var err error
			o, err = s.Attempt(ctx, t)
			if err == nil && !o.Succeeded() {
				err = ctx.Err()
			}
			if err != nil {
				return result, fmt.Errorf("%s download of %s: %w", s.Name(), t.ID, err)
			}
			e.Metrics.Strategy(s.Name(), o.Status.String())
			logger.Debug().Str("strategy", s.Name()).Str("status", o.Status.String()).Msg(o.Message)
			if o.Succeeded() {
				winner = s.Name()
			}
		}
		result.Outcomes = append(result.Outcomes, o)
	}

	log := e.FailedLog
	if result.Success() {
		log = e.PDFLog
	}
	if err := log.Append(t.ID); err != nil {
		return result, fmt.Errorf("%w: %v", ErrLocalIO, err)
	}
	return result, nil
}

// DownloadXML fetches the record's XML link, if any, and logs the id on
// success. Local I/O errors and cancellation are returned.
func (e *Engine) DownloadXML(ctx context.Context, rec types.ArticleRecord) (Outcome, error) {
	t := Target{ID: rec.NormalizedID, URL: rec.XMLURL, Dest: e.Layout.XMLPath(rec.NormalizedID)}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	o, err := e.XML.Attempt(e.Logger.WithContext(ctx), t)
	if err == nil && o.Status == StatusFailed {
		err = ctx.Err()
	}
	if err != nil {
		return o, fmt.Errorf("xml download of %s: %w", t.ID, err)
	}
	if o.Attempted() {
		e.Metrics.Strategy("xml", o.Status.String())
	}
	if o.Succeeded() {
		if err := e.XMLLog.Append(t.ID); err != nil {
			return o, fmt.Errorf("%w: %v", ErrLocalIO, err)
		}
	}
	return o, nil
}
