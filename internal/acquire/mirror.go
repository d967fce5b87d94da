// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/internal/httputil"
	"github.com/pdiddy/article-harvester/internal/ident"
	"github.com/pdiddy/article-harvester/internal/observability"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// mirrorBodyLimit bounds lookup and page responses.
const mirrorBodyLimit = 4 << 20

// MirrorStrategy retrieves a PDF from the mirror in three steps: resolve
// the DOI to a content hash, scrape the download page for the keyed GET
// link, and fetch the file from the CDN. A step that hits a rate-limit
// signal is retried with Backoff; any other failure ends the attempt.
type MirrorStrategy struct {
	Client  *httputil.Client
	Fetcher *Fetcher

	// LookupURL, PageURL, and CDNURL are the endpoints of the three steps.
	LookupURL string
	PageURL   string
	CDNURL    string

	Backoff Backoff
	Pacer   *Pacer
	// Signals are lowercase substrings that mark a throttled response.
	Signals []string
	Metrics *observability.Metrics
}

// NewMirrorStrategy builds the mirror strategy for cfg.Domain.
func NewMirrorStrategy(cfg types.MirrorConfig, client *httputil.Client, fetcher *Fetcher, pacer *Pacer, metrics *observability.Metrics) *MirrorStrategy {
	signals := make([]string, 0, len(cfg.RateLimitSignals))
	for _, s := range cfg.RateLimitSignals {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			signals = append(signals, s)
		}
	}
	return &MirrorStrategy{
		Client:    client,
		Fetcher:   fetcher,
		LookupURL: "https://libgen." + cfg.Domain + "/json.php",
		PageURL:   "http://libgen." + cfg.Domain + "/ads.php",
		CDNURL:    "https://cdn4.booksdl.lc/get.php",
		Backoff:   BackoffFromConfig(cfg),
		Pacer:     pacer,
		Signals:   signals,
		Metrics:   metrics,
	}
}

func (s *MirrorStrategy) Name() string     { return "mirror" }
func (s *MirrorStrategy) OpenAccess() bool { return false }

func (s *MirrorStrategy) Attempt(ctx context.Context, t Target) (Outcome, error) {
	if !ident.IsDOI(t.ID) {
		return skipped(s.Name(), "mirror lookup requires a DOI"), nil
	}
	if s.Pacer != nil {
		if err := s.Pacer.Wait(ctx); err != nil {
			return Outcome{}, err
		}
		defer s.Pacer.Done()
	}

	var md5 string
	err := s.withRetry(ctx, "lookup", func() error {
		var err error
		md5, err = s.lookup(ctx, t.ID)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		return failed(s.Name(), "%v", err), nil
	}

	var downloadURL string
	err = s.withRetry(ctx, "page", func() error {
		var err error
		downloadURL, err = s.resolve(ctx, md5, t.ID)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		return failed(s.Name(), "%v", err), nil
	}

	err = s.withRetry(ctx, "fetch", func() error {
		return s.fetch(ctx, downloadURL, t.Dest)
	})
	if err != nil {
		if errors.Is(err, ErrLocalIO) {
			return Outcome{}, err
		}
		if rmErr := removeArtifact(t.Dest); rmErr != nil {
			return Outcome{}, rmErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		return failed(s.Name(), "%v", err), nil
	}
	return succeeded(s.Name(), "downloaded from mirror"), nil
}

// withRetry runs step until it succeeds, fails without a rate-limit signal,
// or exhausts Backoff.MaxAttempts. It sleeps the next backoff delay after
// every rate-limit signal except the last.
func (s *MirrorStrategy) withRetry(ctx context.Context, step string, fn func() error) error {
	logger := zerolog.Ctx(ctx)
	delays := s.Backoff.Delays()
	if len(delays) == 0 {
		delays = []time.Duration{0}
	}
	sleep := sleepContext
	if s.Pacer != nil && s.Pacer.Sleep != nil {
		sleep = s.Pacer.Sleep
	}
	var err error
	for attempt := 1; attempt <= len(delays); attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrRateLimited) {
			return err
		}
		s.Metrics.RateLimited()
		if attempt == len(delays) {
			break
		}
		delay := delays[attempt-1]
		s.Metrics.BackedOff(delay)
		logger.Info().Str("step", step).Int("attempt", attempt).Dur("backoff", delay).Msg("mirror rate limited, backing off")
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", len(delays), err)
}

// rateLimited reports whether a status or body carries a throttling signal.
func (s *MirrorStrategy) rateLimited(status int, body []byte) (string, bool) {
	if status == http.StatusTooManyRequests {
		return statusMessage(status), true
	}
	lower := bytes.ToLower(body)
	for _, sig := range s.Signals {
		if bytes.Contains(lower, []byte(sig)) {
			return sig, true
		}
	}
	return "", false
}

// get fetches a mirror endpoint and classifies the response.
func (s *MirrorStrategy) get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := s.Client.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMirrorLookup, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, mirrorBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrMirrorLookup, err)
	}
	if msg, ok := s.rateLimited(resp.StatusCode, body); ok {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrMirrorLookup, statusMessage(resp.StatusCode))
	}
	return body, nil
}

// lookup resolves a DOI to the mirror's md5 content hash.
func (s *MirrorStrategy) lookup(ctx context.Context, doi string) (string, error) {
	params := url.Values{"object": {"e"}, "doi": {doi}, "fields": {"md5"}}
	body, err := s.get(ctx, s.LookupURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("%w: malformed lookup response: %v", ErrMirrorLookup, err)
	}
	md5 := findMD5(data)
	if md5 == "" {
		return "", fmt.Errorf("%w: lookup did not return md5", ErrMirrorLookup)
	}
	return md5, nil
}

// findMD5 returns the first "md5" string value found depth-first.
func findMD5(v any) string {
	switch x := v.(type) {
	case map[string]any:
		if s, ok := x["md5"].(string); ok && s != "" {
			return s
		}
		for _, child := range x {
			if s := findMD5(child); s != "" {
				return s
			}
		}
	case []any:
		for _, child := range x {
			if s := findMD5(child); s != "" {
				return s
			}
		}
	}
	return ""
}

// resolve scrapes the download page for an anchor reading "GET" and builds
// the CDN link from its key parameter.
func (s *MirrorStrategy) resolve(ctx context.Context, md5, doi string) (string, error) {
	params := url.Values{"md5": {md5}, "downloadname": {doi}}
	pageURL := s.PageURL + "?" + params.Encode()
	body, err := s.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: parsing mirror page: %v", ErrMirrorLookup, err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMirrorLookup, err)
	}

	var key string
	found := false
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.ToUpper(strings.TrimSpace(a.Text())) != "GET" {
			return true
		}
		found = true
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return true
		}
		ref, err := base.Parse(href)
		if err != nil {
			return true
		}
		if k := ref.Query().Get("key"); k != "" {
			key = k
			return false
		}
		return true
	})
	if !found {
		return "", fmt.Errorf("%w: no GET links found on the mirror page", ErrMirrorLookup)
	}
	if key == "" {
		return "", fmt.Errorf("%w: could not extract 'key' parameter from any GET link", ErrMirrorLookup)
	}
	return s.CDNURL + "?" + url.Values{"md5": {md5}, "key": {key}}.Encode(), nil
}

// fetch downloads the file and validates it. A non-PDF body carrying a
// throttling signal counts as rate limited.
func (s *MirrorStrategy) fetch(ctx context.Context, rawURL, dest string) error {
	if err := s.Fetcher.Fetch(ctx, rawURL, dest, nil); err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			if msg, ok := s.rateLimited(fe.StatusCode, fe.Body); ok {
				return fmt.Errorf("%w: %s", ErrRateLimited, msg)
			}
		}
		return err
	}
	ok, err := ValidateSignature(dest, PDFMagic)
	if err != nil {
		return errors.Join(ErrLocalIO, err)
	}
	if ok {
		return nil
	}
	head := readHead(dest, errorBodyLimit)
	if err := removeArtifact(dest); err != nil {
		return err
	}
	if msg, limited := s.rateLimited(0, head); limited {
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	return ErrInvalidSignature
}
