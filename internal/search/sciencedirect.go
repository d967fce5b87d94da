// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/internal/httputil"
	"github.com/pdiddy/article-harvester/internal/ident"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// scienceDirectAPIBase is the ScienceDirect search endpoint. Declared as a
// var so tests can substitute an httptest server.
var scienceDirectAPIBase = "https://api.elsevier.com/content/search/sciencedirect"

// ScienceDirectRetryDelay is the first wait after a failed page request; it
// doubles on each further failure. Tests override it.
var ScienceDirectRetryDelay = 5 * time.Second

const (
	scienceDirectCount      = 25
	scienceDirectMaxRetries = 5
)

// ScienceDirectAdapter queries the Elsevier ScienceDirect search API and
// keeps open-access entries only. It returns nothing without an API key.
type ScienceDirectAdapter struct {
	Client *httputil.Client
	APIKey string
}

func (a *ScienceDirectAdapter) Name() types.Source { return types.SourceScienceDirect }

func (a *ScienceDirectAdapter) Search(ctx context.Context, keywords []string, maxPerKeyword int) *RecordSet {
	if a.APIKey == "" {
		zerolog.Ctx(ctx).Debug().Msg("no Elsevier API key, skipping ScienceDirect")
		return NewRecordSet()
	}
	return collect(ctx, keywords, maxPerKeyword, a.searchKeyword)
}

func (a *ScienceDirectAdapter) searchKeyword(ctx context.Context, keyword string, max int, set *RecordSet) {
	logger := zerolog.Ctx(ctx).With().Str("source", string(a.Name())).Str("keyword", keyword).Logger()
	added := 0
	for start := 0; added < max; start += scienceDirectCount {
		params := url.Values{
			"query":      {quoted(keyword)},
			"count":      {strconv.Itoa(scienceDirectCount)},
			"start":      {strconv.Itoa(start)},
			"apiKey":     {a.APIKey},
			"httpAccept": {"application/json"},
		}
		page, ok := a.fetchPage(ctx, scienceDirectAPIBase+"?"+params.Encode(), logger)
		if !ok {
			return
		}
		entries := page.SearchResults.Entry
		if len(entries) == 0 {
			return
		}
		addedThisPage := 0
		for _, e := range entries {
			if !e.openAccess() {
				continue
			}
			id := ident.Normalize(e.DOI)
			if id == "" {
				continue
			}
			rec := types.ArticleRecord{
				Identifier:   id,
				NormalizedID: id,
				Title:        e.Title,
				Abstract:     e.Description,
				Source:       types.SourceScienceDirect,
				PDFURL:       elsevierContentURL(id, "application/pdf", a.APIKey),
				XMLURL:       elsevierContentURL(id, "application/xml", a.APIKey),
			}
			if set.Add(rec) {
				added++
				addedThisPage++
				if added >= max {
					return
				}
			}
		}
		if addedThisPage == 0 || len(entries) < scienceDirectCount {
			return
		}
	}
}

// fetchPage retries a failed request up to scienceDirectMaxRetries times,
// doubling the wait from ScienceDirectRetryDelay.
func (a *ScienceDirectAdapter) fetchPage(ctx context.Context, reqURL string, logger zerolog.Logger) (scienceDirectResponse, bool) {
	delay := ScienceDirectRetryDelay
	for attempt := 1; attempt <= scienceDirectMaxRetries; attempt++ {
		var page scienceDirectResponse
		err := a.Client.GetJSON(ctx, reqURL, nil, &page)
		if err == nil {
			return page, true
		}
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("ScienceDirect page failed")
		select {
		case <-ctx.Done():
			return scienceDirectResponse{}, false
		case <-time.After(delay):
		}
		delay *= 2
	}
	return scienceDirectResponse{}, false
}

// ScienceDirect JSON structures.
type scienceDirectResponse struct {
	SearchResults struct {
		Entry []scienceDirectEntry `json:"entry"`
	} `json:"search-results"`
}

type scienceDirectEntry struct {
	DOI         string `json:"prism:doi"`
	Title       string `json:"dc:title"`
	Description string `json:"dc:description"`
	OpenAccess  any    `json:"openaccess"`
}

// openAccess accepts a boolean or a "true"/"1"/"yes" string; absent means no.
func (e scienceDirectEntry) openAccess() bool {
	switch v := e.OpenAccess.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		}
	case float64:
		return v == 1
	}
	return false
}
