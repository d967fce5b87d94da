// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/internal/httputil"
	"github.com/pdiddy/article-harvester/internal/ident"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// europePMCAPIBase is the Europe PMC REST search endpoint. Declared as a
// var so tests can substitute an httptest server.
var europePMCAPIBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

const europePMCPageSize = 100

// EuropePMCAdapter queries Europe PMC for title or abstract matches and
// takes PDF and XML links from the full-text URL list.
type EuropePMCAdapter struct {
	Client *httputil.Client
}

func (a *EuropePMCAdapter) Name() types.Source { return types.SourceEuropePMC }

func (a *EuropePMCAdapter) Search(ctx context.Context, keywords []string, maxPerKeyword int) *RecordSet {
	return collect(ctx, keywords, maxPerKeyword, a.searchKeyword)
}

func (a *EuropePMCAdapter) searchKeyword(ctx context.Context, keyword string, max int, set *RecordSet) {
	logger := zerolog.Ctx(ctx).With().Str("source", string(a.Name())).Str("keyword", keyword).Logger()
	query := "(TITLE:" + quoted(keyword) + " OR ABSTRACT:" + quoted(keyword) + ")"
	cursor := "*"
	added := 0
	for added < max {
		params := url.Values{
			"query":      {query},
			"format":     {"json"},
			"pageSize":   {strconv.Itoa(europePMCPageSize)},
			"cursorMark": {cursor},
		}
		var page europePMCResponse
		if err := a.Client.GetJSON(ctx, europePMCAPIBase+"?"+params.Encode(), nil, &page); err != nil {
			logger.Warn().Err(err).Msg("stopping Europe PMC paging")
			return
		}
		if len(page.ResultList.Result) == 0 {
			return
		}
		for _, hit := range page.ResultList.Result {
			rec, ok := hit.record()
			if !ok {
				continue
			}
			if set.Add(rec) {
				added++
				if added >= max {
					return
				}
			}
		}
		if page.NextCursorMark == "" || page.NextCursorMark == cursor {
			return
		}
		cursor = page.NextCursorMark
	}
}

// Europe PMC JSON structures.
type europePMCResponse struct {
	NextCursorMark string `json:"nextCursorMark"`
	ResultList     struct {
		Result []europePMCHit `json:"result"`
	} `json:"resultList"`
}

type europePMCHit struct {
	ID              string `json:"id"`
	DOI             string `json:"doi"`
	Title           string `json:"title"`
	AbstractText    string `json:"abstractText"`
	FullTextURLList struct {
		FullTextURL []europePMCURL `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

type europePMCURL struct {
	DocumentStyle string `json:"documentStyle"`
	URL           string `json:"url"`
}

func (h europePMCHit) record() (types.ArticleRecord, bool) {
	id := ident.Normalize(h.DOI)
	if id == "" {
		return types.ArticleRecord{}, false
	}
	rec := types.ArticleRecord{
		Identifier:   id,
		NormalizedID: id,
		Title:        h.Title,
		Abstract:     h.AbstractText,
		Source:       types.SourceEuropePMC,
	}
	for _, u := range h.FullTextURLList.FullTextURL {
		if u.URL == "" {
			continue
		}
		style := strings.ToLower(u.DocumentStyle)
		if strings.Contains(style, "pdf") && rec.PDFURL == "" {
			rec.PDFURL = u.URL
		}
		if strings.Contains(style, "xml") && rec.XMLURL == "" {
			rec.XMLURL = u.URL
		}
	}
	if h.ID != "" {
		rec.Raw = map[string]string{"europepmc_id": h.ID}
	}
	return rec, true
}
