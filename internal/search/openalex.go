// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/internal/httputil"
	"github.com/pdiddy/article-harvester/internal/ident"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// openAlexAPIBase is the OpenAlex Works endpoint. Declared as a var so
// tests can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works"

const openAlexPerPage = 200

// OpenAlexAdapter queries the OpenAlex API with cursor paging. Works
// without a DOI are ignored.
type OpenAlexAdapter struct {
	Client *httputil.Client
	// Email is sent as mailto parameter for polite pool access.
	Email string
}

// Name returns the adapter identifier.
func (a *OpenAlexAdapter) Name() types.Source { return types.SourceOpenAlex }

// Search pages through OpenAlex results for each keyword.
func (a *OpenAlexAdapter) Search(ctx context.Context, keywords []string, maxPerKeyword int) *RecordSet {
	return collect(ctx, keywords, maxPerKeyword, a.searchKeyword)
}

func (a *OpenAlexAdapter) searchKeyword(ctx context.Context, keyword string, max int, set *RecordSet) {
	logger := zerolog.Ctx(ctx).With().Str("source", string(a.Name())).Str("keyword", keyword).Logger()
	cursor := "*"
	added := 0
	for added < max {
		params := url.Values{
			"search":   {quoted(keyword)},
			"per_page": {strconv.Itoa(openAlexPerPage)},
			"cursor":   {cursor},
		}
		if a.Email != "" {
			params.Set("mailto", a.Email)
		}

		var page openAlexResponse
		if err := a.Client.GetJSON(ctx, openAlexAPIBase+"?"+params.Encode(), nil, &page); err != nil {
			logger.Warn().Err(err).Msg("stopping OpenAlex paging")
			return
		}
		if len(page.Results) == 0 {
			return
		}
		for _, work := range page.Results {
			rec, ok := work.record()
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
		if page.Meta.NextCursor == "" {
			return
		}
		cursor = page.Meta.NextCursor
	}
}

// ResolvePDF looks up a work by DOI and returns its best open-access PDF
// link, or "" when OpenAlex knows none.
func (a *OpenAlexAdapter) ResolvePDF(ctx context.Context, doi string) (string, error) {
	params := url.Values{}
	if a.Email != "" {
		params.Set("mailto", a.Email)
	}
	reqURL := openAlexAPIBase + "/doi:" + url.PathEscape(doi)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	var work openAlexWork
	if err := a.Client.GetJSON(ctx, reqURL, nil, &work); err != nil {
		return "", fmt.Errorf("OpenAlex lookup: %w", err)
	}
	if work.BestOALocation != nil && work.BestOALocation.PDFURL != "" {
		return work.BestOALocation.PDFURL, nil
	}
	if work.PrimaryLocation != nil && work.PrimaryLocation.PDFURL != "" {
		return work.PrimaryLocation.PDFURL, nil
	}
	return "", nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			if pos >= 0 {
				pairs = append(pairs, posWord{pos: pos, word: word})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count      int    `json:"count"`
	NextCursor string `json:"next_cursor"`
}

type openAlexWork struct {
	ID                    string            `json:"id"`
	Title                 string            `json:"title"`
	DOI                   string            `json:"doi"`
	IDs                   map[string]any    `json:"ids"`
	AbstractInvertedIndex map[string][]int  `json:"abstract_inverted_index"`
	PrimaryLocation       *openAlexLocation `json:"primary_location"`
	BestOALocation        *openAlexLocation `json:"best_oa_location"`
}

type openAlexLocation struct {
	PDFURL         string `json:"pdf_url"`
	LandingPageURL string `json:"landing_page_url"`
}

func (w openAlexWork) record() (types.ArticleRecord, bool) {
	doi := w.DOI
	if doi == "" {
		if v, ok := w.IDs["doi"].(string); ok {
			doi = v
		}
	}
	id := ident.Normalize(doi)
	if id == "" {
		return types.ArticleRecord{}, false
	}
	rec := types.ArticleRecord{
		Identifier:   id,
		NormalizedID: id,
		Title:        w.Title,
		Abstract:     reconstructAbstract(w.AbstractInvertedIndex),
		Source:       types.SourceOpenAlex,
	}
	for _, loc := range []*openAlexLocation{w.PrimaryLocation, w.BestOALocation} {
		if loc != nil && rec.PDFURL == "" {
			rec.PDFURL = loc.PDFURL
		}
	}
	if w.ID != "" {
		rec.Raw = map[string]string{"openalex_id": w.ID}
	}
	return rec, true
}
